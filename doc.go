// Package rmg provides a Vulkan render-graph runtime for Go applications.
//
// It wraps the lower-level hal/ and core/ packages' device bring-up with a
// Recorder front end: passes are declared against resources kept in a
// registry.Registry, a graph.Schedule turns a buffered batch of passes into
// per-queue-family frames with explicit acquire/release barriers, and a
// graph.Executor records and submits them.
//
// # Quick Start
//
//	import (
//	    "github.com/vkrmg/rmg"
//	    _ "github.com/vkrmg/rmg/hal/allbackends"
//	)
//
//	instance, err := rmg.CreateInstance(nil)
//	// ...
//	rec, err := rmg.NewRecorder(device)
//	rec.AddPass(myPass)
//	guard, err := rec.Execute()
//
// # Resource Lifecycle
//
// Images, buffers, and samplers are added to the Recorder's registry.Registry
// and removed explicitly; removal is deferred until the resource's last
// Guard is satisfied (spec'd in package registry).
//
// # Backend Registration
//
// Backends are registered via blank imports:
//
//	_ "github.com/vkrmg/rmg/hal/allbackends"  // all available backends
//	_ "github.com/vkrmg/rmg/hal/vulkan"        // Vulkan only
//	_ "github.com/vkrmg/rmg/hal/noop"         // testing
//
// # Thread Safety
//
// Instance, Adapter, and Device are safe for concurrent use. A Recorder is
// not: callers serialize AddPass/Execute themselves, mirroring Track's own
// single-writer design.
package rmg
