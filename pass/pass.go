// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package pass defines the external contract a render-graph pass exposes to
// the core (spec §6). The scheduler never inspects a pass's internals: it
// only reads the declarations below and invokes the two recording hooks at
// the right point in the frame's lifetime.
//
// Grounded on the original's dynamic-dispatch pass trait
// (marpii-rmg/src/recorder/task.rs) and on spec §9's "capability trait"
// redesign note: the source's runtime polymorphism becomes a plain Go
// interface plus a struct of resource declarations, stored as a tagged
// owning handle rather than a boxed trait object.
package pass

import (
	"github.com/vkrmg/rmg/registry"
	"github.com/vkrmg/rmg/track"
)

// AccessMask is a bitmask of how a pass touches a declared resource
// (read/write/shader-read/transfer-src/...), mirroring VkAccessFlags2 bit
// assignment so it can be used directly when building a barrier.
type AccessMask uint32

// Layout names a Vulkan image layout a pass requires its image resources be
// in before it records. Buffers ignore this field.
type Layout uint32

// ImageUsage declares how a pass uses one image resource.
type ImageUsage struct {
	Key    registry.ImageKey
	Access AccessMask
	Layout Layout
}

// BufferUsage declares how a pass uses one buffer resource.
type BufferUsage struct {
	Key    registry.BufferKey
	Access AccessMask
}

// Usages is the Task Registry for a single pass: the complete set of
// resource references it declares for one recording (spec §2 item 4).
type Usages struct {
	Images  []ImageUsage
	Buffers []BufferUsage
}

// Recorder is the raw command-buffer handle passed to a pass's Record hook.
// Opaque to the core; the pass downcasts it to its backend's concrete type.
type Recorder = track.CommandBuffer

// RegistryView is the read-only slice of Registry operations a pass's
// Record hook may use to resolve its declared keys to concrete GPU handles
// and current state (spec §6's "Registry interface exposed to passes").
type RegistryView interface {
	GetImage(registry.ImageKey) (registry.TrackedImage, error)
	GetBuffer(registry.BufferKey) (registry.TrackedBuffer, error)
}

// Pass is the contract every render-graph pass implements.
type Pass interface {
	// Name is a human-readable identifier used in diagnostics.
	Name() string

	// QueueCapability is the set of queue operations this pass requires;
	// the Scheduler places the pass on the first track whose family
	// capabilities are a superset (spec §4.4 step 1).
	QueueCapability() track.Capability

	// Usages declares the resources this pass touches and how.
	Usages() Usages

	// PreRecord runs before acquire barriers are emitted for this pass's
	// frame. Optional — passes with nothing to do before barriers can embed
	// NoPreRecord.
	PreRecord() error

	// Record is invoked with the raw command buffer and a read-only
	// registry view once all of this pass's acquire/init barriers have been
	// recorded.
	Record(cb Recorder, view RegistryView) error

	// PostExecution runs after the frame containing this pass has been
	// submitted — e.g. a swapchain-present pass issues vkQueuePresentKHR
	// here. Optional — see NoPostExecution.
	PostExecution() error
}

// NoPreRecord is embeddable by passes with no pre-record hook.
type NoPreRecord struct{}

// PreRecord is a no-op.
func (NoPreRecord) PreRecord() error { return nil }

// NoPostExecution is embeddable by passes with no post-execution hook.
type NoPostExecution struct{}

// PostExecution is a no-op.
func (NoPostExecution) PostExecution() error { return nil }
