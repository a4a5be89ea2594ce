// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package allbackends imports all HAL backend implementations.
//
// Import this package for side effects to register all available backends:
//
//	import (
//		_ "github.com/vkrmg/rmg/hal/allbackends"
//	)
//
// This will register:
//   - Vulkan backend (Windows, Linux, macOS via MoltenVK)
//   - No-op backend (all platforms, for testing)
//
// The render graph only ever emits Vulkan-shaped barriers and timeline
// semaphores (spec §4), so Vulkan is the one real backend; DX12/Metal/GLES
// bring-up was dropped rather than adapted (see DESIGN.md).
//
// After importing, use hal.GetBackend or hal.SelectBestBackend to access backends.
//
// Build tags control which backends are available:
//   - Default: Vulkan + no-op for the current platform
//   - "!android": Excludes Android-specific Vulkan loader
//
// Example usage:
//
//	import (
//		_ "github.com/vkrmg/rmg/hal/allbackends"
//		"github.com/vkrmg/rmg/core"
//	)
//
//	func main() {
//		// Instance will now enumerate real GPUs
//		instance := core.NewInstance(nil)
//		adapters := instance.EnumerateAdapters()
//		for _, a := range adapters {
//			fmt.Println(a) // Real GPU adapters
//		}
//	}
package allbackends
