// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build darwin

package allbackends

import (
	// Vulkan backend, available via MoltenVK on macOS - the only backend
	// the render-graph targets on Apple platforms.
	_ "github.com/vkrmg/rmg/hal/vulkan"

	// Headless backend for CI and tests without a GPU.
	_ "github.com/vkrmg/rmg/hal/noop"
)
