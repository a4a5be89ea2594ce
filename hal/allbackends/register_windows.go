// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build windows

package allbackends

import (
	// Vulkan backend - the only backend the render-graph targets on Windows.
	_ "github.com/vkrmg/rmg/hal/vulkan"

	// Headless backend for CI and tests without a GPU.
	_ "github.com/vkrmg/rmg/hal/noop"
)
