// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package registry

import "errors"

// ErrNoSuchResource is returned when a key or handle is not found in the
// registry — fatal for the schedule that referenced it, but the registry
// itself is left unchanged (spec §7).
var ErrNoSuchResource = errors.New("registry: no such resource")
