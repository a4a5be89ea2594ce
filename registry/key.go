// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package registry is the authoritative store for tracked buffers, images,
// and samplers: it owns each resource's queue-ownership state, last
// access/layout, and guarding semaphore value, and is the only thing the
// Scheduler and Executor are allowed to mutate resource state through.
package registry

import "fmt"

// generation invalidates a reused slot index so a key minted before a
// remove/reuse cycle cannot be confused with the resource now living there.
// Mirrors core.RawID's index+epoch packing (see core/id.go), reimplemented
// locally: core.Marker's marker() method is unexported, so new marker types
// for Image/Buffer/Sampler cannot be added to core.ID from this package.
type generation = uint32

func packKey(index uint32, gen generation) uint64 {
	return uint64(index) | uint64(gen)<<32
}

func unpackKey(raw uint64) (uint32, generation) {
	//nolint:gosec // masked to 32 bits
	return uint32(raw & 0xFFFFFFFF), generation(raw >> 32)
}

// ImageKey is a generational slot id for a tracked image. Never visible to
// shaders — see bindless.Handle for the shader-visible counterpart.
type ImageKey struct{ raw uint64 }

// BufferKey is a generational slot id for a tracked buffer.
type BufferKey struct{ raw uint64 }

// SamplerKey is a generational slot id for a tracked sampler.
type SamplerKey struct{ raw uint64 }

func (k ImageKey) index() (uint32, generation)   { return unpackKey(k.raw) }
func (k BufferKey) index() (uint32, generation)  { return unpackKey(k.raw) }
func (k SamplerKey) index() (uint32, generation) { return unpackKey(k.raw) }

// IsZero reports whether the key was never assigned (the zero value).
func (k ImageKey) IsZero() bool { return k.raw == 0 }

// IsZero reports whether the key was never assigned (the zero value).
func (k BufferKey) IsZero() bool { return k.raw == 0 }

// IsZero reports whether the key was never assigned (the zero value).
func (k SamplerKey) IsZero() bool { return k.raw == 0 }

func (k ImageKey) String() string {
	i, g := unpackKey(k.raw)
	return fmt.Sprintf("ImageKey(%d,%d)", i, g)
}

func (k BufferKey) String() string {
	i, g := unpackKey(k.raw)
	return fmt.Sprintf("BufferKey(%d,%d)", i, g)
}

func (k SamplerKey) String() string {
	i, g := unpackKey(k.raw)
	return fmt.Sprintf("SamplerKey(%d,%d)", i, g)
}

// AnyKey is the union of the three resource key kinds, mirroring the
// original implementation's AnyResKey enum (marpii-rmg/src/resources/res_states.rs).
type AnyKey struct {
	Image  ImageKey
	Buffer BufferKey
	// Sampler keys never appear on schedule edges (samplers are immutable
	// and never ownership-transferred), so AnyKey omits Sampler.
	IsImage bool
}
