// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package registry

import (
	"github.com/vkrmg/rmg/bindless"
	"github.com/vkrmg/rmg/track"
)

// Image is the immutable description of an image a pass will declare a
// dependency on; the mutable half lives in TrackedImage. Resource is the
// backend's concrete view handle (e.g. a VkImageView cast to uintptr) that
// gets written into the bindless descriptor table at bind time.
type Image struct {
	Extent   [3]uint32
	Format   uint32
	Usage    uint32
	Kind     bindless.Kind // KindStorageImage or KindSampledImage
	Resource uintptr
}

// Buffer is the immutable description of a buffer. Resource is the
// backend's concrete buffer handle written into the bindless descriptor
// table at bind time.
type Buffer struct {
	Size     uint64
	Usage    uint32
	Resource uintptr
}

// Registry is the authoritative store for tracked images, buffers, and
// samplers (spec §4.2). The Scheduler and Executor are its only mutators;
// state reads/writes are always scheduler-serial, so Registry does not
// synchronize per-resource (spec §4.2 invariant) — it only synchronizes
// Tick against concurrent Track.Tick callers via its own mutex-free design,
// since Recorder.execute() already serializes all of this.
type Registry struct {
	images   *store[TrackedImage]
	buffers  *store[TrackedBuffer]
	samplers *store[TrackedSampler]

	table  *bindless.Table
	binder bindless.DeviceBinder

	// pendingImages and pendingBuffers hold keys removed by RemoveImage/
	// RemoveBuffer but not yet destroyed,
	// because their Guard had not elapsed as of the last Tick.
	pendingImages  map[ImageKey]struct{}
	pendingBuffers map[BufferKey]struct{}

	// onDestroyImage/onDestroyBuffer are called for each key whose guard has
	// elapsed during Tick,
	// so the caller can release the underlying GPU object and bindless slot.
	onDestroyImage  func(ImageKey, TrackedImage)
	onDestroyBuffer func(BufferKey, TrackedBuffer)
}

// New constructs an empty Registry bound to table for bindless allocation.
func New(table *bindless.Table) *Registry {
	return &Registry{
		images:          newStore[TrackedImage](),
		buffers:         newStore[TrackedBuffer](),
		samplers:        newStore[TrackedSampler](),
		table:           table,
		pendingImages:   make(map[ImageKey]struct{}),
		pendingBuffers:  make(map[BufferKey]struct{}),
		onDestroyImage:  func(ImageKey, TrackedImage) {},
		onDestroyBuffer: func(BufferKey, TrackedBuffer) {},
	}
}

// BindDevice installs the backend binder Add* calls use to actually write
// each newly bound slot's descriptor (spec §4.1: bind_<kind> must "allocate
// a slot, write the descriptor, return the handle" — not just allocate).
// Left nil, Add* still allocates slots and handles but skips the descriptor
// write, which is only appropriate for tests that never read through the
// bindless table from a shader.
func (r *Registry) BindDevice(binder bindless.DeviceBinder) { r.binder = binder }

// OnDestroyImage installs a callback invoked when a removed image's guard
// has elapsed and it is actually destroyed.
func (r *Registry) OnDestroyImage(fn func(ImageKey, TrackedImage)) { r.onDestroyImage = fn }

// OnDestroyBuffer installs a callback invoked when a removed buffer's guard
// has elapsed and it is actually destroyed.
func (r *Registry) OnDestroyBuffer(fn func(BufferKey, TrackedBuffer)) { r.onDestroyBuffer = fn }

// AddImage allocates a key and a bindless slot for img, with a fresh
// Uninitialized state record (spec §4.2).
func (r *Registry) AddImage(img Image) (ImageKey, error) {
	handle, err := r.table.Bind(img.Kind)
	if err != nil {
		return ImageKey{}, err
	}
	if r.binder != nil {
		r.binder.WriteDescriptor(handle.Kind(), handle.Slot(), img.Resource)
	}
	state := TrackedImage{
		Ownership:        Uninitialized,
		DescriptorHandle: handle,
		Extent:           img.Extent,
		Format:           img.Format,
		Usage:            img.Usage,
	}
	return ImageKey{raw: r.images.insert(state)}, nil
}

// AddBuffer allocates a key and a bindless slot for buf.
func (r *Registry) AddBuffer(buf Buffer) (BufferKey, error) {
	handle, err := r.table.Bind(bindless.KindStorageBuffer)
	if err != nil {
		return BufferKey{}, err
	}
	if r.binder != nil {
		r.binder.WriteDescriptor(handle.Kind(), handle.Slot(), buf.Resource)
	}
	state := TrackedBuffer{
		Ownership:        Uninitialized,
		DescriptorHandle: handle,
		Size:             buf.Size,
		Usage:            buf.Usage,
	}
	return BufferKey{raw: r.buffers.insert(state)}, nil
}

// AddSampler allocates a key and a bindless slot for an immutable sampler
// backed by resource (the backend's concrete VkSampler handle).
func (r *Registry) AddSampler(resource uintptr) (SamplerKey, error) {
	handle, err := r.table.Bind(bindless.KindSampler)
	if err != nil {
		return SamplerKey{}, err
	}
	if r.binder != nil {
		r.binder.WriteDescriptor(handle.Kind(), handle.Slot(), resource)
	}
	return SamplerKey{raw: r.samplers.insert(TrackedSampler{DescriptorHandle: handle, RefCount: 1})}, nil
}

// GetImage returns key's state record. Scheduler/Executor-only.
func (r *Registry) GetImage(key ImageKey) (TrackedImage, error) {
	v, ok := r.images.get(key.raw)
	if !ok {
		return TrackedImage{}, ErrNoSuchResource
	}
	return v, nil
}

// GetBuffer returns key's state record. Scheduler/Executor-only.
func (r *Registry) GetBuffer(key BufferKey) (TrackedBuffer, error) {
	v, ok := r.buffers.get(key.raw)
	if !ok {
		return TrackedBuffer{}, ErrNoSuchResource
	}
	return v, nil
}

// GetSampler returns key's state record.
func (r *Registry) GetSampler(key SamplerKey) (TrackedSampler, error) {
	v, ok := r.samplers.get(key.raw)
	if !ok {
		return TrackedSampler{}, ErrNoSuchResource
	}
	return v, nil
}

// SetImage overwrites key's state record. Scheduler/Executor-only.
func (r *Registry) SetImage(key ImageKey, state TrackedImage) error {
	if !r.images.mutate(key.raw, func(s *TrackedImage) { *s = state }) {
		return ErrNoSuchResource
	}
	return nil
}

// SetBuffer overwrites key's state record. Scheduler/Executor-only.
func (r *Registry) SetBuffer(key BufferKey, state TrackedBuffer) error {
	if !r.buffers.mutate(key.raw, func(s *TrackedBuffer) { *s = state }) {
		return ErrNoSuchResource
	}
	return nil
}

// RemoveImage marks key for deferred deletion: the image is destroyed when
// a later Tick observes its guard satisfied (spec §4.2).
func (r *Registry) RemoveImage(key ImageKey) error {
	if !r.images.mutate(key.raw, func(*TrackedImage) {}) {
		return ErrNoSuchResource
	}
	r.pendingImages[key] = struct{}{}
	return nil
}

// RemoveBuffer marks key for deferred deletion.
func (r *Registry) RemoveBuffer(key BufferKey) error {
	if !r.buffers.mutate(key.raw, func(*TrackedBuffer) {}) {
		return ErrNoSuchResource
	}
	r.pendingBuffers[key] = struct{}{}
	return nil
}

// Tick is called at the top of each execute(): for every track it reads the
// current semaphore value (track.Tick already does this and reclaims
// command buffers), advances nothing beyond that, and then deletes any
// pending resource whose guard is now satisfied (spec §4.2).
func (r *Registry) Tick(tracks map[track.ID]uint64) {
	guardSatisfied := func(g Guard) bool {
		if !g.Live() {
			return true
		}
		observed, ok := tracks[g.Track]
		return ok && observed >= g.Value
	}

	for key := range r.pendingImages {
		state, ok := r.images.get(key.raw)
		if !ok || guardSatisfied(state.Guard) {
			delete(r.pendingImages, key)
			if ok {
				r.images.remove(key.raw)
				_ = r.table.Free(state.DescriptorHandle)
				r.onDestroyImage(key, state)
			}
		}
	}

	for key := range r.pendingBuffers {
		state, ok := r.buffers.get(key.raw)
		if !ok || guardSatisfied(state.Guard) {
			delete(r.pendingBuffers, key)
			if ok {
				r.buffers.remove(key.raw)
				_ = r.table.Free(state.DescriptorHandle)
				r.onDestroyBuffer(key, state)
			}
		}
	}
}
