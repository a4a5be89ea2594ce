// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package track implements the per-queue-family execution lane the render
// graph submits frames through: a queue handle, a command-buffer pool, a
// monotonic timeline semaphore, and a cursor recording the next semaphore
// value this track will signal (spec §3/§4.3).
//
// Grounded on hal/vulkan/fence.go's deviceFence (timeline-semaphore with a
// binary-fence-pool fallback) and core/track/allocator.go's free-list index
// allocator, generalized from per-resource tracking to per-command-buffer
// recycling.
package track

import (
	"fmt"
	"sync"
)

// ID names one Track among the set a Recorder owns, one per queue family.
// The zero value is reserved as "no track" so a zero Guard (see
// registry.NoGuard) is unambiguous.
type ID uint32

// Valid reports whether id was handed out by an Allocator (never the zero value).
func (id ID) Valid() bool { return id != 0 }

// Capability is a bitmask of queue operations a track's queue family
// supports (graphics, compute, transfer, sparse-binding, ...). The exact
// bit assignment mirrors VkQueueFlagBits so a track's Capabilities can be
// built directly from VkQueueFamilyProperties.queueFlags.
type Capability uint32

const (
	// CapabilityGraphics marks a queue family that supports graphics commands.
	CapabilityGraphics Capability = 1 << iota
	// CapabilityCompute marks a queue family that supports compute commands.
	CapabilityCompute
	// CapabilityTransfer marks a queue family that supports transfer commands.
	CapabilityTransfer
	// CapabilitySparseBinding marks a queue family that supports sparse
	// memory binding commands.
	CapabilitySparseBinding
)

// Satisfies reports whether c is a superset of required — used by the
// Scheduler's track-selection step (spec §4.4 step 1).
func (c Capability) Satisfies(required Capability) bool {
	return c&required == required
}

// CommandBuffer is an opaque handle to a backend command buffer recorded by
// a Track. The render-graph core never inspects it; it only threads it
// through to a pass's Record hook and back to Track.Submit.
type CommandBuffer interface{}

// Backend is the peripheral collaborator a Track asks to perform the real
// Vulkan work: allocating/resetting command buffers, creating and waiting
// on a timeline semaphore, and submitting to the queue (spec §1's "the core
// speaks only through the interfaces it consumes").
type Backend interface {
	// AllocateCommandBuffer returns a freshly allocated, unreset command
	// buffer from the track's pool.
	AllocateCommandBuffer() (CommandBuffer, error)
	// ResetCommandBuffer resets cb so it is ready to record again.
	ResetCommandBuffer(cb CommandBuffer) error
	// CreateTimelineSemaphore creates a timeline semaphore with initial value 0.
	CreateTimelineSemaphore() (Semaphore, error)
	// SignalValue returns the timeline semaphore's current observed value
	// (non-blocking, per spec §5 "the Executor ... only reads semaphore
	// values (non-blocking) when ticking").
	SignalValue(sem Semaphore) (uint64, error)
	// WaitValue blocks until sem reaches at least value.
	WaitValue(sem Semaphore, value uint64) error
	// Submit submits cbs to the queue, waiting on waits and signaling sem at
	// signalValue on completion.
	Submit(cbs []CommandBuffer, waits []Wait, sem Semaphore, signalValue uint64) error
}

// Semaphore is an opaque handle to a backend timeline semaphore.
type Semaphore interface{}

// Wait names a semaphore/value pair a submission must wait on before
// executing — either another track's timeline (a Scheduled edge) or an
// imported resource's stored Guard.
type Wait struct {
	Semaphore Semaphore
	Value     uint64
}

// inflight is a submitted command buffer (and anything it captured) still
// waiting for its signal value to be observed, mirroring the "track owns a
// heterogeneous vector of opaque owning boxes alongside each inflight
// command buffer" design note (spec §9).
type inflight struct {
	value   uint64
	cbs     []CommandBuffer
	payload []any
}

// Track is one queue family's execution lane.
type Track struct {
	mu sync.Mutex

	id          ID
	familyIndex uint32
	capability  Capability
	backend     Backend

	sem Semaphore

	// nextSignalValue is strictly monotonic (spec §3's Track invariant): the
	// semaphore's observable value never exceeds nextSignalValue-1.
	nextSignalValue uint64

	// importWatermark is the newest guard value imported from this track by
	// a schedule on another track — the original's
	// TrackRecord.latest_outside_sync (marpii-rmg's recorder/scheduler.rs).
	// It is only raised by RecordImport and read by ImportWatermark; the
	// Scheduler, Executor and Registry.Tick do not consult it.
	importWatermark uint64

	free     []CommandBuffer
	inflight []inflight
}

// New constructs a Track for one queue family. The backend must already be
// bound to a live device and queue.
func New(id ID, familyIndex uint32, capability Capability, backend Backend) (*Track, error) {
	sem, err := backend.CreateTimelineSemaphore()
	if err != nil {
		return nil, fmt.Errorf("track: create timeline semaphore: %w", err)
	}
	return &Track{
		id:          id,
		familyIndex: familyIndex,
		capability:  capability,
		backend:     backend,
		sem:         sem,
	}, nil
}

// ID returns the track's identity.
func (t *Track) ID() ID { return t.id }

// FamilyIndex returns the Vulkan queue family index this track submits to.
func (t *Track) FamilyIndex() uint32 { return t.familyIndex }

// Capability returns the queue family's capability mask.
func (t *Track) Capability() Capability { return t.capability }

// Semaphore exposes the track's timeline semaphore for cross-track waits.
func (t *Track) Semaphore() Semaphore { return t.sem }

// NextSignalValue reserves and returns the next signal value this track
// will produce, per spec §4.5's executor pre-pass ("assign each frame its
// signal_value = its track's next-signal-value, then increment").
func (t *Track) NextSignalValue() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSignalValue++
	return t.nextSignalValue
}

// NewCommandBuffer pulls a reset command buffer from the free list or
// allocates a fresh one (spec §4.3).
func (t *Track) NewCommandBuffer() (CommandBuffer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		cb := t.free[n-1]
		t.free = t.free[:n-1]
		if err := t.backend.ResetCommandBuffer(cb); err != nil {
			return nil, fmt.Errorf("track: reset command buffer: %w", err)
		}
		return cb, nil
	}
	return t.backend.AllocateCommandBuffer()
}

// Submit submits cbs to the queue with the supplied wait list, signals the
// track's timeline at signalValue, and retains cbs plus payload on the
// inflight queue until that value is observed (spec §4.3).
func (t *Track) Submit(cbs []CommandBuffer, waits []Wait, signalValue uint64, payload ...any) error {
	if err := t.backend.Submit(cbs, waits, t.sem, signalValue); err != nil {
		return fmt.Errorf("track: submit: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight = append(t.inflight, inflight{value: signalValue, cbs: cbs, payload: payload})
	return nil
}

// Tick reads the current semaphore value (non-blocking) and reclaims
// inflight entries whose signal value has been reached, returning their
// command buffers to the free list (spec §4.3).
func (t *Track) Tick() (observed uint64, err error) {
	observed, err = t.backend.SignalValue(t.sem)
	if err != nil {
		return 0, fmt.Errorf("track: read signal value: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.inflight[:0]
	for _, in := range t.inflight {
		if in.value <= observed {
			t.free = append(t.free, in.cbs...)
			continue
		}
		kept = append(kept, in)
	}
	t.inflight = kept
	return observed, nil
}

// WaitIdle blocks until every inflight entry is reclaimed. Used only on
// shutdown (spec §5).
func (t *Track) WaitIdle() error {
	t.mu.Lock()
	last := uint64(0)
	if n := len(t.inflight); n > 0 {
		last = t.inflight[n-1].value
	}
	t.mu.Unlock()

	if last == 0 {
		return nil
	}
	if err := t.backend.WaitValue(t.sem, last); err != nil {
		return fmt.Errorf("track: wait idle: %w", err)
	}
	_, err := t.Tick()
	return err
}

// ImportWatermark returns the newest guard value this track has had
// imported by another schedule.
func (t *Track) ImportWatermark() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.importWatermark
}

// RecordImport raises the import watermark to value if it is newer.
func (t *Track) RecordImport(value uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if value > t.importWatermark {
		t.importWatermark = value
	}
}
