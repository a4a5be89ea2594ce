// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bindless

import "sync"

// Features reports which descriptor-indexing capabilities the device
// advertises. All four are required before a Table can be constructed
// (spec §4.1): without them stale/partial descriptor writes during
// recording are not legal, and slot-index resources could not be read back
// by shaders uniformly.
type Features struct {
	UpdateAfterBind         bool
	PartiallyBound          bool
	VariableDescriptorCount bool
	NonUniformIndexing      bool
}

// Limits caps the number of slots per kind. Conservative defaults near 128
// per spec §4.1; callers should clamp these to the device's actual
// descriptor-indexing limits.
type Limits [int(kindCount)]uint32

// DefaultLimits returns the spec's conservative per-kind default of 128 slots.
func DefaultLimits() Limits {
	var l Limits
	for i := range l {
		l[i] = 128
	}
	return l
}

// subTable is one kind's slot allocator: a bump-allocated high-water mark
// with a LIFO free list layered on top, so handles stay compact (freed
// slots are reused before the table grows) — the same policy as
// core/track/allocator.go's TrackerIndexAllocator, and as the original's
// SetManagment<T> (marpii-descriptor/src/bindless.rs).
type subTable struct {
	kind     Kind
	capacity uint32
	head     uint32
	free     []uint32
	occupied map[uint32]bool
}

func newSubTable(kind Kind, capacity uint32) subTable {
	return subTable{kind: kind, capacity: capacity, occupied: make(map[uint32]bool)}
}

func (t *subTable) alloc() (uint32, bool) {
	if n := len(t.free); n > 0 {
		slot := t.free[n-1]
		t.free = t.free[:n-1]
		t.occupied[slot] = true
		return slot, true
	}
	if t.head >= t.capacity {
		return 0, false
	}
	slot := t.head
	t.head++
	t.occupied[slot] = true
	return slot, true
}

// release returns a slot to the free list. It does not write a null
// descriptor — PARTIALLY_BOUND makes stale entries legal until the slot is
// next bound (spec §4.1).
func (t *subTable) release(slot uint32) bool {
	if !t.occupied[slot] {
		return false
	}
	delete(t.occupied, slot)
	t.free = append(t.free, slot)
	return true
}

// Table is the bindless descriptor table: one subTable per resource kind,
// guarded by a single mutex since binds/frees happen during recording from
// one goroutine at a time (spec §5: single-threaded graph construction).
type Table struct {
	mu   sync.Mutex
	subs [kindCount]subTable
	feat Features
}

// NewTable validates the device's descriptor-indexing features and builds
// an empty table with the given per-kind capacities. Returns
// UnsupportedFeatureError if any required feature is absent — fatal at
// construction time per spec §4.1.
func NewTable(limits Limits, feat Features) (*Table, error) {
	if !feat.UpdateAfterBind {
		return nil, &UnsupportedFeatureError{Feature: FeatureUpdateAfterBind}
	}
	if !feat.PartiallyBound {
		return nil, &UnsupportedFeatureError{Feature: FeaturePartiallyBound}
	}
	if !feat.VariableDescriptorCount {
		return nil, &UnsupportedFeatureError{Feature: FeatureVariableDescriptorCount}
	}
	if !feat.NonUniformIndexing {
		return nil, &UnsupportedFeatureError{Feature: FeatureNonUniformIndexing}
	}

	tbl := &Table{feat: feat}
	for k := Kind(0); k < kindCount; k++ {
		tbl.subs[k] = newSubTable(k, limits[k])
	}
	return tbl, nil
}

// Bind allocates a slot in kind's sub-table and returns the handle that
// shaders will use to reach it. Returns BindFullError (recoverable) if the
// sub-table is exhausted; the caller keeps the resource.
func (t *Table) Bind(kind Kind) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub := &t.subs[kind]
	slot, ok := sub.alloc()
	if !ok {
		return Undefined, &BindFullError{Kind: kind, Capacity: sub.capacity}
	}
	return newHandle(kind, slot), nil
}

// Free returns handle's slot to its kind's free list. The slot may be
// reused by a later Bind once any inflight frame referencing it has
// retired — callers are responsible for not calling Free before a
// resource's guard has elapsed (spec's "Slot recycling ordering" design note).
func (t *Table) Free(h Handle) error {
	if !h.IsValid() {
		return ErrUnknownHandle
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	sub := &t.subs[h.Kind()]
	if !sub.release(h.Slot()) {
		return ErrUnknownHandle
	}
	return nil
}

// Occupancy reports live-slot count and capacity for a kind, for
// diagnostics and tests.
func (t *Table) Occupancy(kind Kind) (used, capacity uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub := &t.subs[kind]
	//nolint:gosec // bounded by capacity, always < 2^32
	return uint32(len(sub.occupied)), sub.capacity
}
