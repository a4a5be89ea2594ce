// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package registry

import (
	"github.com/vkrmg/rmg/bindless"
	"github.com/vkrmg/rmg/track"
)

// Ownership is the queue-family ownership state of a tracked resource.
// Mirrors the original's QueueOwnership enum (marpii-rmg's res_states.rs).
type Ownership struct {
	kind       ownershipKind
	owner      uint32 // valid when kind == ownershipOwned
	srcFamily  uint32 // valid when kind == ownershipReleased
	dstFamily  uint32 // valid when kind == ownershipReleased
}

type ownershipKind uint8

const (
	// OwnershipUninitialized is the initial state of every newly added resource.
	OwnershipUninitialized ownershipKind = iota
	// OwnershipOwned means the resource currently belongs to one queue family.
	OwnershipOwned
	// OwnershipReleased means a release half-barrier has been recorded and the
	// resource is in flight between families, awaiting its matching acquire.
	OwnershipReleased
)

// Uninitialized is the ownership state of a freshly added resource.
var Uninitialized = Ownership{kind: OwnershipUninitialized}

// Owned reports the resource as belonging to the given queue family.
func Owned(family uint32) Ownership {
	return Ownership{kind: OwnershipOwned, owner: family}
}

// Released reports the resource as mid-transfer from srcFamily to dstFamily.
func Released(srcFamily, dstFamily uint32) Ownership {
	return Ownership{kind: OwnershipReleased, srcFamily: srcFamily, dstFamily: dstFamily}
}

// IsUninitialized reports whether the resource has never been scheduled.
func (o Ownership) IsUninitialized() bool { return o.kind == OwnershipUninitialized }

// IsOwned reports whether the resource is currently owned by a single family,
// returning that family when true.
func (o Ownership) IsOwned() (family uint32, ok bool) {
	return o.owner, o.kind == OwnershipOwned
}

// IsReleased reports whether the resource is mid-transfer, returning the
// source and destination families when true.
func (o Ownership) IsReleased() (src, dst uint32, ok bool) {
	return o.srcFamily, o.dstFamily, o.kind == OwnershipReleased
}

// Guard protects a resource from mutation or destruction until the named
// track's timeline semaphore reaches Value.
type Guard struct {
	Track track.ID
	Value uint64
}

// NoGuard is the zero Guard, meaning the resource carries no live guard.
var NoGuard = Guard{}

// Live reports whether g actually guards something (track.ID zero value is
// never handed out by track.Allocator.Alloc, so a zero Guard is unambiguous).
func (g Guard) Live() bool { return g.Track.Valid() }

// TrackedImage is the Resource Registry's state record for an image.
type TrackedImage struct {
	Ownership        Ownership
	LastAccessMask   uint32
	LastLayout       uint32
	Guard            Guard
	DescriptorHandle bindless.Handle
	Extent           [3]uint32
	Format           uint32
	Usage            uint32
}

// TrackedBuffer is the Resource Registry's state record for a buffer.
type TrackedBuffer struct {
	Ownership        Ownership
	LastAccessMask   uint32
	Guard            Guard
	DescriptorHandle bindless.Handle
	Size             uint64
	Usage            uint32
}

// TrackedSampler is immutable once created: only a descriptor handle and a
// reference count, per spec §3.
type TrackedSampler struct {
	DescriptorHandle bindless.Handle
	RefCount         uint32
}
