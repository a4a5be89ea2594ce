// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package graph implements the Scheduler and Executor: the Scheduler turns
// an ordered list of passes into per-track frames with explicit
// acquire/release/init operations and inter-frame semaphore edges (spec
// §4.4); the Executor records and submits those frames (spec §4.5).
//
// Grounded on the original's recorder/scheduler.rs (CmdFrame, TrackRecord,
// ResLocation, Schedule) and, for barrier batching, on hal/command.go's
// batched TransitionBuffers/TransitionTextures.
package graph

import (
	"github.com/vkrmg/rmg/pass"
	"github.com/vkrmg/rmg/registry"
	"github.com/vkrmg/rmg/track"
)

// EdgeKind distinguishes a dependency's origin.
type EdgeKind uint8

const (
	// EdgeImport marks a resource's first appearance in this schedule:
	// ownership and any live guard come from the Registry, not from an
	// earlier node.
	EdgeImport EdgeKind = iota
	// EdgeScheduled marks a dependency produced by an earlier node of this
	// same schedule.
	EdgeScheduled
)

// Edge is a dependency between a resource's consumer and its producer (or,
// for EdgeImport, the registry itself).
type Edge struct {
	Kind EdgeKind
	// Track and Node are populated only for EdgeScheduled: the producer's
	// track and its index within that track's node list.
	Track track.ID
	Node  int
}

// ResKey names a single resource a pass usage refers to, uniting image and
// buffer keys the way the original's AnyResKey enum does
// (marpii-rmg's resources/res_states.rs).
type ResKey struct {
	Image   registry.ImageKey
	Buffer  registry.BufferKey
	IsImage bool
}

// Usage pairs a resource with the access/layout a specific node requires,
// resolved from pass.Usages.
type Usage struct {
	Res    ResKey
	Access pass.AccessMask
	Layout pass.Layout
}

// Node is one pass placed on a track, with its resolved dependency edges.
type Node struct {
	PassIndex int // index into the original input slice, for diagnostics
	Pass      pass.Pass
	Track     track.ID
	Usages    []Usage

	Dependencies []Edge // edges into this node's producers
	Dependees    []Edge // reverse edges: nodes that depend on this one
}

// OpKind distinguishes acquire/init/release half-barriers.
type OpKind uint8

const (
	// OpInit transitions a resource from Uninitialized to Owned.
	OpInit OpKind = iota
	// OpAcquire is the consumer half of a queue-family ownership transfer.
	OpAcquire
	// OpRelease is the producer half of a queue-family ownership transfer.
	OpRelease
)

// Op is one half-barrier a Frame must emit.
type Op struct {
	Kind       OpKind
	Res        ResKey
	SrcFamily  uint32
	DstFamily  uint32
	Access     pass.AccessMask
	Layout     pass.Layout
}

// Frame is a contiguous group of nodes on one track submitted as a single
// command buffer and a single submit (spec §3's Frame, glossary "Frame").
type Frame struct {
	Track   track.ID
	Acquire []Op
	Init    []Op
	Nodes   []int // indices into the track's node list
	Release []Op

	// SignalValue and Waits are filled in by the Executor's pre-pass (spec
	// §4.5); the Scheduler leaves them zero.
	SignalValue uint64
	Waits       []track.Wait

	// MustWaitGuards carries the live guards of resources this frame
	// imports from a prior schedule, whatever their recorded ownership: the
	// frame must not run ahead of any of them (spec §4.4 step 5).
	MustWaitGuards []registry.Guard
}

// Schedule is the Scheduler's complete output: every track's closed frames,
// in the order they were closed (a valid submission order, spec §4.5).
type Schedule struct {
	Frames []*Frame

	// nodesByTrack and frameOfNode are retained for the Executor, which needs
	// to resolve EdgeScheduled waits back to (track, frame) signal values.
	nodesByTrack map[track.ID][]*Node
	frameOfNode  map[track.ID]map[int]*Frame
}
