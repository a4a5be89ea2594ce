// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"fmt"

	"github.com/vkrmg/rmg/pass"
	"github.com/vkrmg/rmg/registry"
	"github.com/vkrmg/rmg/track"
)

// BarrierSink is how the Executor hands Ops to the backend: one call per
// frame, before (acquire+init) and after (release) that frame's passes
// record. The render-graph core never builds an actual VkImageMemoryBarrier2
// itself — that translation is entirely the backend's (spec §1).
type BarrierSink interface {
	// RecordBarriers appends vkCmdPipelineBarrier2-equivalent commands for
	// ops into cb.
	RecordBarriers(cb track.CommandBuffer, ops []Op) error
}

// Executor records and submits a Schedule's frames in order (spec §4.5).
type Executor struct {
	tracks map[track.ID]*track.Track
	sink   BarrierSink
	reg    *registry.Registry
	view   pass.RegistryView
}

// NewExecutor builds an Executor over the given tracks (keyed by ID), a
// BarrierSink that knows how to translate Ops into real barrier commands,
// the Registry those Ops and Record hooks read from, and the RegistryView
// passed to each pass's Record hook.
func NewExecutor(tracks map[track.ID]*track.Track, sink BarrierSink, reg *registry.Registry, view pass.RegistryView) *Executor {
	return &Executor{tracks: tracks, sink: sink, reg: reg, view: view}
}

// Execute records and submits every frame of sched, in order, updating the
// Registry's ownership/guard state as it goes (spec §4.5).
func (e *Executor) Execute(sched *Schedule) error {
	// Pre-pass: assign each frame a signal value before any recording, so
	// cross-frame Waits can be resolved to concrete values up front
	// (spec §4.5 "pre-pass").
	for _, f := range sched.Frames {
		tr, ok := e.tracks[f.Track]
		if !ok {
			return fmt.Errorf("executor: unknown track %v", f.Track)
		}
		f.SignalValue = tr.NextSignalValue()
	}

	frameIndexOfNode := make(map[track.ID]map[int]int)
	for fi, f := range sched.Frames {
		if frameIndexOfNode[f.Track] == nil {
			frameIndexOfNode[f.Track] = make(map[int]int)
		}
		for _, n := range f.Nodes {
			frameIndexOfNode[f.Track][n] = fi
		}
	}

	for _, f := range sched.Frames {
		tr := e.tracks[f.Track]
		nodes := sched.nodesByTrack[f.Track]

		waits := e.resolveWaits(f, nodes, sched, frameIndexOfNode)

		cb, err := tr.NewCommandBuffer()
		if err != nil {
			return fmt.Errorf("executor: new command buffer: %w", err)
		}

		for _, nodeIdx := range f.Nodes {
			if err := nodes[nodeIdx].Pass.PreRecord(); err != nil {
				return fmt.Errorf("executor: pre-record %q: %w", nodes[nodeIdx].Pass.Name(), err)
			}
		}

		if len(f.Init) > 0 || len(f.Acquire) > 0 {
			if err := e.sink.RecordBarriers(cb, append(append([]Op{}, f.Init...), f.Acquire...)); err != nil {
				return fmt.Errorf("executor: acquire barriers: %w", err)
			}
		}
		if err := e.applyPreBarrierState(f); err != nil {
			return err
		}

		for _, nodeIdx := range f.Nodes {
			if err := nodes[nodeIdx].Pass.Record(cb, e.view); err != nil {
				return fmt.Errorf("executor: record %q: %w", nodes[nodeIdx].Pass.Name(), err)
			}
		}

		if len(f.Release) > 0 {
			if err := e.sink.RecordBarriers(cb, f.Release); err != nil {
				return fmt.Errorf("executor: release barriers: %w", err)
			}
		}
		if err := e.applyReleaseState(f); err != nil {
			return err
		}

		if err := tr.Submit([]track.CommandBuffer{cb}, waits, f.SignalValue); err != nil {
			return fmt.Errorf("executor: submit: %w", err)
		}
		if err := e.applyFrameGuard(f, nodes); err != nil {
			return err
		}

		for _, nodeIdx := range f.Nodes {
			if err := nodes[nodeIdx].Pass.PostExecution(); err != nil {
				return fmt.Errorf("executor: post-execution %q: %w", nodes[nodeIdx].Pass.Name(), err)
			}
		}
	}
	return nil
}

// resolveWaits builds a frame's Track.Submit wait list: one wait per
// cross-track Dependency its nodes have on a producer frame on another
// track, plus one wait per MustWaitGuards entry inherited from an import
// (spec §4.4 step 5, §4.5).
func (e *Executor) resolveWaits(f *Frame, nodes []*Node, sched *Schedule, frameIndexOfNode map[track.ID]map[int]int) []track.Wait {
	seen := make(map[track.ID]uint64)
	for _, nodeIdx := range f.Nodes {
		node := nodes[nodeIdx]
		for _, dep := range node.Dependencies {
			if dep.Kind != EdgeScheduled || dep.Track == f.Track {
				continue
			}
			producerFrameIdx, ok := frameIndexOfNode[dep.Track][dep.Node]
			if !ok {
				continue
			}
			producerFrame := sched.Frames[producerFrameIdx]
			if v := seen[dep.Track]; producerFrame.SignalValue > v {
				seen[dep.Track] = producerFrame.SignalValue
			}
		}
	}
	for _, g := range f.MustWaitGuards {
		if g.Live() {
			if v := seen[g.Track]; g.Value > v {
				seen[g.Track] = g.Value
			}
		}
	}

	waits := make([]track.Wait, 0, len(seen))
	for tid, value := range seen {
		tr, ok := e.tracks[tid]
		if !ok {
			continue
		}
		waits = append(waits, track.Wait{Semaphore: tr.Semaphore(), Value: value})
	}
	return waits
}

// applyPreBarrierState writes the Registry state an Init or Acquire Op
// implies: Init moves a resource Uninitialized -> Owned(this family);
// Acquire completes a transfer, moving Released(src,dst) -> Owned(dst).
func (e *Executor) applyPreBarrierState(f *Frame) error {
	for _, op := range append(append([]Op{}, f.Init...), f.Acquire...) {
		if err := e.setOwned(op.Res, op.DstFamily, op.Access, op.Layout); err != nil {
			return err
		}
	}
	return nil
}

// applyReleaseState writes Released(src,dst) for every Release Op this
// frame emitted, leaving the resource mid-transfer until the consumer's
// Acquire is recorded (spec §4.2's Ownership state machine). The guard
// covering the release itself is set by applyFrameGuard, alongside every
// other resource this frame touched.
func (e *Executor) applyReleaseState(f *Frame) error {
	for _, op := range f.Release {
		if op.Res.IsImage {
			s, err := e.reg.GetImage(op.Res.Image)
			if err != nil {
				return err
			}
			s.Ownership = registry.Released(op.SrcFamily, op.DstFamily)
			if err := e.reg.SetImage(op.Res.Image, s); err != nil {
				return err
			}
			continue
		}
		s, err := e.reg.GetBuffer(op.Res.Buffer)
		if err != nil {
			return err
		}
		s.Ownership = registry.Released(op.SrcFamily, op.DstFamily)
		if err := e.reg.SetBuffer(op.Res.Buffer, s); err != nil {
			return err
		}
	}
	return nil
}

// applyFrameGuard sets every resource this frame's nodes declared a usage
// for — read or written, whether or not it crossed a queue family — to
// Guard{f.Track, f.SignalValue}. Without this, a resource only ever
// touched via Init or a same-family Acquire (spec §8 scenario 1: a
// single-queue linear chain with zero acquire/release ops) would keep its
// zero-value Guard forever, and Registry.Tick would treat it as already
// safe to reclaim the moment RemoveImage/RemoveBuffer is called — even
// while this frame's submission is still inflight on the GPU (spec §3,
// §4.5 step 5).
func (e *Executor) applyFrameGuard(f *Frame, nodes []*Node) error {
	g := registry.Guard{Track: f.Track, Value: f.SignalValue}
	seen := make(map[ResKey]bool)
	for _, nodeIdx := range f.Nodes {
		for _, u := range nodes[nodeIdx].Usages {
			if seen[u.Res] {
				continue
			}
			seen[u.Res] = true

			if u.Res.IsImage {
				s, err := e.reg.GetImage(u.Res.Image)
				if err != nil {
					return err
				}
				s.Guard = g
				if err := e.reg.SetImage(u.Res.Image, s); err != nil {
					return err
				}
				continue
			}
			s, err := e.reg.GetBuffer(u.Res.Buffer)
			if err != nil {
				return err
			}
			s.Guard = g
			if err := e.reg.SetBuffer(u.Res.Buffer, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) setOwned(res ResKey, family uint32, access pass.AccessMask, layout pass.Layout) error {
	if res.IsImage {
		s, err := e.reg.GetImage(res.Image)
		if err != nil {
			return err
		}
		s.Ownership = registry.Owned(family)
		s.LastAccessMask = uint32(access)
		s.LastLayout = uint32(layout)
		return e.reg.SetImage(res.Image, s)
	}
	s, err := e.reg.GetBuffer(res.Buffer)
	if err != nil {
		return err
	}
	s.Ownership = registry.Owned(family)
	s.LastAccessMask = uint32(access)
	return e.reg.SetBuffer(res.Buffer, s)
}
