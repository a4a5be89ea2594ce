// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vkrmg/rmg/pass"
	"github.com/vkrmg/rmg/registry"
	"github.com/vkrmg/rmg/track"
)

// TrackInfo is the subset of a Track the Scheduler needs: its identity,
// capability mask (track selection, spec §4.4 step 1), and queue-family
// index (ownership-transfer barrier construction, spec §4.4 step 4).
type TrackInfo struct {
	ID         track.ID
	Capability track.Capability
	Family     uint32
}

// NoFittingTrackError is returned when a pass demands capabilities no
// queue family offers. Fatal for the schedule; the registry is left
// unchanged (spec §7).
type NoFittingTrackError struct {
	PassIndex int
	PassName  string
	Required  track.Capability
}

func (e *NoFittingTrackError) Error() string {
	return fmt.Sprintf("scheduler: pass %d (%q) needs capability %#x, no track offers it",
		e.PassIndex, e.PassName, uint32(e.Required))
}

// DeadLockError is returned when the dependency graph contains a cross-track
// cycle (spec §4.4 step 6, §7).
type DeadLockError struct {
	StalledTracks []track.ID
}

func (e *DeadLockError) Error() string {
	return fmt.Sprintf("scheduler: deadlock across tracks %v", e.StalledTracks)
}

// ErrNoSuchResource is returned when a pass declares a usage for a key the
// registry does not know about.
var ErrNoSuchResource = errors.New("scheduler: no such resource")

// OwnershipMismatchError is returned when an imported resource's recorded
// ownership cannot satisfy a pass's track without a release that was never
// recorded — the caller skipped a Release on a prior schedule, or is
// importing a resource still genuinely owned by a different queue family
// (spec §7's AcquireWithoutRelease family of errors).
type OwnershipMismatchError struct {
	Res       ResKey
	PassIndex int
	PassName  string
}

func (e *OwnershipMismatchError) Error() string {
	return fmt.Sprintf("scheduler: pass %d (%q) cannot acquire resource %v without a prior release",
		e.PassIndex, e.PassName, e.Res)
}

type residency struct {
	track track.ID
	node  int
}

// Schedule converts passes, in order, into a Schedule of per-track frames.
// tracks need not be pre-sorted; Schedule sorts them by capability value
// (ascending) to make track selection deterministic across runs (spec §4.4
// "Ordering and tie-breaks").
func Schedule(passes []pass.Pass, tracks []TrackInfo, reg *registry.Registry) (*Schedule, error) {
	ordered := make([]TrackInfo, len(tracks))
	copy(ordered, tracks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Capability < ordered[j].Capability })

	nodesByTrack := make(map[track.ID][]*Node, len(ordered))
	for _, ti := range ordered {
		nodesByTrack[ti.ID] = nil
	}

	resident := make(map[ResKey]residency)

	// Step 1 + 2: track selection and dependency edge construction, in one
	// pass over the input list (spec §4.4).
	for i, p := range passes {
		u := p.Usages()
		required := p.QueueCapability()

		var chosen track.ID
		found := false
		for _, ti := range ordered {
			if ti.Capability.Satisfies(required) {
				chosen = ti.ID
				found = true
				break
			}
		}
		if !found {
			return nil, &NoFittingTrackError{PassIndex: i, PassName: p.Name(), Required: required}
		}

		node := &Node{PassIndex: i, Pass: p, Track: chosen}
		nodeIdx := len(nodesByTrack[chosen])
		nodesByTrack[chosen] = append(nodesByTrack[chosen], node)

		addUsage := func(res ResKey, access Usage) {
			node.Usages = append(node.Usages, access)

			prev, exists := resident[res]
			if !exists {
				node.Dependencies = append(node.Dependencies, Edge{Kind: EdgeImport})
			} else {
				node.Dependencies = append(node.Dependencies, Edge{Kind: EdgeScheduled, Track: prev.track, Node: prev.node})
				producer := nodesByTrack[prev.track][prev.node]
				producer.Dependees = append(producer.Dependees, Edge{Kind: EdgeScheduled, Track: chosen, Node: nodeIdx})
			}
			resident[res] = residency{track: chosen, node: nodeIdx}
		}

		for _, iu := range u.Images {
			if _, err := reg.GetImage(iu.Key); err != nil {
				return nil, fmt.Errorf("%w: image %v", ErrNoSuchResource, iu.Key)
			}
			res := ResKey{Image: iu.Key, IsImage: true}
			addUsage(res, Usage{Res: res, Access: iu.Access, Layout: iu.Layout})
		}
		for _, bu := range u.Buffers {
			if _, err := reg.GetBuffer(bu.Key); err != nil {
				return nil, fmt.Errorf("%w: buffer %v", ErrNoSuchResource, bu.Key)
			}
			res := ResKey{Buffer: bu.Key}
			addUsage(res, Usage{Res: res, Access: bu.Access})
		}
	}

	frames, err := buildFrames(ordered, nodesByTrack)
	if err != nil {
		return nil, err
	}

	frames = compactFrames(frames)

	familyOf := make(map[track.ID]uint32, len(ordered))
	for _, ti := range ordered {
		familyOf[ti.ID] = ti.Family
	}
	if err := emitBarriers(frames, nodesByTrack, familyOf, reg); err != nil {
		return nil, err
	}

	frameOfNode := make(map[track.ID]map[int]*Frame, len(ordered))
	for _, ti := range ordered {
		frameOfNode[ti.ID] = make(map[int]*Frame)
	}
	for _, f := range frames {
		for _, n := range f.Nodes {
			frameOfNode[f.Track][n] = f
		}
	}

	return &Schedule{Frames: frames, nodesByTrack: nodesByTrack, frameOfNode: frameOfNode}, nil
}

// buildFrames performs step 3 of spec §4.4: a second walk over each
// track's nodes, growing an open frame until the next node has an
// unresolved (not-yet-closed) cross-track dependency, at which point the
// open frame is closed and a new one starts. Tracks are round-robined until
// every node belongs to a closed frame, or no progress is made in a full
// pass (DeadLock).
func buildFrames(ordered []TrackInfo, nodesByTrack map[track.ID][]*Node) ([]*Frame, error) {
	cursor := make(map[track.ID]int, len(ordered))
	closed := make(map[track.ID][]bool, len(ordered))
	open := make(map[track.ID]*Frame, len(ordered))
	remaining := 0
	for _, ti := range ordered {
		closed[ti.ID] = make([]bool, len(nodesByTrack[ti.ID]))
		remaining += len(nodesByTrack[ti.ID])
	}

	var closedFrames []*Frame
	closeOpen := func(tid track.ID) {
		f := open[tid]
		if f == nil || len(f.Nodes) == 0 {
			open[tid] = nil
			return
		}
		for _, n := range f.Nodes {
			closed[tid][n] = true
		}
		closedFrames = append(closedFrames, f)
		open[tid] = nil
	}

	for remaining > 0 {
		progressed := false
		for _, ti := range ordered {
			tid := ti.ID
			nodes := nodesByTrack[tid]
			for cursor[tid] < len(nodes) {
				node := nodes[cursor[tid]]
				blocked := false
				for _, e := range node.Dependencies {
					if e.Kind == EdgeScheduled && e.Track != tid && !closed[e.Track][e.Node] {
						blocked = true
						break
					}
				}
				if blocked {
					break
				}
				if open[tid] == nil {
					open[tid] = &Frame{Track: tid}
				}
				open[tid].Nodes = append(open[tid].Nodes, cursor[tid])
				cursor[tid]++
				remaining--
				progressed = true
			}
		}
		// End of round: close every frame that grew this round. A track that
		// is blocked needs its frame closed so dependents elsewhere can
		// unblock next round; a track that just ran out of nodes needs it
		// closed too since nothing more will ever be appended to it.
		for _, ti := range ordered {
			tid := ti.ID
			if open[tid] != nil {
				closeOpen(tid)
				progressed = true
			}
		}
		if !progressed {
			var stalled []track.ID
			for _, ti := range ordered {
				if cursor[ti.ID] < len(nodesByTrack[ti.ID]) {
					stalled = append(stalled, ti.ID)
				}
			}
			return nil, &DeadLockError{StalledTracks: stalled}
		}
	}
	return closedFrames, nil
}

// compactFrames implements the original's remove_redundant_chains /
// remove_empty_frames cleanup (recorder/scheduler.rs): drop frames with no
// nodes (buildFrames never actually emits these, but keeps the invariant
// explicit for future frame-splitting strategies) before barrier emission.
func compactFrames(frames []*Frame) []*Frame {
	out := frames[:0]
	for _, f := range frames {
		if len(f.Nodes) > 0 {
			out = append(out, f)
		}
	}
	return out
}
