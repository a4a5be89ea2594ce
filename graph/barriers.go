// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"github.com/vkrmg/rmg/registry"
	"github.com/vkrmg/rmg/track"
)

// ownershipState is the minimal read the barrier pass needs from the
// registry for one resource, independent of whether it is an image or a
// buffer.
type ownershipState struct {
	Ownership registry.Ownership
	Guard     registry.Guard
}

func resOwnership(reg *registry.Registry, res ResKey) (ownershipState, error) {
	if res.IsImage {
		s, err := reg.GetImage(res.Image)
		if err != nil {
			return ownershipState{}, err
		}
		return ownershipState{Ownership: s.Ownership, Guard: s.Guard}, nil
	}
	s, err := reg.GetBuffer(res.Buffer)
	if err != nil {
		return ownershipState{}, err
	}
	return ownershipState{Ownership: s.Ownership, Guard: s.Guard}, nil
}

// emitBarriers performs steps 4 and 5 of spec §4.4: walking every node in
// frame-closing order, it emits OpInit/OpAcquire/OpRelease half-barriers
// onto the frames that need them, tracking each resource's logical owning
// family as scheduling proceeds so later EdgeScheduled edges in the same
// schedule see the effect of earlier ones.
func emitBarriers(frames []*Frame, nodesByTrack map[track.ID][]*Node, familyOf map[track.ID]uint32, reg *registry.Registry) error {
	frameOfNode := make(map[track.ID]map[int]*Frame)
	for _, f := range frames {
		if frameOfNode[f.Track] == nil {
			frameOfNode[f.Track] = make(map[int]*Frame)
		}
		for _, n := range f.Nodes {
			frameOfNode[f.Track][n] = f
		}
	}

	logicalFamily := make(map[ResKey]uint32)
	imported := make(map[ResKey]bool)

	for _, f := range frames {
		nodes := nodesByTrack[f.Track]
		for _, nodeIdx := range f.Nodes {
			node := nodes[nodeIdx]
			thisFamily := familyOf[node.Track]

			for i, u := range node.Usages {
				edge := node.Dependencies[i]

				switch edge.Kind {
				case EdgeImport:
					if imported[u.Res] {
						// Already resolved once for this schedule (can
						// happen if a resource is imported via two
						// independent usages before any scheduled edge
						// links them) — treat as a plain read of the now
						// locally-owned family.
						continue
					}
					imported[u.Res] = true

					st, err := resOwnership(reg, u.Res)
					if err != nil {
						return err
					}
					if st.Guard.Live() {
						f.MustWaitGuards = append(f.MustWaitGuards, st.Guard)
					}
					switch {
					case st.Ownership.IsUninitialized():
						f.Init = append(f.Init, Op{
							Kind: OpInit, Res: u.Res,
							DstFamily: thisFamily, Access: u.Access, Layout: u.Layout,
						})
					default:
						if fam, ok := st.Ownership.IsOwned(); ok {
							if fam != thisFamily {
								return &OwnershipMismatchError{Res: u.Res, PassIndex: node.PassIndex, PassName: node.Pass.Name()}
							}
							// Already owned by this family: no barrier needed.
						} else if src, dst, ok := st.Ownership.IsReleased(); ok {
							if dst != thisFamily {
								return &OwnershipMismatchError{Res: u.Res, PassIndex: node.PassIndex, PassName: node.Pass.Name()}
							}
							f.Acquire = append(f.Acquire, Op{
								Kind: OpAcquire, Res: u.Res,
								SrcFamily: src, DstFamily: dst, Access: u.Access, Layout: u.Layout,
							})
						}
					}
					logicalFamily[u.Res] = thisFamily

				case EdgeScheduled:
					producerFamily, ok := logicalFamily[u.Res]
					if !ok {
						producerFamily = familyOf[edge.Track]
					}
					if producerFamily == thisFamily {
						continue
					}
					producerFrame := frameOfNode[edge.Track][edge.Node]
					producerFrame.Release = append(producerFrame.Release, Op{
						Kind: OpRelease, Res: u.Res,
						SrcFamily: producerFamily, DstFamily: thisFamily,
					})
					f.Acquire = append(f.Acquire, Op{
						Kind: OpAcquire, Res: u.Res,
						SrcFamily: producerFamily, DstFamily: thisFamily, Access: u.Access, Layout: u.Layout,
					})
					logicalFamily[u.Res] = thisFamily
				}
			}
		}
	}
	return nil
}
