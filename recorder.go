package rmg

import (
	"fmt"
	"sync"

	"github.com/vkrmg/rmg/bindless"
	"github.com/vkrmg/rmg/graph"
	"github.com/vkrmg/rmg/internal/thread"
	"github.com/vkrmg/rmg/pass"
	"github.com/vkrmg/rmg/registry"
	"github.com/vkrmg/rmg/track"
)

// TrackConfig describes one queue family a Recorder should open a Track
// against — the caller resolves these from the physical device's queue
// family properties before constructing a Recorder (spec §4.3).
type TrackConfig struct {
	FamilyIndex uint32
	Capability  track.Capability
	Backend     track.Backend
}

// Recorder is the render graph's front end: callers buffer passes with
// AddPass, then call Execute to run the Scheduler and Executor over the
// buffered batch and submit the resulting frames (spec §2, §5).
//
// Grounded on the original's Rmg::record/execute entry points
// (marpii-rmg/src/lib.rs) and, for the buffer-then-flush shape, on this
// repo's own CommandEncoder (encoder.go).
type Recorder struct {
	mu sync.Mutex

	registry *registry.Registry
	bindless *bindless.Table

	tracks  map[track.ID]*track.Track
	infos   []graph.TrackInfo
	allocID *track.Allocator

	binder bindless.DeviceBinder
	sink   graph.BarrierSink

	buffered []pass.Pass

	// submitThread, when non-nil, is the single OS thread every Schedule/
	// Execute call is pinned to (see internal/thread's doc comment for why).
	submitThread *thread.Thread
}

// PinSubmissionThread dedicates a single locked OS thread that every future
// Execute and WaitIdle call runs on. Call it once, right after NewRecorder,
// before any other goroutine touches the Recorder. Safe to never call: by
// default Execute/WaitIdle just run on whatever goroutine invokes them.
func (r *Recorder) PinSubmissionThread() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitThread == nil {
		r.submitThread = thread.New()
	}
}

// Close releases the dedicated submission thread started by
// PinSubmissionThread, if any.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitThread != nil {
		r.submitThread.Stop()
		r.submitThread = nil
	}
}

// NewRecorder constructs a Recorder with a fresh Registry bound to limits
// and feat, and one Track per entry in tracks.
func NewRecorder(limits bindless.Limits, feat bindless.Features, binder bindless.DeviceBinder, sink graph.BarrierSink, tracks []TrackConfig) (*Recorder, error) {
	table, err := bindless.NewTable(limits, feat)
	if err != nil {
		return nil, fmt.Errorf("rmg: new bindless table: %w", err)
	}

	reg := registry.New(table)
	reg.BindDevice(binder)

	alloc := track.NewAllocator()
	trackMap := make(map[track.ID]*track.Track, len(tracks))
	infos := make([]graph.TrackInfo, 0, len(tracks))
	for _, cfg := range tracks {
		id := alloc.Alloc()
		tr, err := track.New(id, cfg.FamilyIndex, cfg.Capability, cfg.Backend)
		if err != nil {
			return nil, fmt.Errorf("rmg: new track for family %d: %w", cfg.FamilyIndex, err)
		}
		trackMap[id] = tr
		infos = append(infos, graph.TrackInfo{ID: id, Capability: cfg.Capability, Family: cfg.FamilyIndex})
	}

	return &Recorder{
		registry: reg,
		bindless: table,
		tracks:   trackMap,
		infos:    infos,
		allocID:  alloc,
		binder:   binder,
		sink:     sink,
	}, nil
}

// Registry exposes the Recorder's Registry so callers can add/remove
// resources between executions.
func (r *Recorder) Registry() *registry.Registry { return r.registry }

// Bindless exposes the Recorder's bindless table, e.g. for binding the
// descriptor sets into a pipeline layout before recording a pass that reads
// bindless handles.
func (r *Recorder) Bindless() *bindless.Table { return r.bindless }

// DeviceBinder exposes the backend binder a pass can use to fetch the
// bindless descriptor sets and pipeline layout it needs to reference
// bindless.Handle values from shader code.
func (r *Recorder) DeviceBinder() bindless.DeviceBinder { return r.binder }

// AddPass buffers p for the next Execute call. Passes execute in the order
// they were added (spec §4.4's deterministic ordering over the input list).
func (r *Recorder) AddPass(p pass.Pass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffered = append(r.buffered, p)
}

// Guard is the set of (track, signal value) pairs a caller can hold onto to
// know when every frame Execute just submitted has finished on the GPU
// (spec §4.5's "returns a guard value").
type Guard map[track.ID]uint64

// Execute runs the Scheduler over every buffered pass, submits the
// resulting Schedule via an Executor, and returns a Guard covering every
// frame it submitted. The buffered pass list is cleared on success.
//
// Mirrors the original's tick-then-record-then-submit sequencing: Tick
// every track to reclaim finished command buffers and let the Registry
// free any resource whose guard has now elapsed, then schedule, then
// execute (spec §5).
func (r *Recorder) Execute() (Guard, error) {
	r.mu.Lock()
	st := r.submitThread
	r.mu.Unlock()

	if st != nil {
		res := st.Call(func() any {
			g, err := r.execute()
			return executeResult{g, err}
		}).(executeResult)
		return res.guard, res.err
	}
	return r.execute()
}

type executeResult struct {
	guard Guard
	err   error
}

func (r *Recorder) execute() (Guard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buffered) == 0 {
		return Guard{}, nil
	}

	observed := make(map[track.ID]uint64, len(r.tracks))
	for id, tr := range r.tracks {
		v, err := tr.Tick()
		if err != nil {
			return nil, fmt.Errorf("rmg: tick track %v: %w", id, err)
		}
		observed[id] = v
	}
	r.registry.Tick(observed)

	sched, err := graph.Schedule(r.buffered, r.infos, r.registry)
	if err != nil {
		return nil, err
	}

	exec := graph.NewExecutor(r.tracks, r.sink, r.registry, recorderRegistryView{r.registry})
	if err := exec.Execute(sched); err != nil {
		return nil, err
	}

	guard := make(Guard, len(sched.Frames))
	for _, f := range sched.Frames {
		if v, ok := guard[f.Track]; !ok || f.SignalValue > v {
			guard[f.Track] = f.SignalValue
		}
	}

	r.buffered = r.buffered[:0]
	return guard, nil
}

// WaitIdle blocks until every track has reclaimed all inflight work.
func (r *Recorder) WaitIdle() error {
	r.mu.Lock()
	st := r.submitThread
	r.mu.Unlock()

	if st != nil {
		res := st.Call(func() any { return r.waitIdle() })
		if res == nil {
			return nil
		}
		return res.(error)
	}
	return r.waitIdle()
}

func (r *Recorder) waitIdle() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, tr := range r.tracks {
		if err := tr.WaitIdle(); err != nil {
			return fmt.Errorf("rmg: wait idle on track %v: %w", id, err)
		}
	}
	return nil
}

// Satisfied reports whether every track named in g has reached its
// recorded signal value.
func (g Guard) Satisfied(observed map[track.ID]uint64) bool {
	for id, value := range g {
		if observed[id] < value {
			return false
		}
	}
	return true
}

// recorderRegistryView adapts *registry.Registry to pass.RegistryView.
type recorderRegistryView struct {
	reg *registry.Registry
}

func (v recorderRegistryView) GetImage(key registry.ImageKey) (registry.TrackedImage, error) {
	return v.reg.GetImage(key)
}

func (v recorderRegistryView) GetBuffer(key registry.BufferKey) (registry.TrackedBuffer, error) {
	return v.reg.GetBuffer(key)
}
