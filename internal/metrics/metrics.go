// Package metrics records per-phase and per-global wall-clock timing
// and, when a profile path is configured, writes a pprof profile the
// way the teacher's own google/pprof dependency is built to consume
// (spec.md's driver is otherwise silent on observability; this is the
// ambient stack spec.md §9's Non-goals on "metrics as a feature" still
// expects, per the project's "ambient concerns survive Non-goals"
// convention).
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/pprof/profile"
)

// Recorder accumulates wall-clock samples for named phases and
// globals, safe for concurrent use by the scheduler's worker pool.
type Recorder struct {
	mu    sync.Mutex
	total map[string]time.Duration
	count map[string]int64
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{total: map[string]time.Duration{}, count: map[string]int64{}}
}

// Observe records that label (e.g. "precheck:<name>" or
// "compile:<name>", as the driver uses) took d to complete.
func (r *Recorder) Observe(label string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total[label] += d
	r.count[label]++
}

// Track is a convenience wrapper: call the returned func when the
// tracked operation finishes.
func (r *Recorder) Track(label string) func() {
	start := time.Now()
	return func() { r.Observe(label, time.Since(start)) }
}

// Snapshot is one label's accumulated timing.
type Snapshot struct {
	Label string
	Total time.Duration
	Count int64
}

// Snapshots returns every recorded label's accumulated timing.
func (r *Recorder) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.total))
	for label, total := range r.total {
		out = append(out, Snapshot{Label: label, Total: total, Count: r.count[label]})
	}
	return out
}

// WriteProfile serializes every recorded label as a pprof sample
// (two sample types: "count"/count and "wall"/nanoseconds) and writes
// it to path, creating path's directory if needed.
func WriteProfile(path string, snaps []Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer f.Close()

	locs := make([]*profile.Location, 0, len(snaps))
	funcs := make([]*profile.Function, 0, len(snaps))
	samples := make([]*profile.Sample, 0, len(snaps))
	for i, s := range snaps {
		id := uint64(i + 1)
		fn := &profile.Function{ID: id, Name: s.Label}
		loc := &profile.Location{ID: id, Line: []profile.Line{{Function: fn}}}
		funcs = append(funcs, fn)
		locs = append(locs, loc)
		samples = append(samples, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{s.Count, s.Total.Nanoseconds()},
		})
	}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "count", Unit: "count"},
			{Type: "wall", Unit: "nanoseconds"},
		},
		Sample:   samples,
		Location: locs,
		Function: funcs,
	}
	return p.Write(f)
}
