package sched

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"nescc/internal/depgraph"
	"nescc/internal/diag"
	"nescc/internal/phase"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

func newTestTable() *sym.Table {
	m := phase.NewMachine()
	m.Advance(phase.Init)
	return sym.NewTable(m)
}

func define(tab *sym.Table, name string, strong ...*sym.Global) *sym.Global {
	g := tab.Lookup(diag.Pos{File: name + ".ns", Line: 1}, name)
	sym.Define(tab.Phase, g, diag.Pos{File: name + ".ns", Line: 1}, sym.KindVariable, strong, nil,
		func(*sym.Global) pool.Handle { return 0 })
	return g
}

// TestParallelRunOrdersByDependency covers spec.md §4.4's ordering
// guarantee: a global's phase method only runs once every strong-dep
// global has already completed the same phase.
func TestParallelRunOrdersByDependency(t *testing.T) {
	tab := newTestTable()
	a := define(tab, "a")
	b := define(tab, "b", a)
	c := define(tab, "c", b)

	ready, err := depgraph.BuildOrder(tab)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var order []string
	names := map[pool.Handle]string{a.Self(): "a", b.Self(): "b", c.Self(): "c"}

	err = ParallelRun(tab, ready, 4, func(h pool.Handle) error {
		mu.Lock()
		order = append(order, names[h])
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 entries", order)
	}
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("order = %v, want a before b before c", order)
	}
}

// TestParallelRunPropagatesFirstError covers spec.md §4.4's abort path:
// a failing phase call aborts the run and its error is returned once
// every worker has exited.
func TestParallelRunPropagatesFirstError(t *testing.T) {
	tab := newTestTable()
	a := define(tab, "a")
	b := define(tab, "b")
	_ = b

	ready, err := depgraph.BuildOrder(tab)
	if err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("precheck failed")
	err = ParallelRun(tab, ready, 4, func(h pool.Handle) error {
		if h == a.Self() {
			return wantErr
		}
		return nil
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

// TestParallelRunRecoversBail covers a phase method that raises a
// diag.Bail instead of returning an error: ParallelRun must still
// surface it as the run's error.
func TestParallelRunRecoversBail(t *testing.T) {
	tab := newTestTable()
	a := define(tab, "a")

	ready, err := depgraph.BuildOrder(tab)
	if err != nil {
		t.Fatal(err)
	}

	err = ParallelRun(tab, ready, 2, func(h pool.Handle) error {
		diag.Bail(diag.Errorf(diag.KindUndefinedName, a.DefPos, "boom"))
		return nil
	})
	if err == nil {
		t.Fatal("expected the bailed error to propagate")
	}
	derr, ok := err.(*diag.Error)
	if !ok || derr.Kind != diag.KindUndefinedName {
		t.Fatalf("err = %v, want KindUndefinedName", err)
	}
}

// TestParallelRunVisitsEveryGlobal covers the independent-globals case:
// all globals with no dependencies between them still each run exactly
// once.
func TestParallelRunVisitsEveryGlobal(t *testing.T) {
	tab := newTestTable()
	for i := 0; i < 20; i++ {
		define(tab, string(rune('a'+i)))
	}
	ready, err := depgraph.BuildOrder(tab)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 20 {
		t.Fatalf("ready = %d globals, want 20 independent globals all ready", len(ready))
	}

	var count int32
	err = ParallelRun(tab, ready, 8, func(h pool.Handle) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 20 {
		t.Fatalf("count = %d, want 20", count)
	}
}
