package depgraph

import (
	"testing"

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

// TestBuildOrderLinearChain covers spec.md §8 property 3 (acyclicity)
// and the ready-set seeding of step 4: only the global with no strong
// deps starts ready.
func TestBuildOrderLinearChain(t *testing.T) {
	tab := newTestTable()
	a := define(tab, "a")
	b := define(tab, "b", a)
	c := define(tab, "c", b)

	ready, err := BuildOrder(tab)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 || ready[0] != a.Self() {
		t.Fatalf("ready = %v, want only a", ready)
	}
	if !a.Reverse.Has(int(b.Self())) {
		t.Error("a's reverse edge to b missing")
	}
	if !b.Reverse.Has(int(c.Self())) {
		t.Error("b's reverse edge to c missing")
	}
	if b.Remaining() != 1 || c.Remaining() != 1 || a.Remaining() != 0 {
		t.Errorf("remaining counts = a:%d b:%d c:%d, want 0 1 1", a.Remaining(), b.Remaining(), c.Remaining())
	}
}

// TestBuildOrderDetectsCycle covers spec.md §8 scenario S2: a strong
// cycle is reported as KindRecursiveDefinition naming both participants.
func TestBuildOrderDetectsCycle(t *testing.T) {
	tab := newTestTable()
	x := tab.Lookup(diag.Pos{File: "x.ns", Line: 1}, "x")
	y := tab.Lookup(diag.Pos{File: "y.ns", Line: 1}, "y")
	sym.Define(tab.Phase, x, diag.Pos{File: "x.ns", Line: 1}, sym.KindFunction, []*sym.Global{y}, nil,
		func(*sym.Global) pool.Handle { return 0 })
	sym.Define(tab.Phase, y, diag.Pos{File: "y.ns", Line: 1}, sym.KindFunction, []*sym.Global{x}, nil,
		func(*sym.Global) pool.Handle { return 0 })

	_, err := BuildOrder(tab)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	derr, ok := err.(*diag.Error)
	if !ok || derr.Kind != diag.KindRecursiveDefinition {
		t.Fatalf("err = %v, want KindRecursiveDefinition", err)
	}
	if len(derr.Related) != 2 {
		t.Errorf("Related = %v, want both cycle participants' sites", derr.Related)
	}
}

// TestBuildOrderPromotesSafeWeakEdge covers spec.md §8 property 4: a
// weak edge with no return strong path is promoted to strong.
func TestBuildOrderPromotesSafeWeakEdge(t *testing.T) {
	tab := newTestTable()
	a := tab.Lookup(diag.Pos{}, "a")
	b := tab.Lookup(diag.Pos{}, "b")
	sym.Define(tab.Phase, a, diag.Pos{}, sym.KindVariable, nil, nil, func(*sym.Global) pool.Handle { return 0 })
	sym.Define(tab.Phase, b, diag.Pos{}, sym.KindVariable, nil, []*sym.Global{a}, func(*sym.Global) pool.Handle { return 0 })

	if _, err := BuildOrder(tab); err != nil {
		t.Fatal(err)
	}
	if !b.Strong.Has(int(a.Self())) {
		t.Fatal("weak edge b->a was not promoted to strong")
	}
	if b.Weak.Len() != 0 {
		t.Errorf("Weak set should be cleared after promotion, got %d entries", b.Weak.Len())
	}
}

// TestBuildOrderSkipsUnsafeWeakPromotion covers property 4's converse:
// a weak edge is left unpromoted when promoting it would create a
// cycle against an existing strong path.
func TestBuildOrderSkipsUnsafeWeakPromotion(t *testing.T) {
	tab := newTestTable()
	a := tab.Lookup(diag.Pos{}, "a")
	b := tab.Lookup(diag.Pos{}, "b")
	// a strongly depends on b; b weakly depends on a. Promoting b->a
	// would close a cycle, so it must stay unpromoted (and be dropped).
	sym.Define(tab.Phase, b, diag.Pos{}, sym.KindVariable, nil, nil, func(*sym.Global) pool.Handle { return 0 })
	sym.Define(tab.Phase, a, diag.Pos{}, sym.KindVariable, []*sym.Global{b}, nil, func(*sym.Global) pool.Handle { return 0 })
	b.Weak.Add(int(a.Self()))

	ready, err := BuildOrder(tab)
	if err != nil {
		t.Fatal(err)
	}
	if b.Strong.Has(int(a.Self())) {
		t.Fatal("unsafe weak edge should not have been promoted")
	}
	if len(ready) != 1 || ready[0] != b.Self() {
		t.Fatalf("ready = %v, want only b (a still strongly depends on b)", ready)
	}
}
