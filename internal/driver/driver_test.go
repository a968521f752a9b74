package driver

import (
	"strings"
	"sync"
	"testing"

	"nescc/internal/codegen"
	"nescc/internal/config"
	"nescc/internal/diag"
	"nescc/internal/group"
	"nescc/internal/ir"
	"nescc/internal/members"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// fakeTypeThunk resolves to a fixed, pre-built Type — a front end's
// real dethunkify would walk an AST; the driver only needs the result.
type fakeTypeThunk struct{ t members.Type }

func (f fakeTypeThunk) Dethunkify(bool) (members.Type, error) { return f.t, nil }

// fakeInitThunk tags an initializer expression with a name, so
// fakeEvaluator.InterpretExpr can record evaluation order without
// needing a real expression tree.
type fakeInitThunk struct{ name string }

func (f fakeInitThunk) Dethunkify(bool) (members.Type, error) { return members.Type{}, nil }

// fakeEvaluator is the evaluator.Evaluator/members.Evaluator
// implementation every scenario below configures before running the
// pipeline: BuildTracked returns whatever *members.PrecheckTracked the
// test registered for a function's name, and InterpretExpr records the
// name tag of each fakeInitThunk it evaluates, in call order.
type fakeEvaluator struct {
	mu      sync.Mutex
	order   []string
	tracked map[string]*members.PrecheckTracked
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{tracked: map[string]*members.PrecheckTracked{}}
}

func (e *fakeEvaluator) InterpretPAA(members.Thunk, int) ([]members.Locator, error) {
	return nil, nil
}

func (e *fakeEvaluator) InterpretExpr(init members.Thunk) (members.Value, error) {
	if t, ok := init.(fakeInitThunk); ok {
		e.mu.Lock()
		e.order = append(e.order, t.name)
		e.mu.Unlock()
	}
	return members.Value{}, nil
}

func (e *fakeEvaluator) BuildTracked(f *members.Function) (*members.PrecheckTracked, error) {
	if t, ok := e.tracked[f.Owner.Name]; ok {
		return t, nil
	}
	return &members.PrecheckTracked{}, nil
}

func (e *fakeEvaluator) recordedOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

// fakeIR is a trivial Builder+Optimizer: an empty op stream, unchanged
// by "optimization". Good enough for driver-level orchestration tests,
// which only care that CompileAll reaches codegen in the right order.
type fakeIR struct{}

func (fakeIR) BuildIR(*members.Function) (*ir.Func, error) { return &ir.Func{}, nil }
func (fakeIR) Optimize(fn *ir.Func) (*ir.Func, error)       { return fn, nil }

var _ ir.Builder = fakeIR{}
var _ ir.Optimizer = fakeIR{}

// fakeCodegen records which functions it was asked to generate code
// for, in order.
type fakeCodegen struct {
	mu   sync.Mutex
	seen []string
}

func (g *fakeCodegen) CodeGen(f *members.Function) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, f.Owner.Name)
	return nil
}

var _ codegen.Generator = (*fakeCodegen)(nil)

func pos(name string) diag.Pos { return diag.Pos{File: name + ".ns", Line: 1} }

func newTestCompiler(ev *fakeEvaluator) *Compiler {
	cfg := &config.Config{NumThreads: 2, LangVersion: "v1.0.0"}
	return Init(cfg, ev, fakeIR{}, fakeIR{}, &fakeCodegen{})
}

// TestS1VarDependencyOrdering covers spec.md §8 scenario S1: `var a =
// 1; var b = a + 1;` defines both, b strongly depends on a, and
// property 5's ordering guarantee means a's initializer is always
// evaluated before b's.
func TestS1VarDependencyOrdering(t *testing.T) {
	ev := newFakeEvaluator()
	c := newTestCompiler(ev)

	g := c.DefineGroup(pos("g"), "g", group.Vars)
	ty := fakeTypeThunk{members.Type{Kind: members.Primitive, Size: 1}}

	aOwner, aV := c.DefineGvar(pos("a"), "a", ty, g, nil, nil)
	aV.Init = fakeInitThunk{name: "a"}
	bOwner, bV := c.DefineGvar(pos("b"), "b", ty, g, []*sym.Global{aOwner}, nil)
	bV.Init = fakeInitThunk{name: "b"}

	if err := c.ParseCleanup(); err != nil {
		t.Fatal(err)
	}
	if err := c.CountMembers(); err != nil {
		t.Fatal(err)
	}
	if err := c.PrecheckAll(); err != nil {
		t.Fatal(err)
	}

	if !aOwner.Prechecked() || !bOwner.Prechecked() {
		t.Fatal("both a and b should have their prechecked flag set")
	}
	if order := ev.recordedOrder(); len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("evaluation order = %v, want [a b]", order)
	}
}

// TestS2CallCycleIsRejected covers spec.md §8 scenario S2: `fn x() {
// y(); } fn y() { x(); }` is a strong cycle, rejected with the
// recursive-definition diagnostic naming both participants.
func TestS2CallCycleIsRejected(t *testing.T) {
	ev := newFakeEvaluator()
	c := newTestCompiler(ev)

	xOwner, _ := c.DefineFunction(pos("x"), "x", members.Regular, members.Modifiers{}, nil, nil)
	yOwner, _ := c.DefineFunction(pos("y"), "y", members.Regular, members.Modifiers{}, []*sym.Global{xOwner}, nil)
	xOwner.Strong.Add(int(yOwner.Self())) // close the cycle: x -> y -> x

	if err := c.ParseCleanup(); err != nil {
		t.Fatal(err)
	}

	err := c.CountMembers()
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	derr, ok := err.(*diag.Error)
	if !ok || derr.Kind != diag.KindRecursiveDefinition {
		t.Fatalf("err = %v, want KindRecursiveDefinition", err)
	}
	if !strings.Contains(derr.Error(), "x") {
		t.Errorf("diagnostic should name x, got %v", derr)
	}
	if !strings.Contains(derr.Error(), "y") {
		t.Errorf("diagnostic should name y, got %v", derr)
	}
}

// TestS3ModeNMIPairingAndUsedInModes covers spec.md §8 scenario S3:
// `mode m() nmi n; fn n() nmi {}` succeeds, m's NMIRef resolves to n,
// and n's used_in_modes has exactly the bit for m.
func TestS3ModeNMIPairingAndUsedInModes(t *testing.T) {
	ev := newFakeEvaluator()
	c := newTestCompiler(ev)

	nOwner, _ := c.DefineFunction(pos("n"), "n", members.NMI, members.Modifiers{}, nil, nil)
	mOwner, mFn := c.DefineFunction(pos("m"), "m", members.Mode, members.Modifiers{NMIRef: nOwner}, nil, nil)

	if err := c.ParseCleanup(); err != nil {
		t.Fatal(err)
	}
	if err := c.CountMembers(); err != nil {
		t.Fatal(err)
	}
	if err := c.PrecheckAll(); err != nil {
		t.Fatal(err)
	}

	if mFn.Modifiers.NMIRef != nOwner {
		t.Error("m's NMIRef should resolve to n")
	}
	nf := c.Members.Functions.At(nOwner.Impl())
	if !nf.UsedInModes.Has(int(mOwner.Self())) || nf.UsedInModes.Len() != 1 {
		t.Errorf("n's UsedInModes should have exactly the bit for m, got len=%d", nf.UsedInModes.Len())
	}
}

// TestS4GotoModeFromNMIRejected covers spec.md §8 scenario S4: `mode
// m() nmi n; fn n() nmi { goto mode m2; }` is rejected, since an NMI
// handler may not transitively reach a goto-mode.
func TestS4GotoModeFromNMIRejected(t *testing.T) {
	ev := newFakeEvaluator()
	c := newTestCompiler(ev)

	m2Owner, _ := c.DefineFunction(pos("m2"), "m2", members.Mode, members.Modifiers{}, nil, nil)
	nOwner, _ := c.DefineFunction(pos("n"), "n", members.NMI, members.Modifiers{}, nil, nil)
	c.DefineFunction(pos("m"), "m", members.Mode, members.Modifiers{NMIRef: nOwner}, nil, nil)

	ev.tracked["n"] = &members.PrecheckTracked{
		GotoModes: []members.GotoModeSite{{Pos: pos("n"), Target: m2Owner}},
	}

	if err := c.ParseCleanup(); err != nil {
		t.Fatal(err)
	}
	if err := c.CountMembers(); err != nil {
		t.Fatal(err)
	}
	err := c.PrecheckAll()
	if err == nil {
		t.Fatal("expected a goto-mode-from-nmi error")
	}
	derr, ok := err.(*diag.Error)
	if !ok || derr.Kind != diag.KindModeNMIMisuse {
		t.Fatalf("err = %v, want KindModeNMIMisuse", err)
	}
}

// TestS5GroupVisibilityViolation covers spec.md §8 scenario S5: `fn
// f() : vars(/g1) { read(v2); }` where v2 is in group g2, rejected
// with a group-visibility error naming g2.
func TestS5GroupVisibilityViolation(t *testing.T) {
	ev := newFakeEvaluator()
	c := newTestCompiler(ev)

	g1 := c.DefineGroup(pos("g1"), "g1", group.Vars)
	g2 := c.DefineGroup(pos("g2"), "g2", group.Vars)
	ty := fakeTypeThunk{members.Type{Kind: members.Primitive, Size: 1}}
	v2Owner, _ := c.DefineGvar(pos("v2"), "v2", ty, g2, nil, nil)

	c.DefineFunction(pos("f"), "f", members.Regular,
		members.Modifiers{Groups: []*sym.Global{g1}, Explicit: true}, nil, nil)
	ev.tracked["f"] = &members.PrecheckTracked{UsedVars: []pool.Handle{v2Owner.Impl()}}

	if err := c.ParseCleanup(); err != nil {
		t.Fatal(err)
	}
	if err := c.CountMembers(); err != nil {
		t.Fatal(err)
	}
	err := c.PrecheckAll()
	if err == nil {
		t.Fatal("expected a group-visibility error")
	}
	derr, ok := err.(*diag.Error)
	if !ok || derr.Kind != diag.KindGroupVisibility {
		t.Fatalf("err = %v, want KindGroupVisibility", err)
	}
	if !strings.Contains(derr.Error(), "g2") {
		t.Errorf("diagnostic should name g2, got %v", derr)
	}
}

// TestS6WaitNMIFenceDerivation covers spec.md §8 scenario S6: `fn f()
// { wait nmi; }` called from a mode m sets f.precheck_fences and
// f.precheck_wait_nmi, and after compile f's fence_reads/fence_writes
// equal NMI(m)'s avail_reads/avail_writes under the has_dep the
// compile-phase fence edge establishes.
func TestS6WaitNMIFenceDerivation(t *testing.T) {
	ev := newFakeEvaluator()
	c := newTestCompiler(ev)

	nOwner, _ := c.DefineFunction(pos("n"), "n", members.NMI, members.Modifiers{}, nil, nil)
	fOwner, fFn := c.DefineFunction(pos("f"), "f", members.Regular, members.Modifiers{}, nil, nil)
	c.DefineFunction(pos("m"), "m", members.Mode, members.Modifiers{NMIRef: nOwner}, []*sym.Global{fOwner}, nil)

	ev.tracked["f"] = &members.PrecheckTracked{WaitNMISites: []diag.Pos{pos("f")}}
	ev.tracked["m"] = &members.PrecheckTracked{CalledFuncs: []*sym.Global{fOwner}}

	if err := c.ParseCleanup(); err != nil {
		t.Fatal(err)
	}
	if err := c.CountMembers(); err != nil {
		t.Fatal(err)
	}
	if err := c.PrecheckAll(); err != nil {
		t.Fatal(err)
	}

	if !fFn.PrecheckFences || !fFn.PrecheckWaitNMI {
		t.Fatal("f should have precheck_fences and precheck_wait_nmi set")
	}

	if err := c.CompileAll(); err != nil {
		t.Fatal(err)
	}

	if !fOwner.Strong.Has(int(nOwner.Self())) {
		t.Fatal("f should have gained a strong edge to n via InjectFenceEdges")
	}
	nf := c.Members.Functions.At(nOwner.Impl())
	hasDep := fOwner.Strong.Has(int(nOwner.Self()))
	if !fFn.FenceReads.Equals(nf.AvailReads(hasDep)) {
		t.Error("f.FenceReads should equal NMI(m).avail_reads(has_dep(f, NMI(m)))")
	}
	if !fFn.FenceWrites.Equals(nf.AvailWrites(hasDep)) {
		t.Error("f.FenceWrites should equal NMI(m).avail_writes(has_dep(f, NMI(m)))")
	}
}

// TestGetMainEntryRejectsMissingMain covers spec.md §8 property 12's
// first half.
func TestGetMainEntryRejectsMissingMain(t *testing.T) {
	ev := newFakeEvaluator()
	c := newTestCompiler(ev)

	_, err := c.GetMainEntry()
	if err == nil {
		t.Fatal("expected an entry-point-missing error")
	}
	derr, ok := err.(*diag.Error)
	if !ok || derr.Kind != diag.KindEntryPointMissing {
		t.Fatalf("err = %v, want KindEntryPointMissing", err)
	}
}

// TestGetMainEntryRejectsParameterizedMain covers property 12's other
// half: a main mode declared with parameters is rejected.
func TestGetMainEntryRejectsParameterizedMain(t *testing.T) {
	ev := newFakeEvaluator()
	c := newTestCompiler(ev)

	_, mFn := c.DefineFunction(pos("main"), "main", members.Mode, members.Modifiers{}, nil, nil)
	mFn.ParamThunks = []members.Thunk{fakeTypeThunk{members.Type{Kind: members.Primitive, Size: 1}}}

	_, err := c.GetMainEntry()
	if err == nil {
		t.Fatal("expected an entry-point-missing error for a parameterized main")
	}
	derr, ok := err.(*diag.Error)
	if !ok || derr.Kind != diag.KindEntryPointMissing {
		t.Fatalf("err = %v, want KindEntryPointMissing", err)
	}
}

// TestGetMainEntryAcceptsZeroParamMode covers the success path.
func TestGetMainEntryAcceptsZeroParamMode(t *testing.T) {
	ev := newFakeEvaluator()
	c := newTestCompiler(ev)

	mOwner, _ := c.DefineFunction(pos("main"), "main", members.Mode, members.Modifiers{}, nil, nil)

	g, err := c.GetMainEntry()
	if err != nil {
		t.Fatal(err)
	}
	if g != mOwner {
		t.Error("GetMainEntry should return main's own global")
	}
}
