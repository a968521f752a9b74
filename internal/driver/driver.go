// Package driver implements spec.md §2's top-level orchestrator: the
// Compiler that owns the shared symbol table, member/group pools, and
// phase machine, and drives every global through the nine-phase
// pipeline (init, parse, parse-cleanup, count-members, pre-check,
// order-precheck, compile, order-compile, allocate), delegating to
// internal/depgraph for ordering, internal/sched for parallel
// dispatch, and internal/precheck/internal/modes/internal/ir for the
// per-phase work itself.
package driver

import (
	"fmt"

	"nescc/internal/codegen"
	"nescc/internal/config"
	"nescc/internal/depgraph"
	"nescc/internal/diag"
	"nescc/internal/evaluator"
	"nescc/internal/graphviz"
	"nescc/internal/group"
	"nescc/internal/ir"
	"nescc/internal/members"
	"nescc/internal/metrics"
	"nescc/internal/modes"
	"nescc/internal/phase"
	"nescc/internal/pool"
	"nescc/internal/precheck"
	"nescc/internal/sched"
	"nescc/internal/sym"
)

// Compiler aggregates every piece of process-wide state spec.md §2
// lists as its components, plus the three out-of-scope external
// collaborators (evaluator, IR builder/optimizer, code generator) a
// concrete front end/back end supplies.
type Compiler struct {
	Config  *config.Config
	Machine *phase.Machine
	Tab     *sym.Table
	Groups  *group.Pools
	Members members.Pools
	Metrics *metrics.Recorder

	Evaluator   evaluator.Evaluator
	IRBuilder   ir.Builder
	IROptimizer ir.Optimizer
	Codegen     codegen.Generator

	// usedGroups accumulates every group reference TouchGroup records,
	// for ParseCleanup's visibility check (spec.md §4.2).
	usedGroups []*sym.Global

	// gvarGroups/constGroups remember the group each Gvar/Const was
	// defined against, since neither record stores its own Group
	// field (spec.md §3's Group/Data partition membership lives on the
	// GroupVar/GroupData leaf count_members allocates, not on the Gvar/
	// Const itself) — DefineGvar/DefineConst populate these so
	// CountMembers can hand the pairing to members.CountMembersGvar/
	// CountMembersConst without the caller re-deriving it.
	gvarGroups  map[pool.Handle]*sym.Global
	constGroups map[pool.Handle]*sym.Global
}

// Init constructs a Compiler bound to cfg and the three external
// collaborators, and advances the phase machine to Init (spec.md §2:
// "phase starts at init").
func Init(cfg *config.Config, ev evaluator.Evaluator, irb ir.Builder, iro ir.Optimizer, cg codegen.Generator) *Compiler {
	m := phase.NewMachine()
	m.Advance(phase.Init)
	c := &Compiler{
		Config:      cfg,
		Machine:     m,
		Groups:      &group.Pools{},
		Metrics:     metrics.NewRecorder(),
		Evaluator:   ev,
		IRBuilder:   irb,
		IROptimizer: iro,
		Codegen:     cg,
		gvarGroups:  map[pool.Handle]*sym.Global{},
		constGroups: map[pool.Handle]*sym.Global{},
	}
	c.Tab = sym.NewTable(m)
	return c
}

// Lookup and LookupSourceless re-expose internal/sym.Table's interning
// operations, so a front end only ever needs a *Compiler.
func (c *Compiler) Lookup(at diag.Pos, name string) *sym.Global { return c.Tab.Lookup(at, name) }

func (c *Compiler) LookupSourceless(name string) *sym.Global { return c.Tab.LookupSourceless(name) }

// TouchGroup records that some definition or use site referenced g as
// a group name, for ParseCleanup's eventual visibility check. A front
// end calls this once per group reference it resolves (a variable's
// declared group, a function's group-list modifier, a deref site's
// group tail, a goto-mode's preserved-group list).
func (c *Compiler) TouchGroup(g *sym.Global) {
	c.usedGroups = append(c.usedGroups, g)
}

// DefineGroup defines name as a new Group of class cls (spec.md §4.2).
func (c *Compiler) DefineGroup(at diag.Pos, name string, cls group.Class) *sym.Global {
	return group.Define(c.Tab, c.Groups, at, name, cls)
}

// DefineFunction defines name as a function (spec.md §3), interning
// its members.Function record and crediting every group named in mods
// to the visibility check TouchGroup feeds.
func (c *Compiler) DefineFunction(at diag.Pos, name string, class members.Class, mods members.Modifiers, strong, weak []*sym.Global) (*sym.Global, *members.Function) {
	for _, g := range mods.Groups {
		c.TouchGroup(g)
	}
	g := c.Tab.Lookup(at, name)
	var fh pool.Handle
	sym.Define(c.Machine, g, at, sym.KindFunction, strong, weak, func(sg *sym.Global) pool.Handle {
		fh = c.Members.Functions.Emplace(members.Function{Owner: sg, Class: class, Modifiers: mods, NMIIndex: -1})
		return fh
	})
	return g, c.Members.Functions.At(fh)
}

// DefineGvar defines name as a RAM variable belonging to groupGlobal
// (spec.md §3 "Variable (gvar)").
func (c *Compiler) DefineGvar(at diag.Pos, name string, declThunk members.Thunk, groupGlobal *sym.Global, strong, weak []*sym.Global) (*sym.Global, *members.Gvar) {
	c.TouchGroup(groupGlobal)
	g := c.Tab.Lookup(at, name)
	var vh pool.Handle
	sym.Define(c.Machine, g, at, sym.KindVariable, strong, weak, func(sg *sym.Global) pool.Handle {
		vh = c.Members.Gvars.Emplace(members.Gvar{Owner: sg, DeclThunk: declThunk})
		return vh
	})
	c.gvarGroups[vh] = groupGlobal
	return g, c.Members.Gvars.At(vh)
}

// DefineConst defines name as a ROM constant belonging to groupGlobal
// (spec.md §3 "Constant"), DefineGvar's twin.
func (c *Compiler) DefineConst(at diag.Pos, name string, declThunk members.Thunk, groupGlobal *sym.Global, strong, weak []*sym.Global) (*sym.Global, *members.Const) {
	c.TouchGroup(groupGlobal)
	g := c.Tab.Lookup(at, name)
	var ch pool.Handle
	sym.Define(c.Machine, g, at, sym.KindConstant, strong, weak, func(sg *sym.Global) pool.Handle {
		ch = c.Members.Consts.Emplace(members.Const{Owner: sg, DeclThunk: declThunk})
		return ch
	})
	c.constGroups[ch] = groupGlobal
	return g, c.Members.Consts.At(ch)
}

// DefineStruct defines name as a struct with the given fields.
func (c *Compiler) DefineStruct(at diag.Pos, name string, fields []members.Field, strong, weak []*sym.Global) (*sym.Global, *members.Struct) {
	g := c.Tab.Lookup(at, name)
	var sh pool.Handle
	sym.Define(c.Machine, g, at, sym.KindStruct, strong, weak, func(sg *sym.Global) pool.Handle {
		sh = c.Members.Structs.Emplace(members.Struct{Owner: sg, Fields: fields})
		return sh
	})
	return g, c.Members.Structs.At(sh)
}

// ParseCleanup implements spec.md §4.2's end-of-parse step: formally
// close the parse phase, then reject any group reference that was
// never defined (group.ValidateVisibility).
func (c *Compiler) ParseCleanup() error {
	var caught *diag.Error
	func() {
		defer diag.Recover(&caught)
		c.Machine.Advance(phase.Parse)
		c.Machine.Advance(phase.ParseCleanup)
		group.ValidateVisibility(c.Machine, c.Tab, c.usedGroups)
	}()
	if caught != nil {
		return caught
	}
	return nil
}

// CountMembers implements spec.md §4.8's count_members pass: every
// struct, variable, and constant is flattened into its Gmember range,
// in dependency order, via the same build-order/ready-queue machinery
// precheck and compile reuse (CountMembersStruct's own doc comment:
// "callers run this in dependency order, which depgraph.BuildOrder on
// the struct's Global already guarantees").
func (c *Compiler) CountMembers() error {
	c.Machine.Advance(phase.CountMembers)

	ready, err := depgraph.BuildOrder(c.Tab)
	if err != nil {
		return err
	}
	return sched.ParallelRun(c.Tab, ready, c.Config.NumThreads, func(h pool.Handle) error {
		g := c.Tab.At(h)
		switch g.Kind() {
		case sym.KindStruct:
			return members.CountMembersStruct(&c.Members.Structs, c.Members.Structs.At(g.Impl()))
		case sym.KindVariable:
			v := c.Members.Gvars.At(g.Impl())
			return members.CountMembersGvar(&c.Members, c.Groups, c.Tab, g.Impl(), v, c.gvarGroups[g.Impl()])
		case sym.KindConstant:
			cn := c.Members.Consts.At(g.Impl())
			return members.CountMembersConst(&c.Members, c.Groups, c.Tab, g.Impl(), cn, c.constGroups[g.Impl()])
		default:
			return nil
		}
	})
}

// PrecheckAll implements spec.md §4.5/§4.6: every function is
// prechecked in dependency order, then internal/modes.FinalizeModes
// runs the single-threaded mode/NMI finalization pass once the queue
// has fully drained.
func (c *Compiler) PrecheckAll() error {
	c.Machine.Advance(phase.PreCheck)

	ready, err := depgraph.BuildOrder(c.Tab)
	if err != nil {
		return err
	}
	err = sched.ParallelRun(c.Tab, ready, c.Config.NumThreads, func(h pool.Handle) error {
		g := c.Tab.At(h)
		stop := c.Metrics.Track("precheck:" + g.Name)
		defer stop()
		switch g.Kind() {
		case sym.KindFunction:
			return precheck.Precheck(c.Evaluator, &c.Members, c.Members.Functions.At(g.Impl()))
		case sym.KindVariable:
			if err := members.PrecheckGvarDatum(c.Evaluator, c.Members.Gvars.At(g.Impl())); err != nil {
				return err
			}
			g.MarkPrechecked()
			return nil
		case sym.KindConstant:
			if err := members.PrecheckConstDatum(c.Evaluator, &c.Members.RomArrays, c.Members.Consts.At(g.Impl())); err != nil {
				return err
			}
			g.MarkPrechecked()
			return nil
		default:
			g.MarkPrechecked()
			return nil
		}
	})
	if err != nil {
		return err
	}

	c.Machine.Advance(phase.OrderPrecheck)
	if err := modes.FinalizeModes(c.Tab, &c.Members); err != nil {
		return err
	}
	if c.Config.Profile {
		if err := writePhaseProfile(c.Metrics, "precheck", "graphs/profile__precheck.pb.gz"); err != nil {
			return err
		}
	}
	return nil
}

// CompileAll implements spec.md §4.3 step 1 and §4.7: inject the
// wait-nmi/fence edges modes.InjectFenceEdges derives from the now-
// finalized parent-mode sets, build dependency order over the
// (possibly augmented) graph, then run IR build/optimize/
// CalcIRBitsets/codegen for every function in that order.
func (c *Compiler) CompileAll() error {
	modes.InjectFenceEdges(c.Tab, &c.Members)
	c.Machine.Advance(phase.Compile)

	ready, err := depgraph.BuildOrder(c.Tab)
	if err != nil {
		return err
	}
	err = sched.ParallelRun(c.Tab, ready, c.Config.NumThreads, func(h pool.Handle) error {
		g := c.Tab.At(h)
		if g.Kind() != sym.KindFunction {
			return nil
		}
		stop := c.Metrics.Track("compile:" + g.Name)
		defer stop()
		return c.compileOne(g)
	})
	if err != nil {
		return err
	}

	c.Machine.Advance(phase.OrderCompile)
	if c.Config.Profile {
		if err := writePhaseProfile(c.Metrics, "compile", "graphs/profile__compile.pb.gz"); err != nil {
			return err
		}
	}
	c.Machine.Advance(phase.Allocate)
	return nil
}

// compileOne runs one function through the out-of-scope IR builder and
// optimizer, summarizes the result with ir.CalcIRBitsets, optionally
// dumps its CFG/SSA graphs, and hands it to the code generator.
func (c *Compiler) compileOne(g *sym.Global) error {
	f := c.Members.Functions.At(g.Impl())

	fn, err := c.IRBuilder.BuildIR(f)
	if err != nil {
		return err
	}
	fn, err = c.IROptimizer.Optimize(fn)
	if err != nil {
		return err
	}
	ir.CalcIRBitsets(c.Groups, c.Tab, &c.Members, f, fn)
	if f.Class == members.NMI {
		f.SeedFreshAvail()
	}

	if c.Config.Graphviz {
		if err := dumpGraphs(g.Name, fn); err != nil {
			return err
		}
	}
	if err := c.Codegen.CodeGen(f); err != nil {
		return err
	}
	g.MarkCompiled()
	return nil
}

// dumpGraphs writes fn's block sequence as spec.md §6's
// graphs/ssa__<name>__<suffix>.gv. The IR's blocks carry no block
// identity or successor edges of their own (those live in the
// out-of-scope builder/optimizer), so this approximates the graph as
// a linear chain in emission order — enough to eyeball the op count
// per block, not a faithful CFG render.
func dumpGraphs(name string, fn *ir.Func) error {
	blocks := make([]graphviz.Block, len(fn.Blocks))
	for i := range fn.Blocks {
		b := graphviz.Block{Name: fmt.Sprintf("b%d", i)}
		if i+1 < len(fn.Blocks) {
			b.Succ = []string{fmt.Sprintf("b%d", i+1)}
		}
		blocks[i] = b
	}
	return graphviz.WriteGraph(graphviz.SSAPath("graphs", name, "post"), name, blocks)
}

// writePhaseProfile writes every snapshot recorded under the given
// label prefix (e.g. "precheck", set by PrecheckAll/CompileAll's
// Metrics.Track calls) to path.
func writePhaseProfile(rec *metrics.Recorder, prefix, path string) error {
	all := rec.Snapshots()
	var matching []metrics.Snapshot
	for _, s := range all {
		if len(s.Label) > len(prefix) && s.Label[:len(prefix)] == prefix {
			matching = append(matching, s)
		}
	}
	return metrics.WriteProfile(path, matching)
}

// GetMainEntry implements spec.md §8 property 12: exactly one function
// named "main" must exist, and it must be a zero-parameter Mode
// function, or compilation fails with KindEntryPointMissing.
func (c *Compiler) GetMainEntry() (*sym.Global, error) {
	g := c.Tab.LookupSourceless("main")
	if g == nil || g.Kind() != sym.KindFunction {
		return nil, diag.Errorf(diag.KindEntryPointMissing, diag.Pos{}, "no function named %q is defined", "main")
	}
	f := c.Members.Functions.At(g.Impl())
	if f.Class != members.Mode {
		return nil, diag.Errorf(diag.KindEntryPointMissing, g.DefPos, "%q must be declared as a mode function", "main")
	}
	if len(f.ParamThunks) != 0 {
		return nil, diag.Errorf(diag.KindEntryPointMissing, g.DefPos, "%q must take no parameters", "main")
	}
	return g, nil
}

// Main runs the whole pipeline from parse-cleanup through allocate,
// for a front end that has already streamed every Define call in.
func (c *Compiler) Main() error {
	if err := c.ParseCleanup(); err != nil {
		return err
	}
	if err := c.CountMembers(); err != nil {
		return err
	}
	if err := c.PrecheckAll(); err != nil {
		return err
	}
	if err := c.CompileAll(); err != nil {
		return err
	}
	if _, err := c.GetMainEntry(); err != nil {
		return err
	}
	return nil
}
