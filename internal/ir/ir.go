// Package ir implements spec.md §4.7's calc_ir_bitsets: the per-
// function dataflow summary computed once a function's IR has been
// built and optimized (both out of scope — this package only ever
// walks the already-built op stream an external IR builder hands it).
package ir

import (
	"nescc/internal/depgraph"
	"nescc/internal/group"
	"nescc/internal/members"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// OpKind classifies one IR op for the rules calc_ir_bitsets applies.
type OpKind int

const (
	// OpOther is any op calc_ir_bitsets has no special rule for; only
	// its IOImpure flag (if set) is consulted.
	OpOther OpKind = iota
	OpCall
	OpWriteGlobals
	OpReadGlobal
	OpIndexPointer
	OpFence
)

// WriteOp is one (value, location) pair an OpWriteGlobals op writes to
// a gmember. DeadSelfWrite is the IR optimizer's own verdict (out of
// scope here) that this write merely stores back the value most
// recently read from the same location; calc_ir_bitsets elides it.
type WriteOp struct {
	Gmember       pool.Handle
	Group         *sym.Global // the RAM var group owning Gmember
	DeadSelfWrite bool
}

// ReadOp is an OpReadGlobal op's target. ConsumedElsewhere is the
// optimizer's verdict that some consumer other than a matching
// write-back actually uses the read value.
type ReadOp struct {
	Gmember           pool.Handle
	ConsumedElsewhere bool
}

// Op is one instruction in a basic block, already classified and
// annotated by the (out-of-scope) IR builder/optimizer.
type Op struct {
	Kind     OpKind
	IOImpure bool

	Callee *sym.Global // OpCall

	Writes []WriteOp // OpWriteGlobals

	Read *ReadOp // OpReadGlobal

	DerefGroups []*sym.Global // OpIndexPointer: the pointer type's group tail
}

// Block is one basic block's op stream.
type Block struct {
	Ops []Op
}

// Func is the already-built, already-optimized IR for one function:
// calc_ir_bitsets's only input besides the symbol/member pools.
type Func struct {
	Blocks []Block
}

// Builder is the external IR builder's contract (spec.md §1: "the IR
// builder and optimizer suite" is an out-of-scope external
// collaborator): produce a function's Func from its AST/precheck
// products.
type Builder interface {
	BuildIR(f *members.Function) (*Func, error)
}

// Optimizer is the external optimizer's contract: run whatever passes
// it runs (constant folding, dead-store elimination, ...) and annotate
// each Op's DeadSelfWrite/ConsumedElsewhere/IOImpure flags before
// CalcIRBitsets walks the result.
type Optimizer interface {
	Optimize(fn *Func) (*Func, error)
}

// CalcIRBitsets implements spec.md §4.7. f.Owner must already be a
// member of its function's complete parent-mode set (internal/modes
// must have run first), since the final fence-bitset step consults
// ParentModes and each parent mode's paired NMI.
func CalcIRBitsets(gp *group.Pools, tab *sym.Table, p *members.Pools, f *members.Function, fn *Func) {
	f.IOPure = true

	applyPreservedGroups(gp, p, f)

	for _, bb := range fn.Blocks {
		for _, op := range bb.Ops {
			if op.IOImpure {
				f.IOPure = false
			}
			switch op.Kind {
			case OpCall:
				applyCall(p, f, op.Callee)
			case OpWriteGlobals:
				applyWrites(f, op.Writes)
			case OpReadGlobal:
				applyRead(f, op.Read)
			case OpIndexPointer:
				applyDeref(gp, f, op.DerefGroups)
			case OpFence:
				f.IRFences = true
			}
		}
	}

	if f.PrecheckFences {
		allocateFenceBitsets(tab, p, f)
	}
}

// applyPreservedGroups implements globals.cpp's calc_ir_bitsets "Handle
// preserved groups" step: every group a goto-mode site preserves
// (spec.md §4.5's goto-mode group-preservation modifier) contributes
// its group_vars membership and all of its vars' gmembers to this
// function's IR reads, conservatively treating state the mode
// transfer must keep intact as read regardless of whether the IR
// itself ever names it. Only Vars-class groups carry gmembers; a
// preserved Data (ROM) group has none to contribute.
func applyPreservedGroups(gp *group.Pools, p *members.Pools, f *members.Function) {
	if f.Tracked == nil {
		return
	}
	for _, site := range f.Tracked.GotoModes {
		for _, g := range site.PreservedGroups {
			grp := group.Get(gp, g)
			if grp.Class != group.Vars {
				continue
			}
			f.IRGroupVars.Add(int(g.Self()))
			for _, vh := range grp.Members {
				v := p.Gvars.At(vh)
				for i := 0; i < v.GmemberCount; i++ {
					f.IRReads.Add(int(v.GmemberStart) + i)
				}
			}
		}
	}
}

func applyCall(p *members.Pools, f *members.Function, callee *sym.Global) {
	cf := p.Functions.At(callee.Impl())
	f.IRReads.UnionWith(&cf.IRReads)
	f.IRWrites.UnionWith(&cf.IRWrites)
	f.IRGroupVars.UnionWith(&cf.IRGroupVars)
	f.IRCalls.UnionWith(&cf.IRCalls)
	f.IRCalls.Add(int(callee.Self()))
	if !cf.IOPure {
		f.IOPure = false
	}
	if cf.IRFences {
		f.IRFences = true
	}
}

func applyWrites(f *members.Function, writes []WriteOp) {
	for _, w := range writes {
		if w.DeadSelfWrite {
			continue
		}
		f.IRWrites.Add(int(w.Gmember))
		if w.Group != nil {
			f.IRGroupVars.Add(int(w.Group.Self()))
		}
	}
}

func applyRead(f *members.Function, r *ReadOp) {
	if r == nil || !r.ConsumedElsewhere {
		return
	}
	f.IRReads.Add(int(r.Gmember))
}

func applyDeref(gp *group.Pools, f *members.Function, groups []*sym.Global) {
	f.IOPure = false
	for _, g := range groups {
		f.IRDerefGroups.Add(int(g.Self()))
		if group.Get(gp, g).Class == group.Vars {
			f.IRGroupVars.Add(int(g.Self()))
		}
	}
}

// allocateFenceBitsets implements spec.md §4.7's final step: for each
// parent mode, fold in the paired NMI's availability view, biased
// toward the fresh post-compile set when f's global has a strong
// dependency on the NMI's global and toward the conservative
// pre-compile set otherwise. has_dep is transitive over the final
// strong-edge graph (original_source/src/globals.cpp's global_t::
// has_dep, self-true base case included), not merely a direct edge
// check: InjectFenceEdges always adds F a direct edge to its fenced
// NMI, but for a fence-only site that edge starts weak and is promoted
// to strong only when doing so closes no cycle, so has_dep must also
// see any other strong path that happens to already reach the NMI.
func allocateFenceBitsets(tab *sym.Table, p *members.Pools, f *members.Function) {
	f.ParentModes.Each(func(i int) {
		modeGlobal := tab.At(pool.Handle(i))
		modeFn := p.Functions.At(modeGlobal.Impl())
		if modeFn.Modifiers.NMIRef == nil {
			return
		}
		nmiGlobal := modeFn.Modifiers.NMIRef
		nmiFn := p.Functions.At(nmiGlobal.Impl())
		hasDep := depgraph.HasStrongDep(tab, f.Owner.Self(), nmiGlobal.Self())
		f.FenceReads.UnionWith(nmiFn.AvailReads(hasDep))
		f.FenceWrites.UnionWith(nmiFn.AvailWrites(hasDep))
	})
}
