// Package modes implements spec.md §4.6's mode/NMI finalization: the
// single-threaded pass that runs once the precheck ready-queue has
// fully drained, deriving parent-mode reverse maps, NMI dense indices,
// used_in_modes bitsets, precheck-ROMV flags, and one ROM-proc
// allocation per function.
package modes

import (
	"nescc/internal/diag"
	"nescc/internal/members"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// FinalizeModes runs spec.md §4.6 over every function interned in tab.
// It must run after every function has been prechecked and before any
// IR dataflow summarization, since calc_ir_bitsets consults
// ParentModes and the NMI availability accessors this pass populates.
func FinalizeModes(tab *sym.Table, p *members.Pools) error {
	var caught *diag.Error
	func() {
		defer diag.Recover(&caught)
		finalizeModes(tab, p)
	}()
	if caught != nil {
		return caught
	}
	return nil
}

func finalizeModes(tab *sym.Table, p *members.Pools) {
	var nmiGlobals, modeGlobals []*sym.Global

	tab.Each(func(h pool.Handle) {
		g := tab.At(h)
		if g.Kind() != sym.KindFunction {
			return
		}
		f := p.Functions.At(g.Impl())
		switch f.Class {
		case members.NMI:
			if f.PrecheckWaitNMI {
				diag.Bail(diag.Errorf(diag.KindModeNMIMisuse, g.DefPos,
					"nmi handler %q may not wait-nmi inside another nmi handler", g.Name))
			}
			nmiGlobals = append(nmiGlobals, g)
		case members.Mode:
			modeGlobals = append(modeGlobals, g)
		}
	})

	// Step 2 and the IN_MODE half of the ROMV computation: every mode
	// and everything in its transitive call set gets the mode itself
	// added to its parent_modes, and the IN_MODE flag set.
	for _, mg := range modeGlobals {
		mf := p.Functions.At(mg.Impl())
		markReachable(tab, p, mf.PrecheckCalls.AsSlice(), mg, func(cf *members.Function) {
			cf.ParentModes.Add(int(mg.Self()))
			cf.ROMVFlags.SetInMode(true)
		})
		mf.ParentModes.Add(int(mg.Self()))
		mf.ROMVFlags.SetInMode(true)
	}

	// The IN_NMI half: every NMI and its transitive call set. Property 9's
	// other half (spec.md §8: "no program succeeds in which an NMI
	// transitively reaches a goto mode") is checked here too, since this
	// is the one place the full IN_NMI reachable set is already being
	// walked.
	for _, ng := range nmiGlobals {
		nf := p.Functions.At(ng.Impl())
		markReachable(tab, p, nf.PrecheckCalls.AsSlice(), ng, func(cf *members.Function) {
			cf.ROMVFlags.SetInNMI(true)
			rejectGotoModeInNMI(cf)
		})
		nf.ROMVFlags.SetInNMI(true)
		rejectGotoModeInNMI(nf)
		nf.SeedConservativeAvail()
	}

	// Step 3: dense NMI indices, in interning order.
	for i, ng := range nmiGlobals {
		p.Functions.At(ng.Impl()).NMIIndex = i
	}

	// Step 4: each mode sets its bit in its paired NMI's used_in_modes.
	for _, mg := range modeGlobals {
		mf := p.Functions.At(mg.Impl())
		if mf.Modifiers.NMIRef == nil {
			continue
		}
		nf := p.Functions.At(mf.Modifiers.NMIRef.Impl())
		nf.UsedInModes.Add(int(mg.Self()))
	}

	// Step 6: one ROM-proc per function, tagged with the now-final
	// ROMV flags.
	tab.Each(func(h pool.Handle) {
		g := tab.At(h)
		if g.Kind() != sym.KindFunction {
			return
		}
		f := p.Functions.At(g.Impl())
		f.RomProc = p.RomProcs.Emplace(members.RomProc{Function: h, ROMV: f.ROMVFlags})
	})
}

// rejectGotoModeInNMI implements spec.md §8 property 9's first half: a
// function reachable from an NMI handler (including the handler
// itself) may not contain a goto-mode site.
func rejectGotoModeInNMI(f *members.Function) {
	if f.Tracked == nil || len(f.Tracked.GotoModes) == 0 {
		return
	}
	site := f.Tracked.GotoModes[0]
	diag.Bail(diag.Errorf(diag.KindModeNMIMisuse, site.Pos,
		"function %q may not goto-mode while reachable from an nmi handler", f.Owner.Name))
}

// InjectFenceEdges implements spec.md §4.3 step 1, run by the driver
// between PrecheckAll and the compile phase's depgraph.BuildOrder call:
// a function with any wait-nmi site gets a strong edge to each parent
// mode's NMI (it must observe the NMI's final compile-time state); a
// fenced function with no wait-nmi gets only a weak edge (promoted to
// strong later only if safe). Must run after FinalizeModes, since it
// reads ParentModes and Modifiers.NMIRef.
func InjectFenceEdges(tab *sym.Table, p *members.Pools) {
	tab.Each(func(h pool.Handle) {
		g := tab.At(h)
		if g.Kind() != sym.KindFunction {
			return
		}
		f := p.Functions.At(g.Impl())
		if !f.PrecheckFences {
			return
		}
		f.ParentModes.Each(func(i int) {
			modeGlobal := tab.At(pool.Handle(i))
			modeFn := p.Functions.At(modeGlobal.Impl())
			if modeFn.Modifiers.NMIRef == nil {
				return
			}
			nmiGlobal := modeFn.Modifiers.NMIRef
			if f.PrecheckWaitNMI {
				g.Strong.Add(int(nmiGlobal.Self()))
			} else {
				g.Weak.Add(int(nmiGlobal.Self()))
			}
		})
	})
}

// markReachable applies mark to every function named by calls (a
// transitive call set already unioned in by precheck), excluding the
// root itself — callers add the root's own contribution separately,
// since a mode/NMI's self-reachability (it is its own parent mode, or
// runs under its own IN_NMI flag) is unconditional rather than
// discovered through a call edge.
func markReachable(tab *sym.Table, p *members.Pools, calls []int, root *sym.Global, mark func(*members.Function)) {
	for _, i := range calls {
		cg := tab.At(pool.Handle(i))
		if cg == root {
			continue
		}
		mark(p.Functions.At(cg.Impl()))
	}
}
