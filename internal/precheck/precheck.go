// Package precheck implements spec.md §4.5's per-function precheck: type
// resolution and classification checks, the evaluator-built tracked
// record, and calc_precheck_bitsets's propagation of touched
// group-vars, read/written gmembers, transitive callees, and fence/
// wait-NMI flags through the call graph, enforcing the group-visibility
// rule at pointer-deref, goto-mode and directly-used-gvar sites.
package precheck

import (
	"nescc/internal/diag"
	"nescc/internal/members"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// Evaluator is the external interpreter's contract for this phase
// (spec.md §4.5 step 3): walking a function's body to produce the raw
// dataflow facts calc_precheck_bitsets then aggregates into bitsets.
type Evaluator interface {
	BuildTracked(f *members.Function) (*members.PrecheckTracked, error)
}

// Precheck runs spec.md §4.5 for one function. Its precondition —
// every strong-dep global already prechecked — is the scheduler's
// responsibility (internal/sched.ParallelRun), not this function's.
func Precheck(ev Evaluator, p *members.Pools, f *members.Function) error {
	for i, th := range f.ParamThunks {
		t, err := th.Dethunkify(true)
		if err != nil {
			return err
		}
		if i < len(f.ParamTypes) {
			f.ParamTypes[i] = t
		} else {
			f.ParamTypes = append(f.ParamTypes, t)
		}
		rejectCompileTimeOnly(f, t)
	}
	if f.ReturnThunk != nil {
		t, err := f.ReturnThunk.Dethunkify(true)
		if err != nil {
			return err
		}
		f.ReturnType = t
		rejectCompileTimeOnly(f, t)
	}
	f.TypesResolved = true

	if f.Class == members.CompileTime {
		f.Owner.MarkPrechecked()
		return nil
	}

	tracked, err := ev.BuildTracked(f)
	if err != nil {
		return err
	}
	f.Tracked = tracked

	if err := CalcPrecheckBitsets(p, f); err != nil {
		return err
	}
	f.Owner.MarkPrechecked()
	return nil
}

func rejectCompileTimeOnly(f *members.Function, t members.Type) {
	if t.CompileTimeOnly && f.Class != members.CompileTime {
		diag.Bail(diag.Errorf(diag.KindTypeClassification, f.Owner.DefPos,
			"function %q: compile-time-only type used outside a compile-time function", f.Owner.Name))
	}
}

// CalcPrecheckBitsets implements spec.md §4.5's calc_precheck_bitsets:
// at pointer-deref, goto-mode and directly-used-gvar sites, enforce the
// group-visibility rule; for those sites and for direct calls, fold the
// site's contribution into precheck_group_vars, precheck_rw,
// precheck_calls, precheck_wait_nmi, and precheck_fences. A direct
// call's callee group-vars are unioned in without being checked against
// f's declared group list.
//
// precheck_group_vars is indexed by the contributing Group's own
// sym.Global handle (spec.md GLOSSARY: "Group-vars... Groups over RAM
// variables"), not by the internal/members.GroupVar leaf pool that maps
// one gvar to its group — that pool only ever supplies the Group for a
// directly used gvar; the bitset domain itself is groups, matching
// property 7's "union of F's precheck_group_vars is a subset of L"
// where L is Modifiers.Groups, a list of Group globals.
func CalcPrecheckBitsets(p *members.Pools, f *members.Function) error {
	t := f.Tracked

	for _, d := range t.DerefSites {
		checkVisibility(f, d.Pos, d.Groups)
		for _, g := range d.Groups {
			f.PrecheckGroupVars.Add(int(g.Self()))
		}
	}

	for _, gm := range t.GotoModes {
		checkVisibility(f, gm.Pos, gm.PreservedGroups)
		for _, g := range gm.PreservedGroups {
			f.PrecheckGroupVars.Add(int(g.Self()))
		}
		target := p.Functions.At(gm.Target.Impl())
		target.MergeIncomingPreservedGroups(gm.PreservedGroups)
	}

	for _, vh := range t.UsedVars {
		v := p.Gvars.At(vh)
		gv := p.GroupVars.At(v.GroupVar)
		checkVisibility(f, f.Owner.DefPos, []*sym.Global{gv.Group})
		f.PrecheckGroupVars.Add(int(gv.Group.Self()))
		for i := 0; i < v.GmemberCount; i++ {
			f.PrecheckRW.Add(int(v.GmemberStart) + i)
		}
	}

	anyCalleeFences := false
	anyCalleeWaitNMI := false
	for _, c := range t.CalledFuncs {
		f.PrecheckCalls.Add(int(c.Self()))
		callee := p.Functions.At(c.Impl())
		f.PrecheckGroupVars.UnionWith(&callee.PrecheckGroupVars)
		f.PrecheckRW.UnionWith(&callee.PrecheckRW)
		f.PrecheckCalls.UnionWith(&callee.PrecheckCalls)
		if callee.PrecheckFences {
			anyCalleeFences = true
		}
		if callee.PrecheckWaitNMI {
			anyCalleeWaitNMI = true
		}
	}

	f.PrecheckWaitNMI = len(t.WaitNMISites) > 0 || anyCalleeWaitNMI
	f.PrecheckFences = f.PrecheckWaitNMI || len(t.FenceSites) > 0 || anyCalleeFences

	return nil
}

// checkVisibility implements the group-visibility rule: when f was
// declared with an explicit group list, every group named in groups
// must already be in it.
func checkVisibility(f *members.Function, at diag.Pos, groups []*sym.Global) {
	if !f.Modifiers.Explicit {
		return
	}
	allowed := make(map[pool.Handle]bool, len(f.Modifiers.Groups))
	for _, g := range f.Modifiers.Groups {
		allowed[g.Self()] = true
	}
	for _, g := range groups {
		if !allowed[g.Self()] {
			diag.Bail(diag.Errorf(diag.KindGroupVisibility, at,
				"function %q may not reach group %q, outside its declared group list", f.Owner.Name, g.Name))
		}
	}
}
