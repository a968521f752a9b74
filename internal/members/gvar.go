package members

import (
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// GroupVar is the per-variable leaf of a Group's Vars partition
// (spec.md §2's "group-vars" pool category): one record per Gvar,
// used as the domain of the precheck_group_vars bitset.
type GroupVar struct {
	Gvar  *Gvar
	Group *sym.Global
}

// Gvar is a RAM-resident variable (spec.md §3 "Variable (gvar)").
type Gvar struct {
	Owner *sym.Global

	DeclThunk    Thunk
	ResolvedType Type

	GroupVar pool.Handle // handle into Pools.GroupVars

	Init      Thunk // optional initializer expression; nil if none
	InitIsPAA bool

	PAAInit    []Locator // set when InitIsPAA
	ScalarInit *Value    // set when !InitIsPAA

	DeclaredArrayLen int // 0 means unsized at declaration

	GmemberStart pool.Handle // first Gmember handle assigned by count_members
	GmemberCount int
}
