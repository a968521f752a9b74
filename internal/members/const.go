package members

import (
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// GroupData is the per-constant leaf of a Group's Data partition
// (spec.md §2's "group-data" pool category), analogous to GroupVar.
type GroupData struct {
	Const *Const
	Group *sym.Global
}

// Const is a ROM-resident constant (spec.md §3 "Constant"): like a
// Gvar, but its PAA initializer becomes a ROM array and its
// scalar/aggregate initializer is a typed value rather than a
// storage location.
type Const struct {
	Owner *sym.Global

	DeclThunk    Thunk
	ResolvedType Type

	GroupData pool.Handle // handle into Pools.GroupData

	Init      Thunk
	InitIsPAA bool

	RomArray   pool.Handle // set when InitIsPAA: handle into Pools.RomArrays
	ScalarInit *Value      // set when !InitIsPAA

	DeclaredArrayLen int

	GmemberStart pool.Handle
	GmemberCount int
}
