package members

import "nescc/internal/pool"

// Pools aggregates every append-only pool members.Function/Gvar/Const/
// Gmember/Struct/GroupVar/GroupData/RomArray records live in, per
// spec.md §2 component 1. One Pools is shared by the whole compiler.
type Pools struct {
	Functions pool.Pool[Function]
	Gvars     pool.Pool[Gvar]
	Consts    pool.Pool[Const]
	Gmembers  pool.Pool[Gmember]
	Structs   pool.Pool[Struct]
	GroupVars pool.Pool[GroupVar]
	GroupData pool.Pool[GroupData]
	RomArrays pool.Pool[RomArray]
	RomProcs  pool.Pool[RomProc]
}

// RomProc is a per-function ROM code slot, allocated once for every
// function after mode/NMI finalization, tagged with its ROMV flag set
// (spec.md §4.6: "Allocate one ROM-proc per function, tagged with its
// ROMV flag set").
type RomProc struct {
	Function pool.Handle
	ROMV     ROMV
}
