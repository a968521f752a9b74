package members

import (
	"nescc/internal/group"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// CountMembersStructs runs CountMembersStruct over every struct in
// structs, in the order given by order (handles into structs, already
// sorted dependency-first by depgraph.BuildOrder per spec.md §4.8's
// requirement that a struct's own member fields be counted before any
// struct that embeds it).
func CountMembersStructs(structs *pool.Pool[Struct], order []pool.Handle) error {
	for _, h := range order {
		if err := CountMembersStruct(structs, structs.At(h)); err != nil {
			return err
		}
	}
	return nil
}

// allocGmembers emplaces count fresh Gmember records for owner (a Gvar
// or Const handle), typed by ts, and returns the handle of the first
// one. Gmembers for a single owner are always emplaced contiguously, so
// GmemberStart+i addresses the i'th member directly.
func allocGmembers(gmembers *pool.Pool[Gmember], ownerKind OwnerKind, owner pool.Handle, ts []Type) (pool.Handle, int) {
	start := pool.Invalid
	for i, t := range ts {
		h := gmembers.Emplace(Gmember{OwnerKind: ownerKind, Owner: owner, Index: i, Type: t})
		if i == 0 {
			start = h
		}
	}
	return start, len(ts)
}

// CountMembersGvar flattens v's declared type into its Gmember range
// (spec.md §4.8's count_members for a variable): dethunkify the
// declaration (non-fully), flatten struct/TEA composition the same way
// CountMembersStruct does, allocate one Gmember per leaf, register v
// with its group's Vars partition, and intern a GroupVar leaf.
func CountMembersGvar(p *Pools, gp *group.Pools, tab *sym.Table, gvarHandle pool.Handle, v *Gvar, groupGlobal *sym.Global) error {
	t, err := v.DeclThunk.Dethunkify(false)
	if err != nil {
		return err
	}
	v.ResolvedType = t

	var types []Type
	var offsets []int
	hasTEA := false
	flatten(&p.Structs, t, 0, &types, &offsets, &hasTEA)

	start, n := allocGmembers(&p.Gmembers, OwnerGvar, gvarHandle, types)
	v.GmemberStart = start
	v.GmemberCount = n

	gv := GroupVar{Gvar: v, Group: groupGlobal}
	v.GroupVar = p.GroupVars.Emplace(gv)
	group.Get(gp, groupGlobal).Register(gvarHandle)
	return nil
}

// CountMembersConst is CountMembersGvar's twin for ROM constants
// (spec.md §4.8): the same flattening, but registers a GroupData leaf
// against the Data partition instead of Vars.
func CountMembersConst(p *Pools, gp *group.Pools, tab *sym.Table, constHandle pool.Handle, c *Const, groupGlobal *sym.Global) error {
	t, err := c.DeclThunk.Dethunkify(false)
	if err != nil {
		return err
	}
	c.ResolvedType = t

	var types []Type
	var offsets []int
	hasTEA := false
	flatten(&p.Structs, t, 0, &types, &offsets, &hasTEA)

	start, n := allocGmembers(&p.Gmembers, OwnerConst, constHandle, types)
	c.GmemberStart = start
	c.GmemberCount = n

	gd := GroupData{Const: c, Group: groupGlobal}
	c.GroupData = p.GroupData.Emplace(gd)
	group.Get(gp, groupGlobal).Register(constHandle)
	return nil
}
