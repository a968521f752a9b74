package members

import (
	"testing"

	"nescc/internal/diag"
	"nescc/internal/group"
	"nescc/internal/phase"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

func newTestEnv() (*sym.Table, *group.Pools) {
	m := phase.NewMachine()
	m.Advance(phase.Init)
	return sym.NewTable(m), &group.Pools{}
}

// TestCountMembersGvarAllocatesGmembers covers spec.md §4.8's
// count_members for a scalar variable: one Gmember, the GroupVar leaf
// interned, and the variable registered with its group.
func TestCountMembersGvarAllocatesGmembers(t *testing.T) {
	tab, gp := newTestEnv()
	var p Pools

	groupGlobal := group.Define(tab, gp, diag.Pos{}, "zp", group.Vars)

	v := Gvar{DeclThunk: fakeThunk{t: primitive(1)}}
	vh := p.Gvars.Emplace(v)
	vp := p.Gvars.At(vh)

	if err := CountMembersGvar(&p, gp, tab, vh, vp, groupGlobal); err != nil {
		t.Fatal(err)
	}
	if vp.GmemberCount != 1 {
		t.Fatalf("GmemberCount = %d, want 1", vp.GmemberCount)
	}
	if vp.GmemberStart == pool.Invalid {
		t.Fatal("GmemberStart not set")
	}
	gm := p.Gmembers.At(vp.GmemberStart)
	if gm.OwnerKind != OwnerGvar || gm.Owner != vh {
		t.Errorf("Gmember owner = (%v, %v), want (OwnerGvar, %v)", gm.OwnerKind, gm.Owner, vh)
	}

	grp := group.Get(gp, groupGlobal)
	if len(grp.Members) != 1 || grp.Members[0] != vh {
		t.Errorf("group Members = %v, want [%v]", grp.Members, vh)
	}
}

// TestCountMembersConstStructFlattens covers the Const path with a
// struct-typed declaration: member count matches the struct's own
// flattened MemberCount, not 1.
func TestCountMembersConstStructFlattens(t *testing.T) {
	tab, gp := newTestEnv()
	var p Pools

	s := Struct{Fields: []Field{
		{Name: "a", Type: fakeThunk{t: primitive(1)}},
		{Name: "b", Type: fakeThunk{t: primitive(1)}},
	}}
	if err := CountMembersStruct(&p.Structs, &s); err != nil {
		t.Fatal(err)
	}
	sh := p.Structs.Emplace(s)

	groupGlobal := group.Define(tab, gp, diag.Pos{}, "rodata", group.Data)

	c := Const{DeclThunk: fakeThunk{t: Type{Kind: StructRef, Struct: sh}}}
	ch := p.Consts.Emplace(c)
	cp := p.Consts.At(ch)

	if err := CountMembersConst(&p, gp, tab, ch, cp, groupGlobal); err != nil {
		t.Fatal(err)
	}
	if cp.GmemberCount != 2 {
		t.Fatalf("GmemberCount = %d, want 2", cp.GmemberCount)
	}
}
