// Package group implements named RAM/ROM visibility partitions (spec.md
// §3 "Group", §4.2's group registration).
package group

import (
	"sync"

	"nescc/internal/diag"
	"nescc/internal/phase"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// Class distinguishes a RAM variable group from a ROM constant group.
type Class int

const (
	Vars Class = iota // RAM variables
	Data              // ROM constants
)

func (c Class) String() string {
	if c == Data {
		return "data"
	}
	return "vars"
}

// Group is a named visibility partition. It owns the list of
// variables (Vars) or constants (Data) assigned to it, appended as
// each owning definition registers (spec.md §4.2: "register the new
// variable or constant with its group").
type Group struct {
	Owner *sym.Global
	Class Class

	mu      sync.Mutex
	Members []pool.Handle // handles into the var pool (Vars) or const pool (Data)
}

// Register appends h (a var or const handle) to g's member list.
func (g *Group) Register(h pool.Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Members = append(g.Members, h)
}

// Pools holds the append-only pool of Group records, shared by every
// Define call so group.Global.Impl() indexes consistently.
type Pools struct {
	Groups pool.Pool[Group]
}

// Define fixes name's classification as a Group of class cls (spec.md
// §4.2's define_struct-shaped specialization for groups). Redefinition
// and late-definition errors propagate via diag.Bail, same as
// sym.Define.
func Define(tab *sym.Table, p *Pools, at diag.Pos, name string, cls Class) *sym.Global {
	g := tab.Lookup(at, name)
	sym.Define(tab.Phase, g, at, sym.KindGroup, nil, nil, func(sg *sym.Global) pool.Handle {
		return p.Groups.Emplace(Group{Owner: sg, Class: cls})
	})
	return g
}

// Get returns the Group record owned by global g. g must have
// kind sym.KindGroup.
func Get(p *Pools, g *sym.Global) *Group {
	return p.Groups.At(g.Impl())
}

// ValidateVisibility checks that every name in used is a group defined
// by the time this is called (spec.md §3 invariant: "every use of a
// group name must be reached by a definition"), appropriate to call
// once the parse-cleanup phase has finished (spec.md §2's phase
// machine: "Once the parse-cleanup phase completes, no global may be
// undefined").
func ValidateVisibility(m *phase.Machine, tab *sym.Table, used []*sym.Global) {
	if m.Current() < phase.ParseCleanup {
		return
	}
	for _, g := range used {
		if g.Kind() == sym.Undefined {
			diag.Bail(diag.Errorf(diag.KindUndefinedName, g.DefPos, "group %q is never defined", g.Name))
		}
		if g.Kind() != sym.KindGroup {
			diag.Bail(diag.Errorf(diag.KindGroupVisibility, g.DefPos, "%q is not a group", g.Name))
		}
	}
}
