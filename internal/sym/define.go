package sym

import (
	"nescc/internal/diag"
	"nescc/internal/phase"
	"nescc/internal/pool"
)

// CreateImpl emplaces the classification-specific record for a newly
// defined Global into its pool and returns the pool handle, per
// spec.md §4.2.
type CreateImpl func(g *Global) pool.Handle

// Define fixes g's classification exactly once (spec.md §4.2). It
// bails with a KindRedefinition diagnostic, naming both g's prior
// definition site and at, if g is already defined; otherwise it sets
// kind and at, calls createImpl to emplace the kind-specific record,
// and records the direct/weak dependency edges.
//
// Precondition: the phase machine must be at or before Parse. Define
// itself does not gate on phase beyond that assertion — spec.md §4.2
// only requires phase <= parse, not any particular phase value, since
// definitions stream in throughout parsing.
func Define(m *phase.Machine, g *Global, at diag.Pos, kind Kind, strong, weak []*Global, createImpl CreateImpl) {
	if !m.AtMost(phase.Parse) {
		diag.Bail(diag.Errorf(diag.KindRedefinition, at,
			"cannot define %q after the parse phase", g.Name))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.kind != Undefined {
		diag.Bail(&diag.Error{
			Kind:    diag.KindRedefinition,
			Msg:     "redefinition of " + g.Name,
			Primary: at,
			Related: []diag.Pos{g.DefPos},
		})
	}

	g.kind = kind
	g.DefPos = at
	g.impl = createImpl(g)

	for _, s := range strong {
		g.Strong.Add(int(s.Self()))
	}
	for _, w := range weak {
		g.Weak.Add(int(w.Self()))
	}
}
