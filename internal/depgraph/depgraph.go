// Package depgraph implements spec.md §4.3's build_order: weak-edge
// promotion, cycle detection over the strong-edge graph, and
// reverse-edge/remaining-counter population that seeds the ready-queue
// scheduler in internal/sched.
//
// Grounded on go/internal/mvs/mvs.go's buildList: a worklist traversal
// over a requirement graph that folds discovery and a running per-node
// tally into one pass, generalized here from "minimal version" to
// "acyclic strong dependency order."
package depgraph

import (
	"fmt"
	"strings"

	"nescc/internal/dataflow"
	"nescc/internal/diag"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// BuildOrder runs spec.md §4.3 steps 2-4 over every Global interned in
// tab: weak-edge promotion, white/gray/black cycle detection, reverse
// edge population, and remaining-counter initialization. It returns the
// handles of every Global with zero remaining strong dependencies —
// the initial contents of the ready queue.
//
// Step 1 (compile-phase wait-nmi/fence edges) is not this package's
// concern: those edges are added directly to the affected Globals'
// Strong/Weak sets by internal/modes before BuildOrder runs, since they
// depend on NMI/mode records this package does not know about.
//
// BuildOrder must run single-threaded, per spec.md §4.3's note that
// cycle detection reuses each Global's remaining-counter field as a
// transient DFS color: no other BuildOrder call, and no ready-queue
// worker from a previous phase, may be running concurrently.
func BuildOrder(tab *sym.Table) (ready []pool.Handle, err error) {
	var caught *diag.Error
	func() {
		defer diag.Recover(&caught)
		promoteWeakEdges(tab)
		detectCycles(tab)
	}()
	if caught != nil {
		return nil, caught
	}
	return populateReverseAndSeed(tab), nil
}

// promoteWeakEdges implements step 2: a weak edge G->W becomes strong
// unless G already has it as strong, or W already has a strong path
// back to G (which would turn the promotion into a cycle). The weak set
// is cleared afterward regardless of how many edges were promoted.
func promoteWeakEdges(tab *sym.Table) {
	tab.Each(func(h pool.Handle) {
		g := tab.At(h)
		for _, w := range g.Weak.AsSlice() {
			if g.Strong.Has(w) {
				continue
			}
			if hasStrongPath(tab, pool.Handle(w), h) {
				continue
			}
			g.Strong.Add(w)
		}
		g.Weak = dataflow.Set{}
	})
}

// hasStrongPath reports whether to is reachable from from by following
// only strong edges.
func hasStrongPath(tab *sym.Table, from, to pool.Handle) bool {
	return HasStrongDep(tab, from, to)
}

// HasStrongDep reports whether to is reachable from from over strong
// edges only, exactly original_source/src/globals.cpp's recursive
// global_t::has_dep: every global depends on itself (the `this ==
// &other` base case), and otherwise depends on anything any of its
// strong ideps depends on, transitively. Used both by promoteWeakEdges
// (is promoting this weak edge safe, or would it close a cycle) and by
// internal/ir's fence-bitset has_dep asymmetry (does this function have
// any strong dependency path to its fenced NMI, not merely a direct
// edge to it).
func HasStrongDep(tab *sym.Table, from, to pool.Handle) bool {
	if from == to {
		return true
	}
	visited := map[pool.Handle]bool{from: true}
	queue := []pool.Handle{from}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		for _, d := range tab.At(h).Strong.AsSlice() {
			dh := pool.Handle(d)
			if dh == to {
				return true
			}
			if !visited[dh] {
				visited[dh] = true
				queue = append(queue, dh)
			}
		}
	}
	return false
}

// detectCycles implements step 3: a white/gray/black DFS over the
// strong graph, resetting each Global's reverse-edge set along the way
// (spec.md §4.3: "Also reset reverse-edge sets in this pass"). Finding a
// gray neighbor means a cycle; the offending path bails as a
// diag.KindRecursiveDefinition error.
func detectCycles(tab *sym.Table) {
	tab.Each(func(h pool.Handle) {
		g := tab.At(h)
		g.SetColor(sym.ColorWhite)
		g.Reverse = dataflow.Set{}
	})
	tab.Each(func(h pool.Handle) {
		g := tab.At(h)
		if g.Color() == sym.ColorWhite {
			dfs(tab, g, nil)
		}
	})
}

func dfs(tab *sym.Table, g *sym.Global, path []*sym.Global) {
	g.SetColor(sym.ColorGray)
	myPath := make([]*sym.Global, len(path)+1)
	copy(myPath, path)
	myPath[len(path)] = g

	for _, d := range g.Strong.AsSlice() {
		dep := tab.At(pool.Handle(d))
		switch dep.Color() {
		case sym.ColorWhite:
			dfs(tab, dep, myPath)
		case sym.ColorGray:
			raiseCycle(myPath, dep)
		}
	}
	g.SetColor(sym.ColorBlack)
}

// raiseCycle builds spec.md §8 property 6's diagnostic: the recursive
// root named first, every participant's declaration site attached as a
// Related position, in cycle order.
func raiseCycle(path []*sym.Global, root *sym.Global) {
	start := 0
	for i, g := range path {
		if g == root {
			start = i
			break
		}
	}
	cycle := path[start:]

	names := make([]string, 0, len(cycle)+1)
	related := make([]diag.Pos, 0, len(cycle))
	for _, g := range cycle {
		names = append(names, g.Name)
		related = append(related, g.DefPos)
	}
	names = append(names, root.Name)

	diag.Bail(&diag.Error{
		Kind:    diag.KindRecursiveDefinition,
		Msg:     fmt.Sprintf("recursive definition: %s", strings.Join(names, " -> ")),
		Primary: root.DefPos,
		Related: related,
	})
}

// populateReverseAndSeed implements step 4: for every strong edge A->B,
// record B's reverse edge to A; set every Global's remaining-counter to
// its strong out-degree; collect the zero-counter Globals as the
// initial ready queue.
func populateReverseAndSeed(tab *sym.Table) []pool.Handle {
	tab.Each(func(h pool.Handle) {
		g := tab.At(h)
		for _, d := range g.Strong.AsSlice() {
			tab.At(pool.Handle(d)).Reverse.Add(int(h))
		}
	})

	var ready []pool.Handle
	tab.Each(func(h pool.Handle) {
		g := tab.At(h)
		g.InitRemaining(int32(g.Strong.Len()))
		if g.Remaining() == 0 {
			ready = append(ready, h)
		}
	})
	return ready
}
