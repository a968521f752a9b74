// Package sym implements the interned global table and the definition
// protocol (spec.md §4.1, §4.2): the only way new Globals come into
// existence, and the operation that fixes a Global's classification
// exactly once together with its dependency sets.
package sym

import (
	"sync"
	"sync/atomic"

	"nescc/internal/dataflow"
	"nescc/internal/diag"
	"nescc/internal/pool"
)

// Kind is a Global's classification. It starts Undefined and
// transitions to exactly one concrete kind via Define (spec.md §3
// invariant: "Kind transitions at most once").
type Kind int

const (
	Undefined Kind = iota
	KindFunction
	KindVariable
	KindConstant
	KindStruct
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case Undefined:
		return "undefined"
	case KindFunction:
		return "function"
	case KindVariable:
		return "variable"
	case KindConstant:
		return "constant"
	case KindStruct:
		return "struct"
	case KindGroup:
		return "group"
	default:
		return "invalid-kind"
	}
}

// Global is the central entity of spec.md §3: an interned name, a
// classification fixed at most once, the strong/weak/reverse
// dependency sets used by internal/depgraph, and the atomic
// remaining-dependency counter the ready-queue scheduler consumes.
type Global struct {
	Name   string
	DefPos diag.Pos

	self pool.Handle // this Global's own handle in the owning Table's pool

	mu   sync.Mutex
	kind Kind
	impl pool.Handle // index into the kind-specific pool (set by create_impl)

	// Strong and Weak hold direct-dependency edges to other Globals,
	// keyed by their Table handle. Reverse is the inverse of Strong,
	// populated by depgraph.BuildOrder. All three are plain dataflow
	// sets (not yet category-sized dataflow bitsets — those exist only
	// from precheck onward, per spec.md §9); reusing the same sparse,
	// word-parallel container keeps one bitset implementation in the
	// whole driver instead of two.
	Strong  dataflow.Set
	Weak    dataflow.Set
	Reverse dataflow.Set

	// remainingOrColor serves two purposes at different times, by
	// design (spec.md §9 Open Question): during depgraph.BuildOrder's
	// cycle-detection DFS it is a transient 0/1/2 white/gray/black
	// color; build_order's final pass overwrites it with the true
	// count of remaining strong dependencies before any worker starts,
	// and from then on sched.ReadyQueue.Completed decrements it
	// atomically. Only one of these uses is ever active at a time,
	// because build_order itself runs single-threaded (spec.md §4.3).
	remainingOrColor int32

	prechecked int32 // atomic bool
	compiled   int32 // atomic bool
}

// Self returns the Global's own handle in its Table.
func (g *Global) Self() pool.Handle { return g.self }

// Kind returns the Global's classification.
func (g *Global) Kind() Kind {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.kind
}

// Impl returns the handle into the kind-specific pool.
func (g *Global) Impl() pool.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.impl
}

// DFS colors for depgraph's cycle-detection pass.
const (
	ColorWhite int32 = 0
	ColorGray  int32 = 1
	ColorBlack int32 = 2
)

// SetColor sets the transient DFS color. Only depgraph calls this, and
// only during its single-threaded BuildOrder pass.
func (g *Global) SetColor(c int32) { atomic.StoreInt32(&g.remainingOrColor, c) }

// Color reads the transient DFS color.
func (g *Global) Color() int32 { return atomic.LoadInt32(&g.remainingOrColor) }

// InitRemaining overwrites remainingOrColor with n, the count of
// strong dependencies, at the end of depgraph.BuildOrder, before any
// worker starts reading it.
func (g *Global) InitRemaining(n int32) { atomic.StoreInt32(&g.remainingOrColor, n) }

// DecrementRemaining atomically decrements the remaining-dependency
// counter and returns its new value. Called by sched's worker
// completion path for every reverse-edge neighbor of a finished
// Global.
func (g *Global) DecrementRemaining() int32 {
	return atomic.AddInt32(&g.remainingOrColor, -1)
}

// Remaining reads the current remaining-dependency count.
func (g *Global) Remaining() int32 { return atomic.LoadInt32(&g.remainingOrColor) }

// MarkPrechecked records that this Global's precheck phase completed.
func (g *Global) MarkPrechecked() { atomic.StoreInt32(&g.prechecked, 1) }

// Prechecked reports whether MarkPrechecked has been called.
func (g *Global) Prechecked() bool { return atomic.LoadInt32(&g.prechecked) != 0 }

// MarkCompiled records that this Global's compile phase completed.
func (g *Global) MarkCompiled() { atomic.StoreInt32(&g.compiled, 1) }

// Compiled reports whether MarkCompiled has been called.
func (g *Global) Compiled() bool { return atomic.LoadInt32(&g.compiled) != 0 }
