// Package phase holds the process-wide, monotonically advancing phase
// variable every driver operation consults as a precondition (spec.md
// §2 component 3).
package phase

import "sync/atomic"

// Phase is one step of the pipeline: init, parse, parse-cleanup,
// count-members, pre-check, order-precheck, compile, order-compile,
// allocate.
type Phase int32

const (
	Init Phase = iota
	Parse
	ParseCleanup
	CountMembers
	PreCheck
	OrderPrecheck
	Compile
	OrderCompile
	Allocate
)

func (p Phase) String() string {
	switch p {
	case Init:
		return "init"
	case Parse:
		return "parse"
	case ParseCleanup:
		return "parse-cleanup"
	case CountMembers:
		return "count-members"
	case PreCheck:
		return "pre-check"
	case OrderPrecheck:
		return "order-precheck"
	case Compile:
		return "compile"
	case OrderCompile:
		return "order-compile"
	case Allocate:
		return "allocate"
	default:
		return "unknown-phase"
	}
}

// notStarted is the sentinel held before the first Advance call, one
// slot below Init so that the very first Advance(Init) is accepted.
const notStarted int32 = -1

// Machine holds the current phase, advanced monotonically. Use
// NewMachine; the zero Machine is not valid (its cur would read as
// Init already "current", rejecting the first Advance(Init)).
type Machine struct {
	cur int32 // atomic; holds a Phase, or notStarted before first Advance
}

// NewMachine returns a Machine ready for its first Advance(Init) call.
func NewMachine() *Machine {
	return &Machine{cur: notStarted}
}

// Current returns the current phase. Before the first Advance, it
// reads as Init.
func (m *Machine) Current() Phase {
	v := atomic.LoadInt32(&m.cur)
	if v == notStarted {
		return Init
	}
	return Phase(v)
}

// Advance sets the current phase to p. Callers must not go backwards
// or stand still; Advance panics if p is not strictly greater than the
// current phase, since the pipeline never revisits an earlier phase.
func (m *Machine) Advance(p Phase) {
	prev := atomic.SwapInt32(&m.cur, int32(p))
	if prev != notStarted && p <= Phase(prev) {
		panic("phase: cannot move from " + Phase(prev).String() + " to " + p.String())
	}
}

// AtMost reports whether the current phase is <= p, the precondition
// shape used throughout spec.md §4.2 ("Precondition: phase <= parse").
func (m *Machine) AtMost(p Phase) bool {
	return m.Current() <= p
}

// AtLeast reports whether the current phase is >= p.
func (m *Machine) AtLeast(p Phase) bool {
	return m.Current() >= p
}
