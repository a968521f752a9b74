// Package diag is the compiler's diagnostic sink. It collects the
// errors and warnings named by spec.md §7, and implements the
// exception-bubbling propagation the spec demands: compiler errors are
// raised with Bail, recovered at worker/phase boundaries, and the first
// one wins.
//
// This mirrors go/internal/base's split between library code (which
// only ever reports) and main (which is the only place allowed to
// exit), but trades base's global exit-status counter for a typed
// panic value, since spec.md §7 explicitly frames errors as exceptions
// that unwind through worker goroutines rather than as an accumulated
// exit code.
package diag

import (
	"fmt"
)

// Kind classifies a compiler error, per spec.md §7's taxonomy.
type Kind int

const (
	KindRedefinition Kind = iota
	KindUndefinedName
	KindRecursiveDefinition
	KindGroupVisibility
	KindModeNMIMisuse
	KindTypeClassification
	KindInitializerShape
	KindEntryPointMissing
)

func (k Kind) String() string {
	switch k {
	case KindRedefinition:
		return "redefinition"
	case KindUndefinedName:
		return "undefined name"
	case KindRecursiveDefinition:
		return "recursive definition"
	case KindGroupVisibility:
		return "group visibility violation"
	case KindModeNMIMisuse:
		return "mode/nmi misuse"
	case KindTypeClassification:
		return "type classification"
	case KindInitializerShape:
		return "initializer shape"
	case KindEntryPointMissing:
		return "entry point missing"
	default:
		return "unknown"
	}
}

// Pos is a minimal source location: the lexer/parser (out of scope)
// produces real ones, but the driver only ever needs to carry and
// print them.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Error is a single diagnostic: a kind, a message, the primary site,
// and any related sites (a redefinition's prior site, a cycle's
// participant declarations).
type Error struct {
	Kind    Kind
	Msg     string
	Primary Pos
	Related []Pos
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Primary, e.Msg)
	for _, r := range e.Related {
		s += fmt.Sprintf("\n\tsee also: %s", r)
	}
	return s
}

// Errorf builds a *Error with a formatted message.
func Errorf(kind Kind, at Pos, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Primary: at}
}

// bail is the panic payload Bail raises and Recover unwraps.
type bail struct{ err *Error }

// Bail raises e as a panic, to be caught by Recover at a worker or
// phase boundary. Used for the compiler errors of spec.md §7, which
// must unwind the current precheck/compile body immediately.
func Bail(e *Error) {
	panic(bail{e})
}

// Recover must be deferred at the top of every goroutine that can call
// into code which may Bail (each ready-queue worker, and any
// synchronous single-threaded phase). If a Bail propagated through,
// *errp is set to it and the panic is absorbed; any other panic value
// is re-raised unchanged.
func Recover(errp **Error) {
	if r := recover(); r != nil {
		if b, ok := r.(bail); ok {
			*errp = b.err
			return
		}
		panic(r)
	}
}

// Sink is the consumed diagnostic interface (spec.md §6): formatting
// and emission, independent of the Bail/Recover unwinding mechanics
// above. A driver-level collector implements it to gather warnings
// that must not halt compilation.
type Sink interface {
	Errorf(kind Kind, at Pos, format string, args ...interface{})
	Warnf(at Pos, format string, args ...interface{})
}

// Collector is the default Sink: it stores warnings and bails
// immediately on the first error, consistent with spec.md §7
// ("Warnings are emitted in place and do not halt").
type Collector struct {
	Warnings []*Error
}

func (c *Collector) Errorf(kind Kind, at Pos, format string, args ...interface{}) {
	Bail(Errorf(kind, at, format, args...))
}

func (c *Collector) Warnf(at Pos, format string, args ...interface{}) {
	c.Warnings = append(c.Warnings, &Error{Kind: -1, Msg: fmt.Sprintf(format, args...), Primary: at})
}
