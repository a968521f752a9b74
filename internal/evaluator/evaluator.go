// Package evaluator declares the external expression evaluator's
// contract (spec.md §1: "the expression evaluator and interpreter" is
// an out-of-scope external collaborator, referenced only through this
// interface). internal/members and internal/precheck each consume a
// narrower slice of it (members.Evaluator, precheck.Evaluator); this
// package exists so internal/driver has one name to wire a concrete
// implementation against.
package evaluator

import (
	"nescc/internal/members"
)

// Evaluator is the full external contract spec.md §6 describes: the
// two compile-time interpretation entry points (members.Evaluator) plus
// the per-function dataflow-tracking entry point (precheck.Evaluator).
type Evaluator interface {
	InterpretPAA(init members.Thunk, declaredLen int) ([]members.Locator, error)
	InterpretExpr(init members.Thunk) (members.Value, error)
	BuildTracked(f *members.Function) (*members.PrecheckTracked, error)
}
