package members

import (
	"nescc/internal/diag"
	"nescc/internal/pool"
)

// Evaluator is the compile-time interpreter's contract (spec.md §4.8):
// evaluating an initializer either to a location-vector, for a
// pointer-array-of-addresses (PAA) typed datum, or to a typed scalar
// value otherwise. The interpreter itself (constant folding, struct
// literal evaluation, address-of resolution) is out of scope; only this
// seam is.
type Evaluator interface {
	InterpretPAA(init Thunk, declaredLen int) ([]Locator, error)
	InterpretExpr(init Thunk) (Value, error)
}

// PrecheckGvarDatum implements spec.md §4.8's global_datum.precheck for
// a RAM variable: dethunkify the declaration fully, and if an
// initializer is present, evaluate it down to either a location-vector
// (PAA) or a typed scalar/aggregate value, per v.InitIsPAA. A variable
// with no initializer returns immediately, per the spec's "if no
// initializer, return."
func PrecheckGvarDatum(ev Evaluator, v *Gvar) error {
	t, err := v.DeclThunk.Dethunkify(true)
	if err != nil {
		return err
	}
	v.ResolvedType = t

	if v.Init == nil {
		return nil
	}
	if v.InitIsPAA {
		locs, err := ev.InterpretPAA(v.Init, v.DeclaredArrayLen)
		if err != nil {
			return err
		}
		checkArrayLenMismatch(v.Owner.DefPos, v.DeclaredArrayLen, locs)
		v.PAAInit = locs
		return nil
	}
	val, err := ev.InterpretExpr(v.Init)
	if err != nil {
		return err
	}
	v.ScalarInit = &val
	return nil
}

// PrecheckConstDatum is PrecheckGvarDatum's twin for ROM constants
// (spec.md §4.8). A PAA-typed constant's location-vector is interned as
// a fresh ROM array (the RomArray's Group is left unset), rather than
// kept inline, since a Const's initializer is itself ROM-resident data a
// later constant's initializer may point back into.
func PrecheckConstDatum(ev Evaluator, romArrays *pool.Pool[RomArray], c *Const) error {
	t, err := c.DeclThunk.Dethunkify(true)
	if err != nil {
		return err
	}
	c.ResolvedType = t

	if c.Init == nil {
		return nil
	}
	if c.InitIsPAA {
		locs, err := ev.InterpretPAA(c.Init, c.DeclaredArrayLen)
		if err != nil {
			return err
		}
		checkArrayLenMismatch(c.Owner.DefPos, c.DeclaredArrayLen, locs)
		c.RomArray = romArrays.Emplace(RomArray{Bytes: locs})
		return nil
	}
	val, err := ev.InterpretExpr(c.Init)
	if err != nil {
		return err
	}
	c.ScalarInit = &val
	return nil
}

// checkArrayLenMismatch bails diag.KindInitializerShape when a declared
// array length disagrees with an interpreted location-vector's length
// (spec.md §8's initializer-shape edge case). Both Precheck*Datum entry
// points call it with their owner's declaration site as the position.
func checkArrayLenMismatch(at diag.Pos, declaredLen int, got []Locator) {
	if declaredLen != 0 && declaredLen != len(got) {
		diag.Bail(diag.Errorf(diag.KindInitializerShape, at,
			"initializer has %d elements, declared length is %d", len(got), declaredLen))
	}
}
