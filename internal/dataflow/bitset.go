// Package dataflow provides the dense, word-parallel bitsets used by
// precheck and IR dataflow summarization (spec.md §4.5, §4.7, §4.6):
// sets of group-vars, gmembers, functions, and NMI indices. Sets are
// allocated only once the category's count is final, as spec.md §9
// requires ("Dataflow bitsets... allocated only after the count is
// known").
package dataflow

import (
	"golang.org/x/tools/container/intsets"
)

// Set is a sparse bitset over a dense integer domain (a pool.Handle's
// underlying int, reinterpreted). It wraps intsets.Sparse, which stores
// its bits in machine words and iterates by word-parallel set-bit scan,
// matching spec.md §9's "Union and difference are word-parallel;
// iteration is by set-bit scan."
type Set struct {
	s intsets.Sparse
}

// Add sets bit i.
func (b *Set) Add(i int) { b.s.Insert(i) }

// Has reports whether bit i is set.
func (b *Set) Has(i int) bool { return b.s.Has(i) }

// Remove clears bit i.
func (b *Set) Remove(i int) { b.s.Remove(i) }

// UnionWith ORs other into b.
func (b *Set) UnionWith(other *Set) bool { return b.s.UnionWith(&other.s) }

// IsEmpty reports whether the set has no bits set.
func (b *Set) IsEmpty() bool { return b.s.IsEmpty() }

// Len reports the number of set bits.
func (b *Set) Len() int { return b.s.Len() }

// Equals reports whether b and other have identical bits set, used by
// the IR summarizer's idempotence property (spec.md §8 property 10).
func (b *Set) Equals(other *Set) bool { return b.s.Equals(&other.s) }

// Each calls fn for every set bit, in ascending order.
func (b *Set) Each(fn func(i int)) {
	b.s.Do(fn)
}

// Clone returns an independent copy of b.
func (b *Set) Clone() *Set {
	var c Set
	c.s.Copy(&b.s)
	return &c
}

// AsSlice returns the set bits in ascending order.
func (b *Set) AsSlice() []int {
	return b.s.AppendTo(nil)
}
