package sym

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"

	"nescc/internal/diag"
	"nescc/internal/phase"
	"nescc/internal/pool"
)

const numBuckets = 1 << 10 // power of two, so hash masking is a bitwise AND

// Table is the interned global table (spec.md §4.1): name -> *Global,
// hash-interning on first sight. Two Lookups of byte-equal names
// always return the same Global (spec.md §8 property 1); references
// stay valid for the process lifetime because the backing pool is
// append-only.
type Table struct {
	Phase *phase.Machine

	mu      sync.Mutex
	buckets [numBuckets][]pool.Handle
	pool    pool.Pool[Global]
}

// NewTable returns an empty Table bound to m, the shared phase
// machine every Define precondition check consults.
func NewTable(m *phase.Machine) *Table {
	return &Table{Phase: m}
}

// hash64 computes a 64-bit hash of name's bytes using blake2b, per
// spec.md §4.1 ("compute a 64-bit hash of the bytes"). blake2b is
// cryptographically strong, which keeps bucket placement robust
// against adversarially chosen identifiers without the driver having
// to hand-roll and tune its own hash function.
func hash64(name string) uint64 {
	sum := blake2b.Sum256([]byte(name))
	return binary.LittleEndian.Uint64(sum[:8])
}

func bucketIndex(name string) uint64 {
	return hash64(name) & (numBuckets - 1)
}

// At returns the Global at handle h.
func (t *Table) At(h pool.Handle) *Global {
	return t.pool.At(h)
}

// Len returns the number of interned globals.
func (t *Table) Len() int { return t.pool.Len() }

// Each calls fn for every interned Global's handle.
func (t *Table) Each(fn func(pool.Handle)) { t.pool.Each(fn) }

// Lookup returns the Global for name, interning a new Undefined
// Global on first sight. at is recorded as the Global's defining
// position only when it is first created; later lookups do not
// overwrite it.
func (t *Table) Lookup(at diag.Pos, name string) *Global {
	idx := bucketIndex(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, h := range t.buckets[idx] {
		g := t.pool.At(h)
		if g.Name == name {
			return g
		}
	}

	h := t.pool.Emplace(Global{Name: name, DefPos: at})
	g := t.pool.At(h)
	g.self = h
	t.buckets[idx] = append(t.buckets[idx], h)
	return g
}

// LookupSourceless returns the Global for name if it has already been
// interned, or nil otherwise. It never mutates the table.
func (t *Table) LookupSourceless(name string) *Global {
	idx := bucketIndex(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, h := range t.buckets[idx] {
		g := t.pool.At(h)
		if g.Name == name {
			return g
		}
	}
	return nil
}
