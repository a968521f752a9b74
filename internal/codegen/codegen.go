// Package codegen declares the byte-level code generator's contract
// (spec.md §1: "the byte-level code generator" and "the RAM/ROM
// allocator" are out-of-scope external collaborators). internal/driver
// calls CodeGen once a function's IR bitsets are final and its ROM-proc
// has been allocated by internal/modes.
package codegen

import (
	"nescc/internal/members"
)

// Generator is the external code generator's contract: emit bytes for
// f's final IR into its allocated RomProc slot.
type Generator interface {
	CodeGen(f *members.Function) error
}
