package members

import (
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// Field is one named, typed field of a Struct declaration.
type Field struct {
	Name string
	Type Thunk
}

// Struct is spec.md §3's struct record: a field list plus the flat,
// recursively-computed member table built by CountMembers.
type Struct struct {
	Owner  *sym.Global
	Fields []Field

	// Populated by CountMembers (spec.md §4.8, §8 property 11).
	MemberCount int
	HasTEA      bool
	FlatTypes   []Type
	FlatOffsets []int
}

// flattenCount returns how many primitive leaves t contributes, per
// spec.md §8 property 11: 1 for a primitive, CountMembers(T) for a
// nested struct, multiplier*CountMembers(element) for a TEA.
func flattenCount(structs *pool.Pool[Struct], t Type) int {
	switch t.Kind {
	case Primitive, Pointer:
		return 1
	case StructRef:
		s := structs.At(t.Struct)
		return s.MemberCount
	case TEA:
		return t.Count * flattenCount(structs, *t.Elem)
	default:
		return 1
	}
}

// flatten appends t's primitive-leaf types (and their byte offsets,
// threaded through offset) onto types/offsets, recursing into nested
// structs and expanding TEA members by their element count. hasTEA is
// set if t or any of its transitive members is a TEA.
func flatten(structs *pool.Pool[Struct], t Type, offset int, types *[]Type, offsets *[]int, hasTEA *bool) int {
	switch t.Kind {
	case Primitive, Pointer:
		*types = append(*types, t)
		*offsets = append(*offsets, offset)
		return offset + t.Size
	case StructRef:
		s := structs.At(t.Struct)
		// A StructRef's own flattening was already computed when that
		// struct was processed by CountMembers; splice its flat tables
		// in directly rather than re-deriving them.
		for i := range s.FlatTypes {
			*types = append(*types, s.FlatTypes[i])
			*offsets = append(*offsets, offset+s.FlatOffsets[i])
		}
		if s.HasTEA {
			*hasTEA = true
		}
		return offset + structSize(s)
	case TEA:
		*hasTEA = true
		elemSize := typeSize(structs, *t.Elem)
		for i := 0; i < t.Count; i++ {
			offset = flatten(structs, *t.Elem, offset, types, offsets, hasTEA)
			_ = elemSize
		}
		return offset
	default:
		*types = append(*types, t)
		*offsets = append(*offsets, offset)
		return offset + t.Size
	}
}

func structSize(s *Struct) int {
	size := 0
	for i, t := range s.FlatTypes {
		end := s.FlatOffsets[i] + t.Size
		if end > size {
			size = end
		}
	}
	return size
}

func typeSize(structs *pool.Pool[Struct], t Type) int {
	switch t.Kind {
	case Primitive, Pointer:
		return t.Size
	case StructRef:
		return structSize(structs.At(t.Struct))
	case TEA:
		return t.Count * typeSize(structs, *t.Elem)
	default:
		return t.Size
	}
}

// CountMembersStruct flattens s's fields into s.FlatTypes/FlatOffsets,
// dethunkifying each field's type (non-fully, per spec.md §4.8), and
// sets s.MemberCount/HasTEA. Fields naming other structs must already
// have been processed (callers run this in dependency order, which
// depgraph.BuildOrder on the struct's Global already guarantees).
func CountMembersStruct(structs *pool.Pool[Struct], s *Struct) error {
	offset := 0
	for _, f := range s.Fields {
		t, err := f.Type.Dethunkify(false)
		if err != nil {
			return err
		}
		offset = flatten(structs, t, offset, &s.FlatTypes, &s.FlatOffsets, &s.HasTEA)
	}
	s.MemberCount = len(s.FlatTypes)
	return nil
}
