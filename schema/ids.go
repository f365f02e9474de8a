// Package schema holds the immutable, id-indexed representation of a
// composed supergraph: types, fields, input values, directives, subgraph
// membership, join keys, and per-subgraph resolvability.
//
// Everything downstream (operation, solver, plan, executor) indexes into
// a *Schema by the small integer ids defined here instead of holding
// pointers, mirroring the arena style the teacher's federation package
// uses for its introspection-derived type maps.
package schema

// TypeID identifies a TypeDefinition. Ids are dense and assigned during
// Build: the built-in scalars first, then every other type in name order.
type TypeID uint32

// FieldID identifies a FieldDefinition within the schema-wide field arena.
type FieldID uint32

// InputValueID identifies an InputValueDefinition (an argument or an
// input-object field) within the schema-wide input value arena.
type InputValueID uint32

// SubgraphID identifies a Subgraph.
type SubgraphID uint16

// DirectiveID identifies a TypeSystemDirective application.
type DirectiveID uint32

// IDRange is a half-open, non-overlapping range of ids within some arena.
// The zero value is the empty range.
type IDRange struct {
	Start uint32
	End   uint32
}

// Len returns the number of ids in the range.
func (r IDRange) Len() int { return int(r.End - r.Start) }

// Empty reports whether the range contains no ids.
func (r IDRange) Empty() bool { return r.End <= r.Start }

// TypeKind discriminates the sum-type Go can't express directly for
// TypeDefinition. Kept as a small integer discriminant per the "deep
// inheritance" design note: avoid virtual dispatch in hot paths.
type TypeKind uint8

const (
	KindScalar TypeKind = iota
	KindObject
	KindInterface
	KindUnion
	KindEnum
	KindInputObject
)

func (k TypeKind) String() string {
	switch k {
	case KindScalar:
		return "SCALAR"
	case KindObject:
		return "OBJECT"
	case KindInterface:
		return "INTERFACE"
	case KindUnion:
		return "UNION"
	case KindEnum:
		return "ENUM"
	case KindInputObject:
		return "INPUT_OBJECT"
	default:
		return "UNKNOWN"
	}
}

// SubgraphKind distinguishes how a subgraph is reached.
type SubgraphKind uint8

const (
	SubgraphGraphQLEndpoint SubgraphKind = iota
	SubgraphVirtual
	SubgraphIntrospection
)
