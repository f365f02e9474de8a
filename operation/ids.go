// Package operation turns a parsed GraphQL operation document plus
// variables into a BoundOperation: a flat, id-indexed arena of fields,
// selection sets, arguments and variables with deduplicated response keys
// and resolved types, following the dense-arena style of the schema
// package rather than a pointer-linked AST.
package operation

// BoundFieldID identifies a BoundField within an operation's flat field
// arena.
type BoundFieldID uint32

// BoundSelectionSetID identifies a BoundSelectionSet.
type BoundSelectionSetID uint32

// QueryInputValueID identifies a QueryInputValue within the operation's
// input value arena.
type QueryInputValueID uint32

// VariableID identifies a VariableDefinition.
type VariableID uint32

// ResponseKeyID identifies an interned response key string.
type ResponseKeyID uint32

// Location is a source position within the operation document, carried on
// every BindError.
type Location struct {
	Line   int
	Column int
}

// BoundFieldKind discriminates the three kinds of entries the binder (and
// later the solver, inserting Extra fields) can place in the field arena.
type BoundFieldKind uint8

const (
	// KindTypeName is a __typename request; it carries no schema
	// FieldDefinition.
	KindTypeName BoundFieldKind = iota
	// KindQuery is a field present in the source document.
	KindQuery
	// KindExtra is a field synthesized during planning to satisfy a key
	// fetch or an @requires dependency. It has no query position and its
	// response key is assigned lazily by the solver/plan stage.
	KindExtra
)

// noQueryPosition marks a BoundField with no source query position
// (KindExtra fields, and KindTypeName fields synthesized without one).
const noQueryPosition = -1

// OperationKind identifies which root operation type a BoundOperation was
// bound against.
type OperationKind uint8

const (
	OperationQuery OperationKind = iota
	OperationMutation
	OperationSubscription
)

func (k OperationKind) String() string {
	switch k {
	case OperationMutation:
		return "mutation"
	case OperationSubscription:
		return "subscription"
	default:
		return "query"
	}
}

// idRange is a half-open range into one of this package's own arenas.
// Kept local (rather than reusing schema.IDRange) because it indexes a
// different set of arenas entirely; the two packages' ranges are never
// interchanged.
type idRange struct {
	Start uint32
	End   uint32
}

func (r idRange) Len() int { return int(r.End - r.Start) }
