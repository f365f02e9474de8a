package schema

// TypeDefinition is one scalar/object/interface/union/enum/input-object
// entry in the schema's dense type arena.
type TypeDefinition struct {
	ID   TypeID
	Name string
	Kind TypeKind

	// Fields is the ordered range of FieldDefinition ids belonging to this
	// type. Only populated for Object and Interface kinds.
	Fields IDRange

	// InputFields is the ordered range of InputValueDefinition ids
	// belonging to this type. Only populated for InputObject.
	InputFields IDRange

	// PossibleTypes lists the concrete object TypeIDs implementing this
	// interface or belonging to this union.
	PossibleTypes []TypeID

	// Interfaces lists the interface TypeIDs this object implements.
	Interfaces []TypeID

	// EnumValues holds the literal values of an Enum type.
	EnumValues []string

	Directives IDRange

	// NotFullyImplementedIn is room for, per interface or union, the set
	// of subgraphs that cannot resolve every member/implementor. Build
	// does not populate it and the solver does not read it.
	NotFullyImplementedIn map[SubgraphID]bool
}

// FieldDefinition describes one field of an Object or Interface.
type FieldDefinition struct {
	ID       FieldID
	Parent   TypeID
	Name     string
	Type     FieldType
	Args     IDRange
	Directives IDRange

	// Resolvable is the set of subgraphs in which this field can be
	// resolved directly (as opposed to reachable only via a key fetch from
	// another subgraph).
	Resolvable map[SubgraphID]bool

	// Requires holds, per subgraph, the FieldSet this field needs to have
	// been fetched on the parent entity before it can be resolved there
	// (the @requires directive).
	Requires map[SubgraphID]FieldSet

	// Provides holds, per subgraph, the extra FieldSet this field's return
	// type makes available without an additional hop (@provides).
	Provides map[SubgraphID]FieldSet

	// Cost is the @cost weight used by the solver's Steiner-tree edge
	// weighting; zero means the default field weight of 1.
	Cost int

	// ListSize, when non-nil, marks this field as list-returning with a
	// sizing hint (@listSize) the solver uses to scale the field's own
	// cost weight.
	ListSize *ListSizeHint

	// Authorized holds @authorized metadata (argument names gating the
	// pre-execution check, and whether a response-stage check also
	// applies) when present.
	Authorized *AuthorizedMetadata

	// Derived, when non-nil, declares that this field's value can be
	// reconstructed by projecting an adjacent field's sub-selection
	// through a mapping rather than performing a join.
	Derived *DerivedField
}

// ListSizeHint mirrors the federation @listSize directive.
type ListSizeHint struct {
	AssumedSize         int
	SlicingArguments    []string
	SizedFields         []string
	RequireOneSlicing   bool
}

// AuthorizedMetadata mirrors the federation @authorized directive.
type AuthorizedMetadata struct {
	// ArgumentNames lists the field arguments whose values are passed to
	// the pre-execution authorization check as QueryElement arguments.
	ArgumentNames []string
	// Fields is a FieldSet evaluated against the resolved value at the
	// response stage (authorize_response), empty if the directive has no
	// "fields" selection.
	Fields FieldSet
	// Metadata, if set, is passed to the extension as opaque
	// metadata alongside arguments/fields.
	Metadata map[string]interface{}
}

// DerivedField records how to reconstruct a field's value from a sibling
// field's sub-selection instead of dispatching a join. Supplements the
// distilled spec from the original Rust `generated/field/derived.rs`.
type DerivedField struct {
	// From is the name of the sibling field on the same parent type whose
	// resolved value is projected.
	From string
	// Mapping maps response keys of From's sub-selection to response keys
	// on this field's own sub-selection (identity mapping when nil).
	Mapping map[string]string
}

// FieldType is a field's declared type together with its list/non-null
// wrapping, modeled as wrapper bits around a leaf TypeID per the "deep
// inheritance... tagged variant" design note rather than a pointer chain.
type FieldType struct {
	Leaf TypeID
	// Wrapping is read outer-to-inner: e.g. [String!]! is
	// {WrapNonNull, WrapList, WrapNonNull}. The order matters
	// (IsNonNull/IsList/Unwrap read the outermost layer first); kept as a
	// small stack so arbitrary nesting stays exact.
	Wrapping []Wrapper
}

// Wrapper is one layer of list/non-null wrapping, outermost first.
type Wrapper uint8

const (
	WrapNonNull Wrapper = iota
	WrapList
)

// IsNonNull reports whether the outermost wrapping layer is Non-Null.
func (t FieldType) IsNonNull() bool {
	return len(t.Wrapping) > 0 && t.Wrapping[0] == WrapNonNull
}

// IsList reports whether the outermost wrapping layer is List.
func (t FieldType) IsList() bool {
	return len(t.Wrapping) > 0 && t.Wrapping[0] == WrapList
}

// Unwrap strips the outermost wrapping layer, matching the "TypeRef ->
// inner TypeRef" walk the executor package's ingestion code performs
// layer by layer (grounded on hanpama-protograph's
// schema.Unwrap/IsNonNull/IsList helpers of the same name and shape).
func (t FieldType) Unwrap() FieldType {
	if len(t.Wrapping) == 0 {
		return t
	}
	return FieldType{Leaf: t.Leaf, Wrapping: t.Wrapping[1:]}
}

// HasList reports whether any wrapping layer is a List, regardless of
// non-null placement -- used where only "is this field list-valued at
// all" matters (e.g. building a ListShape) rather than the exact nesting.
func (t FieldType) HasList() bool {
	for _, w := range t.Wrapping {
		if w == WrapList {
			return true
		}
	}
	return false
}

// InputValueDefinition describes an argument or input-object field.
type InputValueDefinition struct {
	ID           InputValueID
	Name         string
	Type         FieldType
	HasDefault   bool
	DefaultValue interface{}
	Directives   IDRange
}

// Subgraph is a backend GraphQL service contributing types and fields.
type Subgraph struct {
	ID   SubgraphID
	Name string
	Kind SubgraphKind
	URL  string

	// HeaderRules describes forwarding/injection rules applied to every
	// request sent to this subgraph. Evaluated copy-on-write per request
	// per §5.
	HeaderRules []HeaderRule
}

// HeaderRule is one forwarding/injection rule for a subgraph request.
type HeaderRule struct {
	Op    HeaderOp
	Name  string
	Value string // for HeaderInsert/HeaderRename(new name)
}

type HeaderOp uint8

const (
	HeaderForward HeaderOp = iota
	HeaderInsert
	HeaderRemove
	HeaderRename
)

// Key is a selection set over fields of an entity that uniquely
// identifies instances of that entity within one subgraph.
type Key struct {
	Fields FieldSet
}

// FieldSet is an ordered selection path used by @key/@requires/@provides:
// a flat list of (possibly nested) field names. Kept intentionally simple
// — a FieldSet never contains arguments or aliases, matching the
// federation field-set grammar.
type FieldSet []FieldSetElem

// FieldSetElem is one field within a FieldSet, with optional nested
// sub-selection (e.g. "id" vs "organization { id }").
type FieldSetElem struct {
	Name string
	Sub  FieldSet
}

// EntityDefinition is an Object or Interface plus, per subgraph in which
// it is resolvable, an ordered list of keys.
type EntityDefinition struct {
	Type TypeID
	Keys map[SubgraphID][]Key
}

// TypeSystemDirective is a directive application recorded on a schema
// element (field, type, argument, ...).
type TypeSystemDirective struct {
	Name string
	Args map[string]interface{}
}
