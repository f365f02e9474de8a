package operation

import "github.com/thundergraph/gateway/schema"

// BoundOperation is the binder's output and the solver's input: a flat,
// id-indexed representation of one selected operation. Grounded on the
// teacher's normalized-query model in federation/normalize.go (fragments
// flattened, same-alias selections merged) but generalized from a tree of
// *graphql.Selection pointers to flat arenas addressed by BoundFieldID,
// matching the schema package's arena style.
type BoundOperation struct {
	Kind     OperationKind
	RootType schema.TypeID
	Root     BoundSelectionSetID

	Fields        []BoundField
	SelectionSets []BoundSelectionSet
	Arguments     []BoundFieldArgument
	InputValues   []QueryInputValue
	Variables     []VariableDefinition

	ResponseKeys *ResponseKeys

	// QueryModifiers maps an @include/@skip rule to the BoundFields it
	// gates, evaluated before execution of the fields it guards.
	QueryModifiers map[QueryModifierRule][]BoundFieldID

	// ResponseModifiers maps a post-ingestion rule (attached by the
	// authorization weaver or plan materializer) to the BoundFields it
	// impacts.
	ResponseModifiers map[ResponseModifierRule][]BoundFieldID
}

// Field returns the BoundField for id.
func (o *BoundOperation) Field(id BoundFieldID) *BoundField { return &o.Fields[id] }

// SelectionSet returns the BoundSelectionSet for id.
func (o *BoundOperation) SelectionSet(id BoundSelectionSetID) *BoundSelectionSet {
	return &o.SelectionSets[id]
}

// InputValue returns the QueryInputValue for id.
func (o *BoundOperation) InputValue(id QueryInputValueID) *QueryInputValue {
	return &o.InputValues[id]
}

// BoundField is one entry of the operation's flat field arena. See
// BoundFieldKind for the three variants; fields not relevant to a given
// kind are left zero (e.g. Definition is unset for KindTypeName).
type BoundField struct {
	ID   BoundFieldID
	Kind BoundFieldKind

	// ResponseKey is the interned alias (or field name, if unaliased)
	// this field's value is written under in the response.
	ResponseKey ResponseKeyID

	// QueryPosition is monotonic per selection set for fields present in
	// the source document; noQueryPosition for Extra fields.
	QueryPosition int

	// ParentType is the concrete object type this field is bound
	// against. A selection on an interface/union is bound once per
	// possible concrete type, so even __typename and shared interface
	// fields selected directly on the abstract type get a concrete
	// ParentType.
	ParentType schema.TypeID

	// Definition identifies the schema FieldDefinition this field binds
	// to. Unset (zero value) for KindTypeName.
	Definition schema.FieldID

	Location Location

	Args idRangeArgs

	// SelectionSet is the bound sub-selection; only meaningful when
	// HasSelectionSet is true (selection set id 0 is a valid id, so it
	// cannot double as its own "no selection set" sentinel).
	SelectionSet    BoundSelectionSetID
	HasSelectionSet bool

	// HasDerivedFrom marks a field the solver resolved by projecting an
	// already-planned sibling field's value (schema.FieldDefinition.Derived)
	// instead of dispatching a join to another subgraph; DerivedFrom names
	// that sibling field within the same selection set.
	HasDerivedFrom bool
	DerivedFrom    BoundFieldID
}

// idRangeArgs is the argument id-range of one BoundField into
// BoundOperation.Arguments.
type idRangeArgs = idRange

// BoundSelectionSet is an ordered list of field ids within one selection
// position, ordered by (parent entity, query position) so serialization
// preserves request order, per the data model's invariant.
type BoundSelectionSet struct {
	ID     BoundSelectionSetID
	Fields []BoundFieldID
}

// BoundFieldArgument references an InputValueDefinition on the schema and
// the QueryInputValue carrying its (possibly variable-indirected) value.
type BoundFieldArgument struct {
	Definition schema.InputValueID
	Name       string
	Value      QueryInputValueID
}

// QueryInputValueKind discriminates QueryInputValue's sum type.
type QueryInputValueKind uint8

const (
	ValueNull QueryInputValueKind = iota
	ValueScalar
	ValueEnum
	ValueList
	ValueInputObject
	ValueVariable
	ValueDefault
)

// QueryInputValue is a sum type over the kinds of values an argument or
// input-object field can hold, kept as one arena (rather than boxed
// interface{} values scattered across BoundFieldArguments) so input
// coercion reuses allocations the way the data model calls for.
type QueryInputValue struct {
	Kind QueryInputValueKind

	// Scalar holds a string/int64/float64/bool literal for ValueScalar,
	// and the enum value name for ValueEnum.
	Scalar interface{}

	// List holds child value ids for ValueList.
	List []QueryInputValueID

	// Object holds (input field name -> child value id) pairs for
	// ValueInputObject, insertion ordered.
	Object []QueryInputValueField

	// Variable names the VariableDefinition this value indirects through,
	// for ValueVariable.
	Variable VariableID

	// A value of kind ValueDefault marks an argument omitted from the
	// document whose InputValueDefinition.DefaultValue is materialized at
	// coercion time; resolved lazily so literal defaults are not
	// re-copied into every bound operation that omits the argument.
}

// QueryInputValueField is one field of an input-object QueryInputValue.
type QueryInputValueField struct {
	Name  string
	Value QueryInputValueID
}

// VariableDefinition is a `$name: Type` declaration from the operation's
// variable list, with its type resolved against the schema.
type VariableDefinition struct {
	ID           VariableID
	Name         string
	Type         schema.FieldType
	HasDefault   bool
	DefaultValue QueryInputValueID
}

// ResponseKeys interns field response keys (aliases or field names) into
// dense ids, in first-use (i.e. query) order, matching the data model's
// "keeping insertion order (which is query order)" requirement.
type ResponseKeys struct {
	names []string
	index map[string]ResponseKeyID
}

// NewResponseKeys creates an empty interner.
func NewResponseKeys() *ResponseKeys {
	return &ResponseKeys{index: map[string]ResponseKeyID{}}
}

// Intern returns the id for name, assigning a new one if this is its
// first use.
func (r *ResponseKeys) Intern(name string) ResponseKeyID {
	if id, ok := r.index[name]; ok {
		return id
	}
	id := ResponseKeyID(len(r.names))
	r.names = append(r.names, name)
	r.index[name] = id
	return id
}

// Name returns the response key string for id.
func (r *ResponseKeys) Name(id ResponseKeyID) string { return r.names[id] }

// Len returns the number of interned keys.
func (r *ResponseKeys) Len() int { return len(r.names) }

// ModifierKind discriminates @include/@skip.
type ModifierKind uint8

const (
	ModifierInclude ModifierKind = iota
	ModifierSkip
)

// QueryModifierRule is an @include/@skip condition gating whether a
// BoundField (and its sub-selection) is evaluated at all.
type QueryModifierRule struct {
	Kind ModifierKind
	// IfVariable names the boolean variable the condition reads. Only
	// variable conditions become rules: a literal condition is evaluated
	// at bind time (a literal `@include(if: false)` removes the field)
	// and never produces a rule.
	IfVariable string
}

// ResponseModifierRule is a post-ingestion rule — currently only
// authorization decisions attach these — impacting a set of BoundFields.
type ResponseModifierRule struct {
	Name string
}
