package operation

import "github.com/thundergraph/gateway/schema"

// AddExtraField appends a solver-synthesized BoundField (KindExtra) to
// the operation's flat field arena, per the data model's "a field
// synthesized during planning to satisfy a key/@requires set; has no
// query_position and its response_key is assigned lazily". responseKey
// is always the field's schema name — key/@requires fetches are never
// aliased, there being no user alias to preserve.
func (o *BoundOperation) AddExtraField(parentType schema.TypeID, def schema.FieldID, responseKey string) BoundFieldID {
	id := BoundFieldID(len(o.Fields))
	o.Fields = append(o.Fields, BoundField{
		ID:            id,
		Kind:          KindExtra,
		ResponseKey:   o.ResponseKeys.Intern(responseKey),
		QueryPosition: noQueryPosition,
		ParentType:    parentType,
		Definition:    def,
	})
	return id
}

// AddExtraTypeName appends a synthesized __typename BoundField (the
// solver adds these ahead of entity key fetches so the executor can
// dispatch polymorphic shapes by __typename at ingestion).
func (o *BoundOperation) AddExtraTypeName(parentType schema.TypeID) BoundFieldID {
	id := BoundFieldID(len(o.Fields))
	o.Fields = append(o.Fields, BoundField{
		ID:            id,
		Kind:          KindTypeName,
		ResponseKey:   o.ResponseKeys.Intern("__typename"),
		QueryPosition: noQueryPosition,
		ParentType:    parentType,
	})
	return id
}

// AddExtraSelectionSet allocates an empty BoundSelectionSet, used for a
// nested Extra field's sub-selection (e.g. a multi-field key like
// "organization { id }").
func (o *BoundOperation) AddExtraSelectionSet() BoundSelectionSetID {
	id := BoundSelectionSetID(len(o.SelectionSets))
	o.SelectionSets = append(o.SelectionSets, BoundSelectionSet{ID: id})
	return id
}

// AppendField appends field to set's field list. Exposed so callers never
// need to hold a *BoundSelectionSet across a call that might grow
// o.SelectionSets (a pointer into the slice goes stale once append
// reallocates it).
func (o *BoundOperation) AppendField(set BoundSelectionSetID, field BoundFieldID) {
	o.SelectionSets[set].Fields = append(o.SelectionSets[set].Fields, field)
}
