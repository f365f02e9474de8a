package schema

import (
	"sort"

	"github.com/samsarahq/go/oops"
)

// Schema is the immutable, id-indexed representation of a composed
// supergraph. Constructed once by Build; every accessor below is
// panic-free for well-formed ids because ids are non-forgeable handles
// only ever produced by Build (mirrors the teacher's "ids are stable
// because builders sort vectors so later binary searches are valid").
type Schema struct {
	types         []TypeDefinition
	fields        []FieldDefinition
	inputValues   []InputValueDefinition
	subgraphs     []Subgraph
	directives    []TypeSystemDirective
	entities      map[TypeID]*EntityDefinition

	typeByName   map[string]TypeID
	queryType    TypeID
	mutationType TypeID
	subType      TypeID
	hasMutation  bool
	hasSub       bool
}

// Type returns the TypeDefinition for id. Callers must only pass ids
// obtained from this Schema.
func (s *Schema) Type(id TypeID) *TypeDefinition { return &s.types[id] }

// Field returns the FieldDefinition for id.
func (s *Schema) Field(id FieldID) *FieldDefinition { return &s.fields[id] }

// InputValue returns the InputValueDefinition for id.
func (s *Schema) InputValue(id InputValueID) *InputValueDefinition { return &s.inputValues[id] }

// Subgraph returns the Subgraph for id.
func (s *Schema) Subgraph(id SubgraphID) *Subgraph { return &s.subgraphs[id] }

// Subgraphs returns every subgraph in the supergraph, ordered by id.
func (s *Schema) Subgraphs() []Subgraph { return s.subgraphs }

// Directive returns the directive application for id.
func (s *Schema) Directive(id DirectiveID) *TypeSystemDirective { return &s.directives[id] }

// QueryType returns the root Query object type id.
func (s *Schema) QueryType() TypeID { return s.queryType }

// MutationType returns the root Mutation object type id and whether one
// is defined.
func (s *Schema) MutationType() (TypeID, bool) { return s.mutationType, s.hasMutation }

// SubscriptionType returns the root Subscription object type id and
// whether one is defined.
func (s *Schema) SubscriptionType() (TypeID, bool) { return s.subType, s.hasSub }

// LookupByName resolves a type name to its id regardless of kind.
func (s *Schema) LookupByName(name string) (TypeID, bool) {
	id, ok := s.typeByName[name]
	return id, ok
}

// LookupObjectByName resolves an object type name to its id.
func (s *Schema) LookupObjectByName(name string) (TypeID, bool) {
	id, ok := s.typeByName[name]
	if !ok || s.types[id].Kind != KindObject {
		return 0, false
	}
	return id, true
}

// FieldsOf returns the field id range of an entity (Object or Interface).
func (s *Schema) FieldsOf(entity TypeID) IDRange {
	return s.types[entity].Fields
}

// FieldByName finds a field of entity by its GraphQL name using a binary
// search over the sorted field range (the teacher's builders "sort
// vectors so later binary searches are valid" — applied here for field
// name lookup within a type).
func (s *Schema) FieldByName(entity TypeID, name string) (FieldID, bool) {
	r := s.types[entity].Fields
	lo, hi := int(r.Start), int(r.End)
	idx := sort.Search(hi-lo, func(i int) bool {
		return s.fields[lo+i].Name >= name
	})
	if idx < hi-lo && s.fields[lo+idx].Name == name {
		return FieldID(lo + idx), true
	}
	return 0, false
}

// SubgraphsForField reports, for a field, the subgraphs that resolve it
// directly (FieldDefinition.Resolvable). Subgraphs reachable only via
// the entity's keys are not included, and NeedsKeyFetch is always false.
func (s *Schema) SubgraphsForField(field FieldID) []FieldResolvability {
	fd := &s.fields[field]
	out := make([]FieldResolvability, 0, len(fd.Resolvable))
	for _, sg := range s.subgraphs {
		direct, ok := fd.Resolvable[sg.ID]
		if !ok || !direct {
			continue
		}
		out = append(out, FieldResolvability{
			Subgraph:     sg.ID,
			NeedsKeyFetch: false,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subgraph < out[j].Subgraph })
	return out
}

// FieldResolvability is one entry of SubgraphsForField's result.
type FieldResolvability struct {
	Subgraph      SubgraphID
	NeedsKeyFetch bool
}

// KeysOf returns the keys that uniquely identify entities of typ within
// subgraph sg, or nil if typ is not an entity resolvable there.
func (s *Schema) KeysOf(typ TypeID, sg SubgraphID) []Key {
	ent, ok := s.entities[typ]
	if !ok {
		return nil
	}
	return ent.Keys[sg]
}

// Entity returns the EntityDefinition for typ, if typ is an entity.
func (s *Schema) Entity(typ TypeID) (*EntityDefinition, bool) {
	ent, ok := s.entities[typ]
	return ent, ok
}

// DirectivesOf returns the directive applications in range r.
func (s *Schema) DirectivesOf(r IDRange) []TypeSystemDirective {
	return s.directives[r.Start:r.End]
}

// validate checks the cross-reference invariant from §3: every field
// appearing in a key, @requires, or @provides set must itself be a valid
// field of the referenced type.
func (s *Schema) validate() error {
	var checkSet func(owner TypeID, set FieldSet) error
	checkSet = func(owner TypeID, set FieldSet) error {
		for _, elem := range set {
			fid, ok := s.FieldByName(owner, elem.Name)
			if !ok {
				return oops.Errorf("field set references unknown field %q on type %q", elem.Name, s.types[owner].Name)
			}
			if len(elem.Sub) > 0 {
				leaf := s.fields[fid].Type.Leaf
				if err := checkSet(leaf, elem.Sub); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for typID, ent := range s.entities {
		for _, keys := range ent.Keys {
			for _, k := range keys {
				if err := checkSet(typID, k.Fields); err != nil {
					return oops.Wrapf(err, "validating keys of %q", s.types[typID].Name)
				}
			}
		}
	}

	for i := range s.fields {
		fd := &s.fields[i]
		for _, fs := range fd.Requires {
			if err := checkSet(fd.Parent, fs); err != nil {
				return oops.Wrapf(err, "validating @requires on %q.%q", s.types[fd.Parent].Name, fd.Name)
			}
		}
		for _, fs := range fd.Provides {
			if err := checkSet(fd.Type.Leaf, fs); err != nil {
				return oops.Wrapf(err, "validating @provides on %q.%q", s.types[fd.Parent].Name, fd.Name)
			}
		}
	}

	return nil
}
