package plan

import (
	"sort"

	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/schema"
)

// ShapeKind discriminates the data model's ConcreteShape / PolymorphicShape
// / ListShape trio.
type ShapeKind uint8

const (
	ShapeConcrete ShapeKind = iota
	ShapePolymorphic
	ShapeList
)

// Shape recursively describes how to ingest one position of a subgraph's
// reply. Exactly one of Fields (Concrete), ByTypename (Polymorphic), or Of
// (List) is populated, matching Kind.
type Shape struct {
	Kind ShapeKind

	Fields []FieldShape

	// ByTypename holds one entry per possible concrete type, sorted by
	// typename so ingestion can binary-search it (data model §4.5 step 4:
	// "binary-searched by typename at ingestion").
	ByTypename []TypedShape

	Of *Shape
}

// TypedShape is one entry of a PolymorphicShape.
type TypedShape struct {
	Typename string
	Shape    *Shape
}

// FieldShapeFlag are the per-FieldShape bits the data model names.
type FieldShapeFlag uint8

const (
	// FlagExtra marks a field not user-visible -- elided from
	// serialization (a key/@requires fetch).
	FlagExtra FieldShapeFlag = 1 << iota
	// FlagTypename marks a synthesized or requested __typename.
	FlagTypename
	// FlagLeafNullable marks a field whose own type is nullable (no
	// bubbling needed if this exact position comes back null).
	FlagLeafNullable
	// FlagDerived marks a field the solver resolved by projection rather
	// than a subgraph fetch (schema.FieldDefinition.Derived); never sent
	// in SelectionText, and ingested from its DerivedFromKey sibling
	// instead of its own response key.
	FlagDerived
)

// FieldShape is one expected field of a ConcreteShape/PolymorphicShape
// branch.
type FieldShape struct {
	ResponseKey string
	Field       operation.BoundFieldID
	Flags       FieldShapeFlag

	// Type is the field's declared schema type (zero value for
	// __typename, treated as non-null String). Type.Leaf gives the
	// named type regardless of list/non-null wrapping, which is what
	// decides whether Sub is populated.
	Type schema.FieldType

	// Sub is non-nil when Type's named leaf is Object/Interface/Union --
	// i.e. this field's value is itself ingested via a nested Shape
	// (wrapped in ShapeList first when Type.HasList()).
	Sub *Shape

	ResponseModifiers []operation.ResponseModifierRule

	// DerivedFromKey, set when Flags.Has(FlagDerived), is the response key
	// of the sibling field this field's value is projected from.
	DerivedFromKey string
	// DerivedMapping maps the sibling's sub-selection response keys onto
	// this field's own, identity when nil (schema.DerivedField.Mapping).
	DerivedMapping map[string]string
}

func (f FieldShapeFlag) Has(bit FieldShapeFlag) bool { return f&bit != 0 }

// buildSelectionShape builds the Shape ingesting setID's fields, selected
// against leaf (an Object, Interface, or Union TypeID).
func buildSelectionShape(op *operation.BoundOperation, sch *schema.Schema, leaf schema.TypeID, setID operation.BoundSelectionSetID) *Shape {
	td := sch.Type(leaf)
	if td.Kind == schema.KindInterface || td.Kind == schema.KindUnion {
		return buildPolymorphicShape(op, sch, setID)
	}
	return buildConcreteShape(op, sch, leaf, setID)
}

func buildConcreteShape(op *operation.BoundOperation, sch *schema.Schema, typ schema.TypeID, setID operation.BoundSelectionSetID) *Shape {
	set := op.SelectionSet(setID)
	shape := &Shape{Kind: ShapeConcrete}
	for _, fid := range set.Fields {
		bf := op.Field(fid)
		if bf.ParentType != typ {
			continue
		}
		shape.Fields = append(shape.Fields, buildFieldShape(op, sch, bf))
	}
	return shape
}

func buildPolymorphicShape(op *operation.BoundOperation, sch *schema.Schema, setID operation.BoundSelectionSetID) *Shape {
	set := op.SelectionSet(setID)

	byType := map[schema.TypeID][]operation.BoundFieldID{}
	var order []schema.TypeID
	for _, fid := range set.Fields {
		bf := op.Field(fid)
		if _, seen := byType[bf.ParentType]; !seen {
			order = append(order, bf.ParentType)
		}
		byType[bf.ParentType] = append(byType[bf.ParentType], fid)
	}

	typed := make([]TypedShape, 0, len(order))
	for _, pt := range order {
		var fields []FieldShape
		for _, fid := range byType[pt] {
			fields = append(fields, buildFieldShape(op, sch, op.Field(fid)))
		}
		typed = append(typed, TypedShape{
			Typename: sch.Type(pt).Name,
			Shape:    &Shape{Kind: ShapeConcrete, Fields: fields},
		})
	}
	sort.Slice(typed, func(i, j int) bool { return typed[i].Typename < typed[j].Typename })
	return &Shape{Kind: ShapePolymorphic, ByTypename: typed}
}

func buildFieldShape(op *operation.BoundOperation, sch *schema.Schema, bf *operation.BoundField) FieldShape {
	fs := FieldShape{
		ResponseKey: op.ResponseKeys.Name(bf.ResponseKey),
		Field:       bf.ID,
	}
	if bf.Kind == operation.KindExtra || (bf.Kind == operation.KindTypeName && bf.QueryPosition < 0) {
		fs.Flags |= FlagExtra
	}
	if bf.Kind == operation.KindTypeName {
		fs.Flags |= FlagTypename
		return fs
	}

	fd := sch.Field(bf.Definition)
	fs.Type = fd.Type
	if !fd.Type.IsNonNull() {
		fs.Flags |= FlagLeafNullable
	}
	if bf.HasDerivedFrom {
		fs.Flags |= FlagDerived
		fs.DerivedFromKey = op.ResponseKeys.Name(op.Field(bf.DerivedFrom).ResponseKey)
		if fd.Derived != nil {
			fs.DerivedMapping = fd.Derived.Mapping
		}
	}

	if fd.Authorized != nil && len(fd.Authorized.Fields) > 0 {
		fs.ResponseModifiers = append(fs.ResponseModifiers, operation.ResponseModifierRule{Name: fd.Name})
	}

	named := sch.Type(fd.Type.Leaf)
	if named.Kind != schema.KindObject && named.Kind != schema.KindInterface && named.Kind != schema.KindUnion {
		return fs
	}
	if !bf.HasSelectionSet {
		return fs
	}

	inner := buildSelectionShape(op, sch, fd.Type.Leaf, bf.SelectionSet)
	if fd.Type.HasList() {
		inner = &Shape{Kind: ShapeList, Of: inner}
	}
	fs.Sub = inner
	return fs
}
