// Package response holds the in-progress, multi-part response tree the
// executor writes partition ingestions into and the final serializer
// walks to produce GraphQL-compliant JSON bytes (data model §3, spec
// §4.6). Grounded on the teacher's graphql/response.go syncMap/
// syncResponse (a shared structure written from many goroutines behind a
// lock) and hanpama-protograph's internal/executor null-propagation
// tombstone walk (doc.go "Non-Null propagation and pruning"), but
// restructured from one global locked map into the data model's DataPart
// arena: each part is owned by exactly one partition until Insert, so
// writes never alias and no lock is needed on the hot ingestion path.
package response

import "github.com/thundergraph/gateway/schema"

// PartID identifies one DataPart within a Tree.
type PartID uint16

// ObjectID identifies one ResponseObject. The high bits carry its owning
// part so an id is globally meaningful without a part argument alongside
// it -- references from one part into another never dangle because a
// part is only readable after Insert (data model §3 invariant).
type ObjectID uint64

// ListID identifies one response list, addressed the same way as
// ObjectID.
type ListID uint64

func newObjectID(part PartID, idx uint32) ObjectID {
	return ObjectID(uint64(part)<<32 | uint64(idx))
}

// Part returns the PartID an ObjectID was allocated from.
func (id ObjectID) Part() PartID { return PartID(id >> 32) }
func (id ObjectID) index() uint32 { return uint32(id) }

func newListID(part PartID, idx uint32) ListID {
	return ListID(uint64(part)<<32 | uint64(idx))
}

// Part returns the PartID a ListID was allocated from.
func (id ListID) Part() PartID { return PartID(id >> 32) }
func (id ListID) index() uint32 { return uint32(id) }

// ValueKind discriminates the data model's ResponseValue sum type. Kept
// as a small integer tag (design note "deep inheritance... tagged
// variant enumeration") rather than an interface, so ingestion's hot
// path never pays for dynamic dispatch.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	// ValueInaccessible marks a value nulled by null-propagation or an
	// authorization denial -- distinct from ValueNull so the serializer
	// can tell "the subgraph said null" apart from "policy/bubbling said
	// null", even though both render as JSON null.
	ValueInaccessible
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	// ValueInternedString is rendered from Str exactly like ValueString;
	// the serializer does not read Intern, and ingestion does not
	// produce this kind.
	ValueInternedString
	ValueBigInt
	ValueList
	ValueObject
	// ValueRaw carries opaque already-valid JSON bytes for a scalar whose
	// shape is unknown to the gateway (a custom scalar with no declared
	// structure).
	ValueRaw
)

// Value is one field's value in a ResponseObject or one element of a
// response list.
type Value struct {
	Kind ValueKind

	Bool    bool
	Int     int32
	Float   float64
	Str     string
	Intern  schema.TypeID // not read by the serializer
	BigInt  string        // decimal text; kept as a string to avoid float64 precision loss
	List    ListID
	Object  ObjectID
	Raw     []byte
}

// Null is the zero Value (ValueKind 0), reused to avoid a literal at every
// call site.
var Null = Value{Kind: ValueNull}

// Inaccessible builds the sentinel value null-propagation and
// authorization denials write in place of a denied/bubbled field.
func Inaccessible() Value { return Value{Kind: ValueInaccessible} }

// Field is one (response key, value) entry of a ResponseObject, carrying
// enough of the plan's FieldShape to let the serializer order and filter
// without holding the Shape alongside the tree.
type Field struct {
	ResponseKey string
	// QueryPosition orders Fields within an object for serialization
	// (data model §3: "kept sorted by (query_position, response_key)").
	// ExtraPosition is used for synthesized fields so they sort after
	// every real field and get skipped at serialization time.
	QueryPosition int
	Extra         bool
	// NonNull marks the field's own type as non-null, so a ValueNull/
	// ValueInaccessible here must bubble per data model §3's
	// null-propagation invariant.
	NonNull bool
	Value   Value
}

// ExtraPosition is the query_position sentinel used for KindExtra
// fields, sorting after any real (non-negative) position.
const ExtraPosition = 1<<31 - 1

// Object is an ordered, query-position-sorted vector of Fields, built
// once by Tree.PushObject and immutable thereafter.
type Object struct {
	Typename string
	Fields   []Field
}
