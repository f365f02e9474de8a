package executor

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/thundergraph/gateway/authz"
	"github.com/thundergraph/gateway/gwerrors"
	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/plan"
	"github.com/thundergraph/gateway/response"
	"github.com/thundergraph/gateway/schema"
	"github.com/thundergraph/gateway/subgraph"
)

// modifierHit records one FieldShape position whose ResponseModifiers
// fired during ingestion, collected so the caller can batch all items
// for the same directive into one authorize_response call (spec §4.7
// "calling the authorization weaver with batched items grouped by
// directive") instead of one call per field occurrence.
type modifierHit struct {
	rule  operation.ResponseModifierRule
	site  authz.Site
	// objID/hasObjID identify an already-pushed parent object this hit's
	// field lives in. A top-level field (about to be merged rather than
	// pushed as a new object) has hasObjID false; the caller patches the
	// returned Fields slice directly by ResponseKey in that case.
	objID       response.ObjectID
	hasObjID    bool
	responseKey string
	item        interface{}
}

// ingester ingests one partition's subgraph reply bytes against its
// plan.Shape, pushing any nested objects/lists into builder and
// returning the partition's own top-level Fields (to be merged onto the
// shared root object, or onto a parent entity's response object).
type ingester struct {
	sch     *schema.Schema
	op      *operation.BoundOperation
	builder *response.Builder

	// createdByType records every nested entity-typed object this
	// partition's ingestion pushed, keyed by GraphQL typename, in the
	// order encountered. A child entity partition reads its own
	// Representations.Typename back out of its Parent's ingester to
	// learn which response objects it must resolve (data model §4.5
	// step 2: "collect parent response objects belonging to the input
	// set").
	createdByType map[string][]response.ObjectID
}

func newIngester(sch *schema.Schema, op *operation.BoundOperation, b *response.Builder) *ingester {
	return &ingester{sch: sch, op: op, builder: b, createdByType: map[string][]response.ObjectID{}}
}

// ingestFields decodes raw (a JSON object) against shape.Fields, the
// entry point for both a root partition's whole reply and one element of
// an entity partition's `_entities` array. viol reports whether a
// non-null violation escaped every field (the caller's own container, or
// the response root, must become null).
func (ing *ingester) ingestFields(shape *plan.Shape, typename string, raw json.RawMessage) (fields []response.Field, hits []modifierHit, viol bool) {
	obj, hitsOut := ing.object(shape, typename, raw)
	if obj.violated {
		return nil, nil, true
	}
	return obj.fields, hitsOut, false
}

type builtObject struct {
	typename string
	fields   []response.Field
	violated bool
}

func isJSONNull(raw json.RawMessage) bool {
	return raw == nil || string(raw) == "null"
}

// value ingests raw against t/sub, walking t's wrapper stack outer to
// inner (data model design note: "tagged variant... avoid virtual-method
// dispatch"). Returns (value, mustBubble); mustBubble means this exact
// position could not hold its value (a non-null violation) and the
// nearest nullable ancestor above the caller must absorb it instead.
func (ing *ingester) value(t schema.FieldType, sub *plan.Shape, raw json.RawMessage) (response.Value, bool, []modifierHit) {
	if len(t.Wrapping) == 0 {
		return ing.leaf(t.Leaf, sub, raw)
	}
	switch t.Wrapping[0] {
	case schema.WrapNonNull:
		if isJSONNull(raw) {
			return response.Inaccessible(), true, nil
		}
		v, viol, hits := ing.value(t.Unwrap(), sub, raw)
		if viol {
			return response.Inaccessible(), true, nil
		}
		return v, false, hits
	default: // schema.WrapList
		if isJSONNull(raw) {
			return response.Null, false, nil
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return response.Inaccessible(), true, nil
		}
		inner := t.Unwrap()
		listSub := sub
		if sub != nil && sub.Kind == plan.ShapeList {
			listSub = sub.Of
		}
		vals := make([]response.Value, len(arr))
		var hits []modifierHit
		for i, er := range arr {
			v, viol, h := ing.value(inner, listSub, er)
			if viol {
				return response.Inaccessible(), true, nil
			}
			vals[i] = v
			hits = append(hits, h...)
		}
		listID := ing.builder.PushList(vals)
		return response.Value{Kind: response.ValueList, List: listID}, false, hits
	}
}

func (ing *ingester) leaf(leafType schema.TypeID, sub *plan.Shape, raw json.RawMessage) (response.Value, bool, []modifierHit) {
	if isJSONNull(raw) {
		return response.Null, false, nil
	}
	if sub == nil {
		return ing.scalar(raw), false, nil
	}
	switch sub.Kind {
	case plan.ShapePolymorphic:
		return ing.polymorphic(sub, raw)
	default:
		obj, hits := ing.object(sub, "", raw)
		if obj.violated {
			return response.Inaccessible(), true, nil
		}
		id := ing.builder.PushObject(response.Object{Typename: obj.typename, Fields: obj.fields})
		ing.record(obj.typename, id)
		return response.Value{Kind: response.ValueObject, Object: id}, false, hits
	}
}

// record tracks a newly pushed object under its typename so a later
// entity partition can find it as an input for BuildRepresentations.
func (ing *ingester) record(typename string, id response.ObjectID) {
	if typename == "" {
		return
	}
	ing.createdByType[typename] = append(ing.createdByType[typename], id)
}

func (ing *ingester) polymorphic(sub *plan.Shape, raw json.RawMessage) (response.Value, bool, []modifierHit) {
	var head struct {
		Typename string `json:"__typename"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Typename == "" {
		return response.Inaccessible(), true, nil
	}
	idx := sort.Search(len(sub.ByTypename), func(i int) bool { return sub.ByTypename[i].Typename >= head.Typename })
	if idx >= len(sub.ByTypename) || sub.ByTypename[idx].Typename != head.Typename {
		return response.Inaccessible(), true, nil
	}
	branch := sub.ByTypename[idx]
	obj, hits := ing.object(branch.Shape, branch.Typename, raw)
	if obj.violated {
		return response.Inaccessible(), true, nil
	}
	id := ing.builder.PushObject(response.Object{Typename: obj.typename, Fields: obj.fields})
	ing.record(obj.typename, id)
	return response.Value{Kind: response.ValueObject, Object: id}, false, hits
}

// object ingests raw (a JSON object) against shape.Fields, returning the
// built field list (violated=true if an un-absorbable non-null violation
// occurred anywhere inside, in which case fields/hits should be
// discarded by the caller).
func (ing *ingester) object(shape *plan.Shape, knownTypename string, raw json.RawMessage) (builtObject, []modifierHit) {
	var m map[string]json.RawMessage
	_ = json.Unmarshal(raw, &m)

	typename := knownTypename
	if tnRaw, ok := m["__typename"]; ok {
		var tn string
		if json.Unmarshal(tnRaw, &tn) == nil && tn != "" {
			typename = tn
		}
	}

	fields := make([]response.Field, 0, len(shape.Fields))
	var hits []modifierHit
	for _, fs := range shape.Fields {
		bf := ing.op.Field(fs.Field)

		if fs.Flags.Has(plan.FlagTypename) {
			fields = append(fields, response.Field{
				ResponseKey:   fs.ResponseKey,
				QueryPosition: queryPosition(bf),
				Extra:         fs.Flags.Has(plan.FlagExtra),
				Value:         response.Value{Kind: response.ValueString, Str: typename},
			})
			continue
		}

		var fieldRaw json.RawMessage
		if fs.Flags.Has(plan.FlagDerived) {
			fieldRaw = ing.projectDerived(m[fs.DerivedFromKey], fs.DerivedMapping)
		} else if raw, present := m[fs.ResponseKey]; present {
			fieldRaw = raw
		}
		nonNull := !fs.Flags.Has(plan.FlagLeafNullable)
		v, viol, childHits := ing.value(fs.Type, fs.Sub, fieldRaw)
		if viol {
			if nonNull {
				return builtObject{violated: true}, nil
			}
			v = response.Inaccessible()
		}
		hits = append(hits, childHits...)

		field := response.Field{
			ResponseKey:   fs.ResponseKey,
			QueryPosition: queryPosition(bf),
			Extra:         fs.Flags.Has(plan.FlagExtra),
			NonNull:       nonNull,
			Value:         v,
		}
		fields = append(fields, field)

		if len(fs.ResponseModifiers) > 0 {
			var item interface{}
			_ = json.Unmarshal(fieldRaw, &item)
			site := fieldSiteOf(ing.sch, bf)
			for _, rule := range fs.ResponseModifiers {
				hits = append(hits, modifierHit{
					rule:        rule,
					site:        site,
					hasObjID:    false,
					responseKey: fs.ResponseKey,
					item:        item,
				})
			}
		}
	}
	return builtObject{typename: typename, fields: fields}, hits
}

func queryPosition(bf *operation.BoundField) int {
	if bf.Kind == operation.KindExtra {
		return response.ExtraPosition
	}
	return bf.QueryPosition
}

func fieldSiteOf(sch *schema.Schema, bf *operation.BoundField) authz.Site {
	if bf.Kind == operation.KindTypeName {
		return authz.Site{TypeName: sch.Type(bf.ParentType).Name, FieldName: "__typename"}
	}
	fd := sch.Field(bf.Definition)
	return authz.Site{TypeName: sch.Type(bf.ParentType).Name, FieldName: fd.Name}
}

// scalar decodes raw by its JSON token kind rather than a declared
// scalar name -- the gateway forwards whatever shape the subgraph
// produced for a leaf value without re-validating it against a custom
// scalar's semantics (out of scope: the core trusts a conformant
// subgraph).
func (ing *ingester) scalar(raw json.RawMessage) response.Value {
	var iv interface{}
	if err := json.Unmarshal(raw, &iv); err != nil {
		return response.Value{Kind: response.ValueRaw, Raw: append([]byte(nil), raw...)}
	}
	switch t := iv.(type) {
	case nil:
		return response.Null
	case bool:
		return response.Value{Kind: response.ValueBool, Bool: t}
	case string:
		return response.Value{Kind: response.ValueString, Str: t}
	case float64:
		if t == math.Trunc(t) && t >= math.MinInt32 && t <= math.MaxInt32 {
			return response.Value{Kind: response.ValueInt, Int: int32(t)}
		}
		return response.Value{Kind: response.ValueFloat, Float: t}
	default:
		return response.Value{Kind: response.ValueRaw, Raw: append([]byte(nil), raw...)}
	}
}

// projectDerived reconstructs a derived field's raw JSON value by copying
// its source sibling's already-decoded value through an optional response-
// key mapping instead of dispatching a join (schema.DerivedField, the
// original's `derived.rs` join-avoidance semantics). A nil/empty mapping
// means the sibling's value is reused as-is; an array source is projected
// element-wise.
func (ing *ingester) projectDerived(src json.RawMessage, mapping map[string]string) json.RawMessage {
	if isJSONNull(src) || len(mapping) == 0 {
		return src
	}
	trimmed := bytes.TrimSpace(src)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(src, &arr); err != nil {
			return src
		}
		out := make([]json.RawMessage, len(arr))
		for i, e := range arr {
			out[i] = ing.projectDerived(e, mapping)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return src
		}
		return b
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(src, &m); err != nil {
		return src
	}
	out := make(map[string]json.RawMessage, len(mapping))
	for from, to := range mapping {
		if v, ok := m[from]; ok {
			out[to] = v
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return src
	}
	return b
}

// subgraphError turns one subgraph GraphQLError into a GatewayError with
// its path rewritten to sit under the partition's own root response-key
// path, per spec §7 ("paths rewritten from subgraph-aliases back to
// user-response keys"). Since this module's aliases are rendered
// identically to response keys (plan/render.go only aliases when they
// differ from the schema field name, and then uses the response key as
// the alias), the subgraph's own path segments already use response-key
// vocabulary; only the partition's own root prefix needs prepending.
func subgraphError(partitionRoot []string, e subgraph.GraphQLError) *gwerrors.GatewayError {
	path := append(append([]string(nil), partitionRoot...), stringifyPath(e.Path)...)
	err := gwerrors.PartialData(path, nil, "%s", e.Message)
	for k, v := range e.Extensions {
		err.WithExtension(k, v)
	}
	return err
}

func stringifyPath(raw []interface{}) []string {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		switch v := p.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatInt(int64(v), 10))
		}
	}
	return out
}
