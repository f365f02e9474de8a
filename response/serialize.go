package response

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/thundergraph/gateway/gwerrors"
)

// Serialize walks from RootObject and produces the final "data" JSON
// bytes (data model §4.6: "A final serializer walks the root, honoring
// query order and null propagation"). Fields are already sorted by
// (query_position, response_key) per Builder.PushObject; this walk only
// needs to skip Extra fields and render ValueInaccessible as null, the
// two renderings the user-visible "data" never distinguishes from a
// literal null.
//
// Serialize has no root ancestor of its own: a violation that must null
// the entire response data is handled by the caller, not here.
func (t *Tree) Serialize() ([]byte, error) {
	if len(t.parts) == 0 {
		return []byte("null"), nil
	}
	obj, ok := t.object(t.RootObject)
	if !ok {
		return nil, gwerrors.Internal(nil, "response: root object %d was never inserted", t.RootObject)
	}
	var buf bytes.Buffer
	if err := t.writeObject(&buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Tree) writeObject(buf *bytes.Buffer, obj *Object) error {
	buf.WriteByte('{')
	first := true
	for _, f := range obj.Fields {
		if f.Extra {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeJSONString(buf, f.ResponseKey)
		buf.WriteByte(':')
		if err := t.writeValue(buf, f.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (t *Tree) writeValue(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case ValueNull, ValueInaccessible:
		buf.WriteString("null")
	case ValueBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case ValueInt:
		buf.WriteString(strconv.FormatInt(int64(v.Int), 10))
	case ValueFloat:
		buf.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case ValueString, ValueInternedString:
		writeJSONString(buf, v.Str)
	case ValueBigInt:
		// BigInt is rendered unquoted per the teacher's federation
		// convention for arbitrary-precision integers: GraphQL has no
		// native bigint scalar, so callers that declare one accept raw
		// JSON number syntax rather than a quoted string.
		buf.WriteString(v.BigInt)
	case ValueRaw:
		buf.Write(v.Raw)
	case ValueList:
		list, ok := t.list(v.List)
		if !ok {
			return gwerrors.Internal(nil, "response: dangling list reference %d", v.List)
		}
		buf.WriteByte('[')
		for i, elem := range list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := t.writeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case ValueObject:
		obj, ok := t.object(v.Object)
		if !ok {
			return gwerrors.Internal(nil, "response: dangling object reference %d", v.Object)
		}
		return t.writeObject(buf, obj)
	default:
		return gwerrors.Internal(nil, "response: unknown value kind %d", v.Kind)
	}
	return nil
}

// writeJSONString writes s as a JSON string literal using encoding/json
// for correct escaping rather than hand-rolled quoting.
func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
