package executor

import (
	"github.com/thundergraph/gateway/plan"
	"github.com/thundergraph/gateway/response"
)

// partitionVariables picks, out of the operation's full coerced variable
// map, only the entries a partition's rendered selection text actually
// references (plan.Partition.Variables), matching spec §6's "HTTP POST
// of {query, variables}" contract of forwarding just what the request
// needs.
func partitionVariables(p *plan.Partition, all map[string]interface{}) map[string]interface{} {
	if len(p.Variables) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(p.Variables))
	for _, v := range p.Variables {
		if val, ok := all[v.Name]; ok {
			out[v.Name] = val
		}
	}
	return out
}

// valueToInterface converts an already-ingested response.Value back into
// a plain Go value, for reading an entity representation's key fields out
// of a parent partition's already-pushed response objects (subgraph's
// BuildRepresentations wants map[string]interface{}).
func valueToInterface(tree *response.Tree, v response.Value) interface{} {
	switch v.Kind {
	case response.ValueNull, response.ValueInaccessible:
		return nil
	case response.ValueBool:
		return v.Bool
	case response.ValueInt:
		return v.Int
	case response.ValueFloat:
		return v.Float
	case response.ValueString, response.ValueInternedString:
		return v.Str
	case response.ValueBigInt:
		return v.BigInt
	case response.ValueRaw:
		return string(v.Raw)
	case response.ValueList:
		list, ok := tree.ReadList(v.List)
		if !ok {
			return nil
		}
		out := make([]interface{}, len(list))
		for i, e := range list {
			out[i] = valueToInterface(tree, e)
		}
		return out
	case response.ValueObject:
		obj, ok := tree.ReadObject(v.Object)
		if !ok {
			return nil
		}
		return objectToMap(tree, obj)
	default:
		return nil
	}
}

func objectToMap(tree *response.Tree, obj *response.Object) map[string]interface{} {
	m := make(map[string]interface{}, len(obj.Fields))
	for _, f := range obj.Fields {
		m[f.ResponseKey] = valueToInterface(tree, f.Value)
	}
	return m
}
