package plan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/schema"
)

// renderer builds a partition's subgraph selection text, collecting
// variable references as it walks so the executor knows what to forward
// under §6's subgraph client contract ("HTTP POST of {query, variables}").
// @include/@skip rules with a variable condition are rendered straight
// back onto the subgraph field rather than evaluated locally — the
// subgraph's own compliant engine applies them, which is exact and avoids
// re-deriving per-object gating the executor otherwise has no need for.
type renderer struct {
	op        *operation.BoundOperation
	sch       *schema.Schema
	vars      map[string]VariableUse
	modifiers map[operation.BoundFieldID][]operation.QueryModifierRule
}

func newRenderer(op *operation.BoundOperation, sch *schema.Schema) *renderer {
	r := &renderer{
		op:        op,
		sch:       sch,
		vars:      map[string]VariableUse{},
		modifiers: map[operation.BoundFieldID][]operation.QueryModifierRule{},
	}
	for rule, fids := range op.QueryModifiers {
		if rule.IfVariable == "" {
			continue
		}
		for _, fid := range fids {
			r.modifiers[fid] = append(r.modifiers[fid], rule)
		}
	}
	return r
}

func (r *renderer) variableUses() []VariableUse {
	out := make([]VariableUse, 0, len(r.vars))
	for _, u := range r.vars {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// renderFields renders a flat list of top-level field ids (a Partition's
// own Fields, not necessarily all members of one real BoundSelectionSet)
// as a brace-delimited selection set.
func (r *renderer) renderFields(fields []operation.BoundFieldID) string {
	var sb strings.Builder
	sb.WriteByte('{')
	sb.WriteByte(' ')
	for _, fid := range fields {
		// Derived fields are reconstructed from a sibling's value at
		// ingestion (executor/ingest.go's projectDerived) rather than
		// fetched, so they must never be sent to the subgraph.
		if bf := r.op.Field(fid); bf.Kind == operation.KindQuery && bf.HasDerivedFrom {
			continue
		}
		r.renderField(&sb, fid)
		sb.WriteByte(' ')
	}
	sb.WriteByte('}')
	return sb.String()
}

func (r *renderer) renderSelectionSet(setID operation.BoundSelectionSetID) string {
	return r.renderFields(r.op.SelectionSet(setID).Fields)
}

func (r *renderer) renderField(sb *strings.Builder, fid operation.BoundFieldID) {
	bf := r.op.Field(fid)

	if bf.Kind == operation.KindTypeName {
		sb.WriteString("__typename ")
		return
	}

	fd := r.sch.Field(bf.Definition)
	respKey := r.op.ResponseKeys.Name(bf.ResponseKey)

	// Extra fields are never aliased (operation/extra.go); real query
	// fields alias whenever the response key differs from the schema
	// field name.
	if bf.Kind == operation.KindQuery && respKey != fd.Name {
		fmt.Fprintf(sb, "%s: %s", respKey, fd.Name)
	} else {
		sb.WriteString(fd.Name)
	}

	sb.WriteString(r.renderArgs(bf))

	for _, rule := range r.modifiers[fid] {
		directive := "include"
		if rule.Kind == operation.ModifierSkip {
			directive = "skip"
		}
		for _, vd := range r.op.Variables {
			if vd.Name == rule.IfVariable {
				r.vars[vd.Name] = VariableUse{Name: vd.Name, Type: vd.Type}
			}
		}
		fmt.Fprintf(sb, " @%s(if: $%s)", directive, rule.IfVariable)
	}

	if bf.HasSelectionSet {
		sb.WriteByte(' ')
		sb.WriteString(r.renderSelectionSet(bf.SelectionSet))
	}
}

func (r *renderer) renderArgs(bf *operation.BoundField) string {
	if bf.Args.Start == bf.Args.End {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('(')
	for i := bf.Args.Start; i < bf.Args.End; i++ {
		arg := r.op.Arguments[i]
		if i > bf.Args.Start {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.Name)
		sb.WriteString(": ")
		sb.WriteString(r.renderArgValue(arg))
	}
	sb.WriteByte(')')
	return sb.String()
}

func (r *renderer) renderArgValue(arg operation.BoundFieldArgument) string {
	v := r.op.InputValue(arg.Value)
	if v.Kind == operation.ValueDefault {
		return renderGoLiteral(r.sch.InputValue(arg.Definition).DefaultValue)
	}
	return r.renderValue(arg.Value)
}

func (r *renderer) renderValue(id operation.QueryInputValueID) string {
	v := r.op.InputValue(id)
	switch v.Kind {
	case operation.ValueNull:
		return "null"
	case operation.ValueScalar:
		return renderGoLiteral(v.Scalar)
	case operation.ValueEnum:
		return fmt.Sprintf("%v", v.Scalar)
	case operation.ValueList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = r.renderValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case operation.ValueInputObject:
		parts := make([]string, len(v.Object))
		for i, f := range v.Object {
			parts[i] = f.Name + ": " + r.renderValue(f.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case operation.ValueVariable:
		vd := r.op.Variables[v.Variable]
		r.vars[vd.Name] = VariableUse{Name: vd.Name, Type: vd.Type}
		return "$" + vd.Name
	default:
		return "null"
	}
}

// renderGoLiteral renders a coerced Go value (string/bool/number/nil,
// possibly nested in []interface{}/map[string]interface{} for list and
// input-object defaults) as GraphQL literal syntax.
func renderGoLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []interface{}:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = renderGoLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + renderGoLiteral(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", val)
	}
}
