package plan

import (
	"fmt"
	"strings"

	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/schema"
	"github.com/thundergraph/gateway/solver"
)

// Materialize lowers a solved solver.Partition tree into an executable
// Plan: every partition gets an id, its subgraph selection text, its
// output Shape, and (for an entity fetch) a Representations spec. Grounded
// on the teacher's federation/planner.go Plan/Step construction, which
// performs the equivalent "walk the resolved tree once, rendering
// graphql.Selection back to text" pass right after planObject returns.
func Materialize(sch *schema.Schema, op *operation.BoundOperation, root *solver.Partition) (*Plan, error) {
	m := &materializer{sch: sch, op: op}

	for _, child := range root.Children {
		p, err := m.convert(child, nil, true)
		if err != nil {
			return nil, err
		}
		m.plan.Roots = append(m.plan.Roots, p)
	}

	// Re-link MutationAfter across the materialized roots: the solver
	// already ordered root.Children so each entry's MutationAfter points
	// at its immediate predecessor in that same slice.
	for i, sp := range root.Children {
		if sp.MutationAfter == nil {
			continue
		}
		idx := indexOfSolverPartition(root.Children, sp.MutationAfter)
		if idx >= 0 {
			m.plan.Roots[i].MutationAfter = m.plan.Roots[idx]
		}
	}

	return m.plan, nil
}

func indexOfSolverPartition(all []*solver.Partition, target *solver.Partition) int {
	for i, p := range all {
		if p == target {
			return i
		}
	}
	return -1
}

type materializer struct {
	sch  *schema.Schema
	op   *operation.BoundOperation
	plan Plan
	next int
}

// convert turns one solver.Partition (and its whole subtree) into a
// plan.Partition, threading parent for Representations lookup (an entity
// child's key fields live on its solver-tree parent, not on the child
// itself) and isRoot so only true root-level partitions are classified as
// Form mutation/subscription rather than Form query.
func (m *materializer) convert(sp *solver.Partition, parent *solver.Partition, isRoot bool) (*Partition, error) {
	p := &Partition{
		ID:         m.next,
		Subgraph:   sp.Subgraph,
		ParentType: sp.ParentType,
		Fields:     sp.Fields,
	}
	m.next++
	m.plan.All = append(m.plan.All, p)

	switch {
	case sp.RequiresKeys:
		p.Form = FormEntity
		reps, err := m.buildRepresentations(sp, parent)
		if err != nil {
			return nil, err
		}
		p.Representations = reps
	case isRoot && m.op.Kind == operation.OperationMutation:
		p.Form = FormMutation
	case isRoot && m.op.Kind == operation.OperationSubscription:
		p.Form = FormSubscription
	default:
		p.Form = FormQuery
	}

	r := newRenderer(m.op, m.sch)
	body := r.renderFields(sp.Fields)
	if p.Form == FormEntity {
		typename := m.sch.Type(sp.ParentType).Name
		body = fmt.Sprintf("{ _entities(representations: $representations) { ... on %s %s } }", typename, body)
	}
	p.SelectionText = body
	p.Variables = r.variableUses()
	p.Shape = buildSelectionShape(m.op, m.sch, sp.ParentType, sp.Set)

	for _, sc := range sp.Children {
		cp, err := m.convert(sc, sp, false)
		if err != nil {
			return nil, err
		}
		cp.Parent = p
		p.Children = append(p.Children, cp)
	}

	return p, nil
}

// buildRepresentations reads the first @key the entity type declares for
// the subgraph sp targets to recover, in order, the response keys an entity
// representation is built from (spec §4.4's "Representations... built
// from an ancestor partition's already-ingested response objects").
func (m *materializer) buildRepresentations(sp, parent *solver.Partition) (*Representations, error) {
	if parent == nil {
		return nil, fmt.Errorf("plan: entity partition for %s has no ancestor partition", m.sch.Type(sp.ParentType).Name)
	}
	ent, ok := m.sch.Entity(sp.ParentType)
	if !ok {
		return nil, fmt.Errorf("plan: %s is not an entity", m.sch.Type(sp.ParentType).Name)
	}
	keys := ent.Keys[sp.Subgraph]
	if len(keys) == 0 {
		return nil, fmt.Errorf("plan: subgraph %s has no @key for %s", m.sch.Subgraph(sp.Subgraph).Name, m.sch.Type(sp.ParentType).Name)
	}

	fields := make([]string, 0, len(keys[0].Fields))
	for _, elem := range keys[0].Fields {
		fields = append(fields, elem.Name)
	}

	return &Representations{
		Typename:  m.sch.Type(sp.ParentType).Name,
		KeyFields: fields,
	}, nil
}

// Describe renders a Plan as an indented text tree for debugging and test
// assertions, mirroring the style of solver.OperationGraph.DotGraph as a
// lighter plain-text counterpart.
func (pl *Plan) Describe() string {
	var sb strings.Builder
	for _, root := range pl.Roots {
		describePartition(&sb, root, 0)
	}
	return sb.String()
}

func describePartition(sb *strings.Builder, p *Partition, depth int) {
	fmt.Fprintf(sb, "%s[%d] %s %s\n", strings.Repeat("  ", depth), p.ID, p.Form, p.SelectionText)
	for _, c := range p.Children {
		describePartition(sb, c, depth+1)
	}
}
