package solver

import (
	"fmt"
	"sort"

	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/schema"
)

// Partition is one node of the solver's resolved partition tree: the
// generalization of the teacher's planner.go Plan to the data model's
// QueryPlan.Partition, built before the plan package lowers it into an
// executable subgraph request. Grounded directly on planner.go's
// recursive planObject/plan, carrying the same "fields kept locally vs.
// fields grouped by the service that must resolve them" split, but
// addressing BoundFields by id instead of holding *graphql.Selection
// pointers, and inserting synthetic key/__typename Extra fields (data
// model §3) instead of the teacher's single hard-coded "_federation"
// wrapper field.
type Partition struct {
	// Subgraph is the service this partition's request is sent to. The
	// very root Partition returned by Solve carries the noSubgraph
	// sentinel: it never issues a request of its own, only its Children
	// (one per subgraph reachable at the operation root) do.
	Subgraph schema.SubgraphID

	// Set is the BoundSelectionSet this partition's top-level Fields were
	// drawn from — either the real selection set the binder produced, or
	// a synthetic one allocated for a cross-subgraph field group.
	Set operation.BoundSelectionSetID

	// ParentType is the type this partition's Fields are selected against.
	ParentType schema.TypeID

	// Fields are this partition's own top-level field ids, in the order
	// they should be requested (query order for bound fields; appended
	// order for Extra key/typename fields).
	Fields []operation.BoundFieldID

	// RequiresKeys is true for an entity partition: the executor must
	// build the `representations` argument from objects an ancestor
	// partition produced, keyed by the fields that ancestor was made to
	// fetch via ensureKeyFields.
	RequiresKeys bool

	// Children are partitions reached either by descending into one of
	// this partition's fields (Path records the field chain in that
	// case) or by a sibling subgraph split at the same nesting level
	// (empty Path).
	Children []*Partition

	// Path is the chain of ancestor BoundFields (within ancestor
	// partitions, not this one) leading to this partition, innermost
	// first as accumulated during the upward bubble; it is not reversed
	// afterwards.
	Path []operation.BoundFieldID

	// MutationAfter, for a root mutation partition, is the sibling
	// partition that must finish first — the serialization the teacher
	// enforces by refusing any plan with more than one mutation root
	// step; here each subgraph gets its own serialized slot instead.
	MutationAfter *Partition
}

type solveState struct {
	schema *schema.Schema
	op     *operation.BoundOperation
	graph  *OperationGraph
	errs   []*PlanningError
}

// Solve decomposes op into an OperationGraph (kept for introspection, the
// dot-graph debug dump, and tests) plus a Partition tree ready for the
// plan package to lower into a QueryPlan. Pass A (candidate enumeration)
// and Pass C (service selection) are fused into one recursive descent
// matching the teacher's planObject, since a full alternative Steiner-tree
// search is unnecessary when, as in the teacher, a field has at most one
// resolving subgraph once @provides/@requires are taken into account;
// Pass B (interface alternatives) is handled implicitly because the
// binder already concatenates abstract-type branches into one
// BoundSelectionSet, so siblings reachable from the same subgraph merge
// onto one partition for free (see ResolverKey's doc comment).
func Solve(sch *schema.Schema, op *operation.BoundOperation) (*OperationGraph, *Partition, []*PlanningError) {
	s := &solveState{schema: sch, op: op, graph: newGraph()}

	root := s.planSelectionSet(op.RootType, op.Root, noSubgraph)
	if len(s.errs) > 0 {
		return s.graph, nil, s.errs
	}

	if op.Kind == operation.OperationMutation {
		s.sequenceMutationRoots(root)
	}

	return s.graph, root, nil
}

// planSelectionSet is the per-type, per-service recursion at the heart of
// the solver: split set's fields into those current can resolve directly
// and those that must be grouped off to another subgraph, recurse into
// each, and bubble deeper subgraph switches up with the responsible field
// prepended to their Path.
func (s *solveState) planSelectionSet(parentType schema.TypeID, setID operation.BoundSelectionSetID, current schema.SubgraphID) *Partition {
	set := s.op.SelectionSet(setID)
	p := &Partition{Subgraph: current, Set: setID, ParentType: parentType}

	var local []operation.BoundFieldID
	bySubgraph := map[schema.SubgraphID][]operation.BoundFieldID{}

	for _, fid := range set.Fields {
		f := s.op.Field(fid)
		if f.Kind == operation.KindTypeName {
			local = append(local, fid)
			continue
		}
		fd := s.schema.Field(f.Definition)

		if !fd.Resolvable[current] && fd.Derived != nil {
			if src, ok := s.findDerivedSource(current, set, fd.Derived); ok {
				s.op.Fields[fid].HasDerivedFrom = true
				s.op.Fields[fid].DerivedFrom = src
				local = append(local, fid)
				continue
			}
		}

		target, perr := s.selectSubgraph(fd, current, bySubgraph)
		if perr != nil {
			s.errs = append(s.errs, perr)
			continue
		}
		if target == current {
			local = append(local, fid)
		} else {
			bySubgraph[target] = append(bySubgraph[target], fid)
		}
	}

	for _, fid := range local {
		p.Fields = append(p.Fields, fid)
		s.recordFieldAssignment(fid, ResolverKey{Subgraph: current, Set: setID})

		f := s.op.Field(fid)
		if f.Kind != operation.KindQuery || !f.HasSelectionSet {
			continue
		}
		fd := s.schema.Field(f.Definition)
		child := s.planSelectionSet(fd.Type.Leaf, f.SelectionSet, current)
		for _, sub := range child.Children {
			sub.Path = append(sub.Path, fid)
			p.Children = append(p.Children, sub)
		}
		s.rebindLocalSelection(fid, child)
	}

	var others []schema.SubgraphID
	for sg := range bySubgraph {
		others = append(others, sg)
	}
	sort.Slice(others, func(i, j int) bool {
		return s.schema.Subgraph(others[i]).Name < s.schema.Subgraph(others[j]).Name
	})

	for _, sg := range others {
		child := s.planCrossSubgraph(parentType, bySubgraph[sg], sg)
		if _, isEntity := s.schema.Entity(parentType); isEntity {
			child.RequiresKeys = true
			s.ensureKeyFields(parentType, sg, p, child)
		}
		p.Children = append(p.Children, child)
	}

	return p
}

// planCrossSubgraph re-enters planSelectionSet over the same parentType
// under the new subgraph — the teacher's recursive
// e.plan(typ, &SelectionSet{Selections: selections}, other) — so that
// each grouped field's own sub-selection is itself split recursively
// rather than assumed fully resolvable by the new subgraph.
func (s *solveState) planCrossSubgraph(parentType schema.TypeID, fields []operation.BoundFieldID, sg schema.SubgraphID) *Partition {
	newSet := s.op.AddExtraSelectionSet()
	for _, fid := range fields {
		s.op.AppendField(newSet, fid)
	}
	return s.planSelectionSet(parentType, newSet, sg)
}

// selectSubgraph returns current when the field is directly resolvable
// there (the teacher's selectService "prefer the current service"
// branch), otherwise the resolvable candidate with the lowest marginal
// Steiner-tree edge weight (resolverCost), breaking remaining ties by
// name per spec §4.3's tie-break rule (b).
func (s *solveState) selectSubgraph(fd *schema.FieldDefinition, current schema.SubgraphID, opened map[schema.SubgraphID][]operation.BoundFieldID) (schema.SubgraphID, *PlanningError) {
	if current != noSubgraph && fd.Resolvable[current] {
		return current, nil
	}
	res := s.schema.SubgraphsForField(fd.ID)
	if len(res) == 0 {
		return 0, &PlanningError{
			Kind:      Unsolvable,
			FieldPath: []string{fd.Name},
			Reason:    "no subgraph can resolve this field",
		}
	}
	candidates := make([]schema.SubgraphID, 0, len(res))
	for _, r := range res {
		candidates = append(candidates, r.Subgraph)
	}

	best := candidates[0]
	bestCost := s.resolverCost(fd, best, opened)
	bestName := s.schema.Subgraph(best).Name
	for _, c := range candidates[1:] {
		cost := s.resolverCost(fd, c, opened)
		name := s.schema.Subgraph(c).Name
		if cost < bestCost || (cost == bestCost && name < bestName) {
			best, bestCost, bestName = c, cost, name
		}
	}
	return best, nil
}

// resolverCost is the marginal edge weight of routing fd to sg within the
// selection set currently being planned: baseResolverCost only the first
// time a subgraph is opened for this set (the Steiner-tree cost of adding
// a new resolver node), plus fd's own @cost/@listSize-scaled weight every
// time (solve/steiner_tree/graph.rs's baseCost + Σ fieldCost) — so the
// greedy field-by-field assignment above prefers reusing a subgraph
// already opened by an earlier sibling field over opening a new one,
// approximating the original's Steiner-tree minimization without a full
// alternative-tree search.
func (s *solveState) resolverCost(fd *schema.FieldDefinition, sg schema.SubgraphID, opened map[schema.SubgraphID][]operation.BoundFieldID) int {
	cost := fieldCost(fd)
	if len(opened[sg]) == 0 {
		cost += baseResolverCost
	}
	return cost
}

// findDerivedSource reports whether derived's source sibling field is
// directly resolvable by current and already present in set — "the
// source field is already in the plan" per SPEC_FULL §13 — in which case
// the caller should reconstruct the field's value by projection instead
// of dispatching a join to wherever else the field might be resolvable.
func (s *solveState) findDerivedSource(current schema.SubgraphID, set *operation.BoundSelectionSet, derived *schema.DerivedField) (operation.BoundFieldID, bool) {
	for _, fid := range set.Fields {
		bf := s.op.Field(fid)
		if bf.Kind != operation.KindQuery {
			continue
		}
		srcFD := s.schema.Field(bf.Definition)
		if srcFD.Name == derived.From && srcFD.Resolvable[current] {
			return fid, true
		}
	}
	return 0, false
}

// ensureKeyFields inserts the Extra __typename and key-field fetches that
// child's entity lookup needs into the ancestor partition p that already
// produces objects of parentType, and records the RequiredBySubgraph
// edges from child's own fields to those key fields.
func (s *solveState) ensureKeyFields(parentType schema.TypeID, target schema.SubgraphID, p, child *Partition) {
	ent, ok := s.schema.Entity(parentType)
	if !ok {
		return
	}
	keys := ent.Keys[target]
	if len(keys) == 0 {
		s.errs = append(s.errs, &PlanningError{
			Kind:      Unsatisfiable,
			FieldPath: []string{s.schema.Type(parentType).Name},
			Reason:    fmt.Sprintf("subgraph %q has no @key for %q", s.schema.Subgraph(target).Name, s.schema.Type(parentType).Name),
		})
		return
	}

	s.ensureTypename(parentType, p)
	var keyFieldIDs []operation.BoundFieldID
	s.ensureFieldSet(parentType, keys[0].Fields,
		func() []operation.BoundFieldID { return p.Fields },
		func(id operation.BoundFieldID) {
			p.Fields = append(p.Fields, id)
			keyFieldIDs = append(keyFieldIDs, id)
		},
	)

	for _, keyField := range keyFieldIDs {
		keyNode := s.graph.fieldNodeFor(keyField)
		for _, childField := range child.Fields {
			s.graph.addEdge(EdgeRequiredBySubgraph, s.graph.fieldNodeFor(childField), keyNode)
		}
	}
}

func (s *solveState) ensureTypename(parentType schema.TypeID, p *Partition) {
	for _, fid := range p.Fields {
		if s.op.Field(fid).Kind == operation.KindTypeName {
			return
		}
	}
	p.Fields = append(p.Fields, s.op.AddExtraTypeName(parentType))
}

// rebindLocalSelection re-points fid's rendered sub-selection at exactly
// child's own field list: the fields current can resolve directly, plus
// any synthesized __typename/key fetches ensureKeyFields added to child,
// minus whatever was routed off to another subgraph (those live on
// sibling partitions bubbled into p.Children instead and are rendered
// independently as their own subgraph requests). Without this, rendering
// fid's selection from the original BoundSelectionSet would ask this
// subgraph for fields it cannot resolve.
func (s *solveState) rebindLocalSelection(fid operation.BoundFieldID, child *Partition) {
	localSet := s.op.AddExtraSelectionSet()
	for _, lf := range child.Fields {
		s.op.AppendField(localSet, lf)
	}
	s.op.Fields[fid].SelectionSet = localSet
}

// ensureFieldSet walks a federation FieldSet (a @key/@requires selection),
// reusing any field already present (found via existing()) and otherwise
// synthesizing an Extra BoundField handed to appender. Nested elements
// get their own BoundSelectionSet so deeper fields are appended there
// instead of back into the top-level list.
func (s *solveState) ensureFieldSet(parentType schema.TypeID, set schema.FieldSet, existing func() []operation.BoundFieldID, appender func(operation.BoundFieldID)) {
	for _, elem := range set {
		fid, ok := s.schema.FieldByName(parentType, elem.Name)
		if !ok {
			continue
		}

		var bf operation.BoundFieldID
		found := false
		for _, cand := range existing() {
			cf := s.op.Field(cand)
			if cf.Kind != operation.KindTypeName && cf.Definition == fid {
				bf = cand
				found = true
				break
			}
		}
		if !found {
			bf = s.op.AddExtraField(parentType, fid, elem.Name)
			appender(bf)
		}

		if len(elem.Sub) == 0 {
			continue
		}

		fd := s.schema.Field(fid)
		bff := s.op.Field(bf)
		var childSet operation.BoundSelectionSetID
		if bff.HasSelectionSet {
			childSet = bff.SelectionSet
		} else {
			childSet = s.op.AddExtraSelectionSet()
			s.op.Fields[bf].SelectionSet = childSet
			s.op.Fields[bf].HasSelectionSet = true
		}
		s.ensureFieldSet(fd.Type.Leaf, elem.Sub,
			func() []operation.BoundFieldID { return s.op.SelectionSet(childSet).Fields },
			func(id operation.BoundFieldID) { s.op.AppendField(childSet, id) },
		)
	}
}

func (s *solveState) recordFieldAssignment(fid operation.BoundFieldID, key ResolverKey) {
	fieldNode := s.graph.fieldNodeFor(fid)
	resolverNode := s.graph.resolverNodeFor(key)
	s.graph.addEdge(EdgeField, resolverNode, fieldNode)
	s.graph.addEdge(EdgeQueryPartition, fieldNode, resolverNode)
}

// sequenceMutationRoots imposes spec §4.3's total order on root mutation
// partitions by query position, chaining each to its predecessor via
// MutationAfter and recording the matching graph edge. Mutation fields
// sharing one subgraph are already ordered correctly by that subgraph's
// own GraphQL execution semantics (one selection set, left to right), so
// this only needs to order the (rare) case of root fields split across
// subgraphs.
func (s *solveState) sequenceMutationRoots(root *Partition) {
	children := append([]*Partition(nil), root.Children...)
	sort.SliceStable(children, func(i, j int) bool {
		return s.minQueryPosition(children[i]) < s.minQueryPosition(children[j])
	})
	for i := 1; i < len(children); i++ {
		children[i].MutationAfter = children[i-1]
		prevKey := ResolverKey{Subgraph: children[i-1].Subgraph, Set: children[i-1].Set}
		curKey := ResolverKey{Subgraph: children[i].Subgraph, Set: children[i].Set}
		s.graph.addEdge(EdgeMutationExecutedAfter, s.graph.resolverNodeFor(prevKey), s.graph.resolverNodeFor(curKey))
	}
	root.Children = children
}

func (s *solveState) minQueryPosition(p *Partition) int {
	min := int(^uint(0) >> 1)
	for _, fid := range p.Fields {
		if qp := s.op.Field(fid).QueryPosition; qp >= 0 && qp < min {
			min = qp
		}
	}
	return min
}
