package solver

import (
	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/schema"
)

// ResolverKey identifies one candidate subgraph query partition: the
// subgraph plus the BoundSelectionSet it would resolve fields within.
// Keying by selection set rather than by each field's concrete parent
// type is what merges interface/union type-condition siblings that
// resolve through the same subgraph into a single resolver node — the
// generalization of the data model's Pass B "interface alternative"
// (§4.3): since the binder already concatenates every concrete-type
// branch of an abstract selection into one BoundSelectionSet, siblings
// reachable from the same subgraph collapse onto one ResolverKey for
// free, with no separate synthetic node required.
type ResolverKey struct {
	Subgraph schema.SubgraphID
	Set      operation.BoundSelectionSetID
}

// Node is one OperationGraph node: either a query field to cover or a
// resolver candidate capable of covering one or more query fields.
type Node struct {
	ID   NodeID
	Kind NodeKind

	// Field is valid when Kind == NodeQueryField.
	Field operation.BoundFieldID

	// Resolver is valid when Kind == NodeResolver.
	Resolver ResolverKey

	// MergedTypes is room for the distinct concrete ParentTypes of a
	// resolver node reached by an interface/union expansion. Solve does
	// not populate it and neither DotGraph nor the tests read it.
	MergedTypes []schema.TypeID
}

// Edge is one OperationGraph edge.
type Edge struct {
	Kind EdgeKind
	From NodeID
	To   NodeID
}

// OperationGraph is the solver's bipartite graph of query fields and
// candidate resolvers, per the data model's "OperationGraph (solver
// input)". Built incrementally during Solve and returned alongside the
// subgraph assignment for inspection, debugging (dot-graph dump) and by
// the Plan Materializer if it needs dependency structure beyond the flat
// assignment.
type OperationGraph struct {
	Nodes []Node
	Edges []Edge

	fieldNode    map[operation.BoundFieldID]NodeID
	resolverNode map[ResolverKey]NodeID
}

func newGraph() *OperationGraph {
	return &OperationGraph{
		fieldNode:    map[operation.BoundFieldID]NodeID{},
		resolverNode: map[ResolverKey]NodeID{},
	}
}

func (g *OperationGraph) fieldNodeFor(f operation.BoundFieldID) NodeID {
	if id, ok := g.fieldNode[f]; ok {
		return id
	}
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{ID: id, Kind: NodeQueryField, Field: f})
	g.fieldNode[f] = id
	return id
}

func (g *OperationGraph) resolverNodeFor(key ResolverKey) NodeID {
	if id, ok := g.resolverNode[key]; ok {
		return id
	}
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{ID: id, Kind: NodeResolver, Resolver: key})
	g.resolverNode[key] = id
	return id
}

func (g *OperationGraph) addEdge(kind EdgeKind, from, to NodeID) {
	g.Edges = append(g.Edges, Edge{Kind: kind, From: from, To: to})
}

// Resolvers returns every resolver node's key, in the order first
// encountered during solving.
func (g *OperationGraph) Resolvers() []ResolverKey {
	keys := make([]ResolverKey, 0, len(g.resolverNode))
	for _, n := range g.Nodes {
		if n.Kind == NodeResolver {
			keys = append(keys, n.Resolver)
		}
	}
	return keys
}
