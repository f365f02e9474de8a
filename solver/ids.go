// Package solver implements the Query Solver: it chooses, for every field
// of a BoundOperation, which subgraph will produce it, inserting synthetic
// key/@requires fetches where a chosen subgraph needs data it does not
// itself hold. Grounded on the teacher's federation/planner.go
// (Plan/PathStep/flattener, selectService's current-service-first
// heuristic) generalized from a tree of *graphql.Selection pointers into
// an id-indexed OperationGraph plus a flat subgraph assignment, per the
// data model's OperationGraph description.
package solver

import "github.com/thundergraph/gateway/schema"

// NodeID identifies a node in an OperationGraph.
type NodeID uint32

// NodeKind discriminates an OperationGraph node.
type NodeKind uint8

const (
	// NodeQueryField is a BoundField the solver must cover.
	NodeQueryField NodeKind = iota
	// NodeResolver is a candidate subgraph query partition.
	NodeResolver
)

// EdgeKind discriminates an OperationGraph edge, matching the data
// model's four (plus mutation-ordering) edge labels.
type EdgeKind uint8

const (
	// EdgeField goes resolver -> query field it can provide.
	EdgeField EdgeKind = iota
	// EdgeQueryPartition goes query field -> resolver that would serve it.
	EdgeQueryPartition
	// EdgeRequiredBySubgraph (solid) goes field A -> field B meaning A
	// requires B fetched in the same subgraph first (an entity key).
	EdgeRequiredBySubgraph
	// EdgeRequiredBySupergraph (dashed) goes field A -> field B meaning B
	// must be produced somewhere in the plan before A is computable
	// (an @requires dependency).
	EdgeRequiredBySupergraph
	// EdgeMutationExecutedAfter orders mutation-root partitions.
	EdgeMutationExecutedAfter
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeField:
		return "Field"
	case EdgeQueryPartition:
		return "QueryPartition"
	case EdgeRequiredBySubgraph:
		return "RequiredBySubgraph"
	case EdgeRequiredBySupergraph:
		return "RequiredBySupergraph"
	case EdgeMutationExecutedAfter:
		return "MutationExecutedAfter"
	default:
		return "Unknown"
	}
}

// StepKind discriminates a PathStep, matching the teacher's planner.go
// StepKind (KindType/KindField) renamed to avoid colliding with the
// schema package's type-kind enum.
type StepKind uint8

const (
	StepField StepKind = iota
	StepType
)

// PathStep is one step in the path from the operation root to a
// partition, directly carried over from the teacher's PathStep.
type PathStep struct {
	Kind StepKind
	Name string
}

// noSubgraph is the sentinel "current subgraph" at the operation root,
// where no real partition is yet local — any field assigned there starts
// a brand new root partition rather than joining an existing one. Mirrors
// the noTargetType sentinel idiom used in operation/bind.go.
const noSubgraph = ^schema.SubgraphID(0)
