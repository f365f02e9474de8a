// Package plan lowers a solved solver.Partition tree into an executable
// QueryPlan: for each partition, the actual subgraph selection text to
// send, the entity representation spec (if any), and the output shape
// describing how the executor should ingest the subgraph's reply.
// Grounded on the teacher's federation/planner.go Plan type (the fields
// this package's Partition carries are a direct descendant of it) plus
// the shape-building draft in the teacher's (deleted, thunderpb-bound)
// federation/executor.go, generalized into the data model's
// ConcreteShape/PolymorphicShape/ListShape trio.
package plan

import (
	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/schema"
)

// Form discriminates what kind of subgraph operation a Partition issues.
type Form uint8

const (
	FormQuery Form = iota
	FormMutation
	FormSubscription
	FormEntity
)

func (f Form) String() string {
	switch f {
	case FormMutation:
		return "mutation"
	case FormSubscription:
		return "subscription"
	case FormEntity:
		return "entity"
	default:
		return "query"
	}
}

// VariableUse is one operation variable a partition's selection text
// references; the executor forwards the coerced value for it under the
// same name when it dispatches the subgraph request.
type VariableUse struct {
	Name string
	Type schema.FieldType
}

// Representations describes how an entity Partition's `representations`
// argument is built from an ancestor partition's already-ingested
// response objects.
type Representations struct {
	// Typename is the concrete entity type name sent on every
	// representation's __typename.
	Typename string
	// KeyFields are the response keys (within the parent partition's
	// response objects) whose values become this representation's key
	// fields, in the order the subgraph's @key declares them.
	KeyFields []string
}

// Partition is one dispatchable unit of the plan: one subgraph request.
type Partition struct {
	ID         int
	Subgraph   schema.SubgraphID
	Form       Form
	ParentType schema.TypeID

	// SelectionText is the GraphQL selection set (braces included) this
	// partition sends, rendered with aliases matching BoundField response
	// keys and inserted __typename where an output type is abstract.
	SelectionText string
	Variables     []VariableUse

	Representations *Representations

	// Parent is the data-dependency ancestor this partition must wait on
	// (nil for an independent top-level partition). MutationAfter is the
	// sibling serialization predecessor for root mutation partitions.
	Parent        *Partition
	Children      []*Partition
	MutationAfter *Partition

	Shape *Shape

	// fields is this partition's own top-level BoundField ids, kept for
	// the executor to read response keys / definitions while building the
	// request and ingesting the reply.
	Fields []operation.BoundFieldID
}

// Plan is the Plan Materializer's output: a DAG of Partitions ready for
// the executor to schedule.
type Plan struct {
	// Roots are the partitions with no data-dependency parent, in
	// dispatch order (mutation partitions chained via MutationAfter
	// appear here in serialization order).
	Roots []*Partition
	// All lists every partition in the plan, topologically ordered
	// (parents before children) so the executor can walk it directly
	// without re-deriving the order.
	All []*Partition
}
