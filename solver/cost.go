package solver

import "github.com/thundergraph/gateway/schema"

// baseResolverCost is the flat per-subgraph-call cost the spec names
// ("a small positive constant per subgraph call") added once whenever a
// query field is first assigned to a resolver not already used by its
// enclosing selection set.
const baseResolverCost = 10

// fieldCost returns the @cost weight for a field, defaulting to 1, scaled
// by its @listSize assumed size whenever the field carries @listSize.
// Supplements the distilled spec (§4.3 names "@cost if present" without
// detail) from the original's solve/steiner_tree/graph.rs edge-weighting.
// Only the field's own weight is scaled; the cost of its sub-selection
// is not included.
func fieldCost(fd *schema.FieldDefinition) int {
	cost := 1
	if fd.Cost > 0 {
		cost = fd.Cost
	}
	if fd.ListSize != nil && fd.ListSize.AssumedSize > 0 {
		cost *= fd.ListSize.AssumedSize
	}
	return cost
}
