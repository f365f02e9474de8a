package solver

import "strings"

// PlanningErrorKind discriminates a PlanningError, matching the two
// failure modes the spec names for the Query Solver.
type PlanningErrorKind uint8

const (
	// Unsolvable means a field is not producible by any subgraph reachable
	// from the root given current data dependencies.
	Unsolvable PlanningErrorKind = iota
	// Unsatisfiable means a required key is missing from every candidate
	// subgraph that could otherwise serve the field.
	Unsatisfiable
)

func (k PlanningErrorKind) String() string {
	if k == Unsatisfiable {
		return "Unsatisfiable"
	}
	return "Unsolvable"
}

// PlanningError is one solver failure, carrying the response-key path to
// the offending field the way BindError carries a source location.
type PlanningError struct {
	Kind      PlanningErrorKind
	FieldPath []string
	Reason    string
}

func (e *PlanningError) Error() string {
	return e.Kind.String() + " at " + strings.Join(e.FieldPath, ".") + ": " + e.Reason
}
