package operation

import "strconv"

// BindErrorKind enumerates the binder's failure categories, matching the
// data model's BindError enum.
type BindErrorKind uint8

const (
	UnknownField BindErrorKind = iota
	UnknownType
	ArgumentCoercion
	VariableType
	MergedFieldConflict
	NoMutationDefined
	NoSubscriptionDefined
)

func (k BindErrorKind) String() string {
	switch k {
	case UnknownField:
		return "UnknownField"
	case UnknownType:
		return "UnknownType"
	case ArgumentCoercion:
		return "ArgumentCoercion"
	case VariableType:
		return "VariableType"
	case MergedFieldConflict:
		return "MergedFieldConflict"
	case NoMutationDefined:
		return "NoMutationDefined"
	case NoSubscriptionDefined:
		return "NoSubscriptionDefined"
	default:
		return "Unknown"
	}
}

// BindError is one binding failure, always carrying a source location.
type BindError struct {
	Kind     BindErrorKind
	Message  string
	Location Location
}

func (e *BindError) Error() string {
	return e.Kind.String() + " at " + strconv.Itoa(e.Location.Line) + ":" + strconv.Itoa(e.Location.Column) + ": " + e.Message
}
