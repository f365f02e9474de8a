// Package authz mediates between user policy and the executor (spec
// §4.7): a pre-execution hook over QueryElements and a response-stage
// hook over deserialized items, both backed by a pluggable extension.
// Grounded on volaticloud-volaticloud's internal/authz package, whose
// AuthorizeHook/verify/scopes split between "decide" and "apply the
// decision's errors" is generalized here from its Keycloak/UMA-specific
// scope checks into the directive-driven QueryElement/ResponseItem model
// spec §4.7 names.
package authz

import "github.com/thundergraph/gateway/gwerrors"

// Site identifies a schema location a QueryElement or @authorized
// directive application is attached to.
type Site struct {
	TypeName  string
	FieldName string
	// IsRoot is true when Site is a root query/mutation/subscription
	// field -- a denial here terminates the whole request rather than
	// just nulling one field.
	IsRoot bool
}

// QueryElement is one `@authorized`-gated directive application
// discovered by walking the bound operation before execution, reported to
// authorize_query with a dense id the decision can reference.
type QueryElement struct {
	ID        int
	Directive string
	Arguments map[string]interface{}
	Site      Site
	Path      []string
}

// DecisionKind discriminates the three shapes AuthorizationDecisions can
// take.
type DecisionKind uint8

const (
	GrantAll DecisionKind = iota
	DenyAll
	DenySome
)

// ElementError pairs a denied QueryElement's id with the error to attach
// at its path.
type ElementError struct {
	ElementID int
	Err       *gwerrors.GatewayError
}

// Decisions is the output of authorize_query: GrantAll, DenyAll(err), or
// DenySome with a per-element error list. Each ElementError holds its own
// error pointer; there is no separate error pool (unlike ItemDecisions),
// so denials with an identical cause share an entry only when the policy
// hands the same *GatewayError to each of them.
type Decisions struct {
	Kind DecisionKind

	// DenyAllErr is set when Kind == DenyAll.
	DenyAllErr *gwerrors.GatewayError

	// PerElement holds one entry per denied QueryElement when
	// Kind == DenySome.
	PerElement []ElementError

	// State is opaque to the weaver; it is threaded back into
	// authorize_response unchanged.
	State []byte

	// ExtraHeaders are additional subgraph request headers the policy
	// wants forwarded downstream (e.g. an impersonation token).
	ExtraHeaders map[string]string
}

// Denied reports whether element was named in a DenySome/DenyAll
// decision, returning the error to attach if so.
func (d *Decisions) Denied(elementID int) (*gwerrors.GatewayError, bool) {
	switch d.Kind {
	case DenyAll:
		return d.DenyAllErr, true
	case DenySome:
		for _, pe := range d.PerElement {
			if pe.ElementID == elementID {
				return pe.Err, true
			}
		}
	}
	return nil, false
}

// ItemDecisionKind mirrors DecisionKind for the response-stage hook's
// per-item result.
type ItemDecisionKind uint8

const (
	ItemGrantAll ItemDecisionKind = iota
	ItemDenyAll
	ItemDenySome
)

// ItemError pairs a denied response item's index with an error id
// referencing the shared error pool.
type ItemError struct {
	ItemIndex int
	ErrorID   int
}

// ItemDecisions is authorize_response's output.
type ItemDecisions struct {
	Kind       ItemDecisionKind
	DenyAllErr *gwerrors.GatewayError
	PerItem    []ItemError
	ErrorPool  map[int]*gwerrors.GatewayError
}

// Denied reports whether itemIndex was denied, returning its error.
func (d *ItemDecisions) Denied(itemIndex int) (*gwerrors.GatewayError, bool) {
	switch d.Kind {
	case ItemDenyAll:
		return d.DenyAllErr, true
	case ItemDenySome:
		for _, pe := range d.PerItem {
			if pe.ItemIndex == itemIndex {
				return d.ErrorPool[pe.ErrorID], true
			}
		}
	}
	return nil, false
}

// Policy is the pluggable extension backing the weaver -- an
// Authorization-kind Extension per spec §4.8, invoked directly here
// rather than through the wire codec (an in-process policy satisfies
// this interface directly; a sandboxed one is adapted by the extension
// package).
type Policy interface {
	// AuthorizeQuery is called once per operation, after binding and
	// before partition execution.
	AuthorizeQuery(headers map[string]string, token []byte, elements []QueryElement) (*Decisions, error)
	// AuthorizeResponse is called per @authorized(fields: ...) directive
	// encountering deserialized items, reusing the state AuthorizeQuery
	// returned.
	AuthorizeResponse(state []byte, directive string, site Site, items []interface{}) (*ItemDecisions, error)
}

// Weaver drives Policy and turns its decisions into GatewayErrors placed
// at the right response paths, per spec §4.7's "inserts the associated
// error at the field path and marks the field inaccessible".
type Weaver struct {
	policy Policy
}

// New builds a Weaver over policy. A nil policy is valid and always
// grants (the common case when no authorization extension is
// configured).
func New(policy Policy) *Weaver {
	return &Weaver{policy: policy}
}

// AuthorizeQuery runs the pre-execution hook. With no policy configured
// it trivially grants everything.
func (w *Weaver) AuthorizeQuery(headers map[string]string, token []byte, elements []QueryElement) (*Decisions, error) {
	if w.policy == nil {
		return &Decisions{Kind: GrantAll}, nil
	}
	return w.policy.AuthorizeQuery(headers, token, elements)
}

// AuthorizeResponse runs the response-stage hook.
func (w *Weaver) AuthorizeResponse(state []byte, directive string, site Site, items []interface{}) (*ItemDecisions, error) {
	if w.policy == nil {
		return &ItemDecisions{Kind: ItemGrantAll}, nil
	}
	return w.policy.AuthorizeResponse(state, directive, site, items)
}

// RootDenials returns the subset of a DenySome decision's denied elements
// whose Site.IsRoot is true -- per spec §4.7, a denial at the root
// terminates the whole request rather than nulling one field.
func RootDenials(elements []QueryElement, d *Decisions) []ElementError {
	if d.Kind == GrantAll {
		return nil
	}
	var out []ElementError
	bySite := make(map[int]Site, len(elements))
	for _, e := range elements {
		bySite[e.ID] = e.Site
	}
	if d.Kind == DenyAll {
		for _, e := range elements {
			if e.Site.IsRoot {
				out = append(out, ElementError{ElementID: e.ID, Err: d.DenyAllErr})
			}
		}
		return out
	}
	for _, pe := range d.PerElement {
		if bySite[pe.ElementID].IsRoot {
			out = append(out, pe)
		}
	}
	return out
}
