package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/samsarahq/go/oops"

	"github.com/thundergraph/gateway/gwerrors"
	"github.com/thundergraph/gateway/schema"
)

// Request is one subgraph call: a GraphQL document, its variables, and
// the already rule-evaluated outbound headers (build with
// ApplyHeaderRules).
type Request struct {
	Query     string
	Variables map[string]interface{}
	Headers   map[string]string
}

// GraphQLError is one entry of a subgraph's top-level "errors" array, per
// the standard GraphQL-over-HTTP response shape.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Response is a subgraph's decoded reply: raw "data" bytes (left
// undecoded so the executor's response seed can ingest them directly
// against the plan's Shape) plus any top-level errors.
type Response struct {
	Data   json.RawMessage
	Errors []GraphQLError
}

type requestBody struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type responseBody struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// Call POSTs req to sg's URL and decodes the reply. A non-2xx status or a
// transport failure is reported as a CodePartialData GatewayError per
// spec §7 (a single subgraph's failure nulls its partition's fields
// rather than failing the whole operation).
func (t *Transport) Call(ctx context.Context, sg *schema.Subgraph, req Request) (*Response, error) {
	ctx, cancel := t.deadline(ctx)
	defer cancel()

	body, err := json.Marshal(requestBody{Query: req.Query, Variables: req.Variables})
	if err != nil {
		return nil, gwerrors.Internal(err, "encode subgraph request for %s", sg.Name)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, gwerrors.Internal(err, "build subgraph request for %s", sg.Name)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, gwerrors.PartialData(nil, err, "subgraph %s unreachable", sg.Name)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gwerrors.PartialData(nil, err, "reading subgraph %s response", sg.Name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, gwerrors.PartialData(nil, fmt.Errorf("status %d: %s", resp.StatusCode, raw),
			"subgraph %s returned an error status", sg.Name)
	}

	var rb responseBody
	if err := json.Unmarshal(raw, &rb); err != nil {
		return nil, gwerrors.PartialData(nil, oops.Wrapf(err, "decoding subgraph %s response", sg.Name),
			"subgraph %s returned a malformed response", sg.Name)
	}
	return &Response{Data: rb.Data, Errors: rb.Errors}, nil
}
