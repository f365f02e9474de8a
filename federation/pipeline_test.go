package federation_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thundergraph/gateway/federation"
	"github.com/thundergraph/gateway/schema"
	"github.com/thundergraph/gateway/subgraph"
)

// asJSON round-trips v through JSON so pretty.Compare diffs decoded
// values rather than raw bytes, matching the teacher's own
// graphql/http_test.go comparison style.
func asJSON(t *testing.T, raw []byte) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

const helloSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION

enum join__Graph {
  A
}

type Query {
  hello: String @join__field(graph: A)
}
`

// TestPipelineSingleSubgraphQuery exercises spec §8 scenario 1 end to
// end through Pipeline.Run: parse, bind, solve, materialize, execute,
// with no authorization extension configured.
func TestPipelineSingleSubgraphQuery(t *testing.T) {
	sch, err := schema.Build(helloSDL)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"hello":"hi"}}`))
	}))
	defer srv.Close()
	for i := range sch.Subgraphs() {
		sch.Subgraph(schema.SubgraphID(i)).URL = srv.URL
	}

	transport := subgraph.New(subgraph.WithClient(srv.Client()))
	p := federation.New(sch, transport, nil, nil)

	res := p.Run(context.Background(), &federation.Request{Query: `{ hello }`})
	require.Empty(t, res.Errors)
	if diff := pretty.Compare(asJSON(t, res.Data), asJSON(t, []byte(`{"hello":"hi"}`))); diff != "" {
		t.Error("unexpected response", diff, spew.Sdump(res))
	}
}

func TestPipelineParseError(t *testing.T) {
	sch, err := schema.Build(helloSDL)
	require.NoError(t, err)

	p := federation.New(sch, subgraph.New(), nil, nil)
	res := p.Run(context.Background(), &federation.Request{Query: `{ hello `})
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "REQUEST_ERROR", string(res.Errors[0].Code))
}

// TestPipelineReloadInvalidatesCache checks that a Reload whose diff
// removes the field a previously cached query names (an unsafe diff per
// schema.SchemaDiff.Safe) purges that cached entry -- a subsequent Run of
// the same query text must re-bind against the new schema and fail with
// a validation error, rather than replaying a stale cached plan built
// against the field that no longer exists.
func TestPipelineReloadInvalidatesCache(t *testing.T) {
	sch, err := schema.Build(helloSDL)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"hello":"hi"}}`))
	}))
	defer srv.Close()
	for i := range sch.Subgraphs() {
		sch.Subgraph(schema.SubgraphID(i)).URL = srv.URL
	}

	transport := subgraph.New(subgraph.WithClient(srv.Client()))
	p := federation.New(sch, transport, nil, nil)

	res := p.Run(context.Background(), &federation.Request{Query: `{ hello }`})
	require.Empty(t, res.Errors)

	const renamedSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION

enum join__Graph {
  A
}

type Query {
  goodbye: String @join__field(graph: A)
}
`
	updated, err := schema.Build(renamedSDL)
	require.NoError(t, err)

	diff, err := p.Reload(updated)
	require.NoError(t, err)
	assert.False(t, diff.Safe())
	assert.Contains(t, diff.RemovedFields, "Query.hello")

	res = p.Run(context.Background(), &federation.Request{Query: `{ hello }`})
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "OPERATION_VALIDATION_ERROR", string(res.Errors[0].Code))
}

func TestPipelineBindError(t *testing.T) {
	sch, err := schema.Build(helloSDL)
	require.NoError(t, err)

	p := federation.New(sch, subgraph.New(), nil, nil)
	res := p.Run(context.Background(), &federation.Request{Query: `{ doesNotExist }`})
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "OPERATION_VALIDATION_ERROR", string(res.Errors[0].Code))
}
