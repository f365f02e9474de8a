package subgraph_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thundergraph/gateway/plan"
	"github.com/thundergraph/gateway/schema"
	"github.com/thundergraph/gateway/subgraph"
)

func TestCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", r.Header.Get("x-current-user-id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"me":{"id":"1","name":"Ada"}}}`))
	}))
	defer srv.Close()

	sg := &schema.Subgraph{Name: "USERS", URL: srv.URL, HeaderRules: []schema.HeaderRule{
		{Op: schema.HeaderForward, Name: "x-current-user-id"},
	}}

	tr := subgraph.New()
	headers := subgraph.ApplyHeaderRules(sg, map[string]string{"x-current-user-id": "alice", "x-other": "drop-me"})
	resp, err := tr.Call(context.Background(), sg, subgraph.Request{
		Query:   "{ me { id name } }",
		Headers: headers,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"me":{"id":"1","name":"Ada"}}`, string(resp.Data))
}

func TestCallErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	sg := &schema.Subgraph{Name: "USERS", URL: srv.URL}
	tr := subgraph.New()
	_, err := tr.Call(context.Background(), sg, subgraph.Request{Query: "{ me { id } }"})
	require.Error(t, err)
}

func TestApplyHeaderRulesRenameAndRemove(t *testing.T) {
	sg := &schema.Subgraph{HeaderRules: []schema.HeaderRule{
		{Op: schema.HeaderRename, Name: "authorization", Value: "x-forwarded-auth"},
		{Op: schema.HeaderRemove, Name: "x-secret"},
	}}
	out := subgraph.ApplyHeaderRules(sg, map[string]string{"authorization": "Bearer xyz", "x-secret": "nope"})
	assert.Equal(t, "Bearer xyz", out["x-forwarded-auth"])
	assert.NotContains(t, out, "authorization")
	assert.NotContains(t, out, "x-secret")
}

func TestBuildRepresentations(t *testing.T) {
	rep := &plan.Representations{Typename: "User", KeyFields: []string{"id"}}
	reps := subgraph.BuildRepresentations(rep, []map[string]interface{}{
		{"id": "1", "name": "Ada"},
		{"id": "2", "name": "Grace"},
	})
	require.Len(t, reps, 2)
	assert.Equal(t, "User", reps[0]["__typename"])
	assert.Equal(t, "1", reps[0]["id"])
	assert.NotContains(t, reps[0], "name")
}
