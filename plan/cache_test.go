package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thundergraph/gateway/plan"
	"github.com/thundergraph/gateway/schema"
	"github.com/thundergraph/gateway/solver"
)

func buildEntry(t *testing.T, s *schema.Schema, query string) *plan.CacheEntry {
	t.Helper()
	op := bindOp(t, s, query)
	_, root, errs := solver.Solve(s, op)
	require.Empty(t, errs)
	p, err := plan.Materialize(s, op, root)
	require.NoError(t, err)
	return &plan.CacheEntry{Operation: op, Plan: p}
}

func TestCacheGetPut(t *testing.T) {
	s := mustBuild(t)
	c := plan.NewCache(s)

	_, ok := c.Get("{ me { name } }")
	assert.False(t, ok)

	entry := buildEntry(t, s, `{ me { name } }`)
	c.Put("{ me { name } }", entry)

	got, ok := c.Get("{ me { name } }")
	require.True(t, ok)
	assert.Same(t, entry, got)
}

func TestCacheSwapSafeKeepsEntries(t *testing.T) {
	s := mustBuild(t)
	c := plan.NewCache(s)
	entry := buildEntry(t, s, `{ me { name } }`)
	c.Put("k", entry)

	// Rebuilding from the identical SDL is a no-op diff: nothing removed
	// or retyped, so previously cached entries must survive the swap.
	same, err := schema.Build(testSDL)
	require.NoError(t, err)

	diff, err := c.Swap(same)
	require.NoError(t, err)
	assert.True(t, diff.Safe())

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, entry, got)
}

const narrowedSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION

enum join__Graph {
  USERS
  REVIEWS
}

type Query {
  me: User @join__field(graph: USERS)
}

type User @join__type(graph: USERS, key: "id") @join__type(graph: REVIEWS, key: "id") {
  id: ID!
  reviews: [Review!]! @join__field(graph: REVIEWS)
}

type Review @join__type(graph: REVIEWS) {
  stars: Int!
}
`

func TestCacheSwapUnsafeDropsEntries(t *testing.T) {
	s := mustBuild(t)
	c := plan.NewCache(s)
	entry := buildEntry(t, s, `{ me { name } }`)
	c.Put("k", entry)

	updated, err := schema.Build(narrowedSDL)
	require.NoError(t, err)

	diff, err := c.Swap(updated)
	require.NoError(t, err)
	assert.False(t, diff.Safe())
	assert.Contains(t, diff.RemovedFields, "User.name")

	_, ok := c.Get("k")
	assert.False(t, ok)
}
