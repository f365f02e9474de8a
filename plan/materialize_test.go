package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/plan"
	"github.com/thundergraph/gateway/schema"
	"github.com/thundergraph/gateway/solver"
)

const testSDL = `
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
  name: String! @join__field(graph: USERS)
  reviews: [Review!]! @join__field(graph: REVIEWS)
}

type Review @join__type(graph: REVIEWS) {
  stars: Int!
}
`

func mustBuild(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Build(testSDL)
	require.NoError(t, err)
	return s
}

func bindOp(t *testing.T, s *schema.Schema, query string) *operation.BoundOperation {
	t.Helper()
	doc, err := operation.ParseDocument(query)
	require.NoError(t, err)
	op, errs := operation.Bind(s, doc, "", nil)
	require.Empty(t, errs)
	return op
}

func TestMaterializeEntityStitch(t *testing.T) {
	s := mustBuild(t)
	op := bindOp(t, s, `{ me { name reviews { stars } } }`)

	_, root, errs := solver.Solve(s, op)
	require.Empty(t, errs)

	pl, err := plan.Materialize(s, op, root)
	require.NoError(t, err)
	require.NoError(t, pl.Validate())

	require.Len(t, pl.Roots, 1)
	usersPartition := pl.Roots[0]
	assert.Equal(t, plan.FormQuery, usersPartition.Form)
	assert.Contains(t, usersPartition.SelectionText, "name")
	assert.Contains(t, usersPartition.SelectionText, "__typename")
	assert.Contains(t, usersPartition.SelectionText, "id")

	require.Len(t, usersPartition.Children, 1)
	reviewsPartition := usersPartition.Children[0]
	assert.Equal(t, plan.FormEntity, reviewsPartition.Form)
	require.NotNil(t, reviewsPartition.Representations)
	assert.Equal(t, "User", reviewsPartition.Representations.Typename)
	assert.Equal(t, []string{"id"}, reviewsPartition.Representations.KeyFields)
	assert.Contains(t, reviewsPartition.SelectionText, "_entities(representations: $representations)")
	assert.Contains(t, reviewsPartition.SelectionText, "... on User")
	assert.Contains(t, reviewsPartition.SelectionText, "reviews")
	assert.Same(t, usersPartition, reviewsPartition.Parent)

	require.NotEmpty(t, pl.All)
	assert.Equal(t, usersPartition, pl.All[0])
}

func TestMaterializeVariableForwarding(t *testing.T) {
	s := mustBuild(t)
	op := bindOp(t, s, `query Named($skipReviews: Boolean!) { me { name reviews @skip(if: $skipReviews) { stars } } }`)

	_, root, errs := solver.Solve(s, op)
	require.Empty(t, errs)

	pl, err := plan.Materialize(s, op, root)
	require.NoError(t, err)
	require.NoError(t, pl.Validate())

	usersPartition := pl.Roots[0]
	require.Len(t, usersPartition.Children, 1)
	reviewsPartition := usersPartition.Children[0]
	assert.Contains(t, reviewsPartition.SelectionText, "@skip(if: $skipReviews)")

	var found bool
	for _, v := range reviewsPartition.Variables {
		if v.Name == "skipReviews" {
			found = true
		}
	}
	assert.True(t, found, "expected skipReviews to be recorded as a VariableUse")
}
