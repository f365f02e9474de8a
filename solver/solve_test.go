package solver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thundergraph/gateway/operation"
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

type Mutation {
  setX(v: Int!): Int @join__field(graph: USERS)
  setY(v: Int!): Int @join__field(graph: REVIEWS)
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

func subgraphByName(s *schema.Schema, name string) schema.SubgraphID {
	for _, sg := range s.Subgraphs() {
		if sg.Name == name {
			return sg.ID
		}
	}
	panic("no such subgraph: " + name)
}

func TestSolveEntityStitch(t *testing.T) {
	s := mustBuild(t)
	op := bindOp(t, s, `{ me { name reviews { stars } } }`)

	graph, root, errs := solver.Solve(s, op)
	require.Empty(t, errs)
	require.NotNil(t, root)
	require.NotEmpty(t, graph.Nodes)

	// The virtual operation root never dispatches; its one child is the
	// USERS partition selecting "me".
	require.Len(t, root.Children, 1)
	usersPartition := root.Children[0]
	assert.Equal(t, subgraphByName(s, "USERS"), usersPartition.Subgraph)

	// Descending into "me"'s own selection set yields one child for the
	// REVIEWS subgraph, requiring a key fetch.
	require.Len(t, usersPartition.Children, 1)
	reviewsPartition := usersPartition.Children[0]
	assert.Equal(t, subgraphByName(s, "REVIEWS"), reviewsPartition.Subgraph)
	assert.True(t, reviewsPartition.RequiresKeys)

	// The "me" field's own BoundSelectionSet must have grown an id +
	// __typename key fetch to satisfy the REVIEWS entity lookup -- the
	// nested local-field descent that synthesizes them is discarded once
	// its Children bubble up to usersPartition, so these land in the real
	// selection set rather than on any partition still walkable here.
	meID, _ := s.FieldByName(s.QueryType(), "me")
	var meFieldID operation.BoundFieldID
	for _, fid := range usersPartition.Fields {
		if op.Field(fid).Definition == meID {
			meFieldID = fid
		}
	}
	meField := op.Field(meFieldID)
	require.True(t, meField.HasSelectionSet)

	foundID, foundTypename := false, false
	for _, fid := range op.SelectionSet(meField.SelectionSet).Fields {
		bf := op.Field(fid)
		switch bf.Kind {
		case operation.KindTypeName:
			foundTypename = true
		case operation.KindExtra:
			if s.Field(bf.Definition).Name == "id" {
				foundID = true
			}
		}
	}
	assert.True(t, foundID, "expected synthesized id key fetch")
	assert.True(t, foundTypename, "expected synthesized __typename")

	// child2 (the REVIEWS entity partition) is reachable by ParentType
	// from usersPartition's own Children.
	userType, _ := s.LookupObjectByName("User")
	require.NotNil(t, findPartitionForType(usersPartition, userType))
}

// findPartitionForType walks p looking for the partition whose
// ParentType matches typ -- here the top partition's ParentType is Query,
// so the match is its REVIEWS child.
func findPartitionForType(p *solver.Partition, typ schema.TypeID) *solver.Partition {
	if p.ParentType == typ {
		return p
	}
	for _, c := range p.Children {
		if found := findPartitionForType(c, typ); found != nil {
			return found
		}
	}
	return nil
}

func TestSolveSingleSubgraph(t *testing.T) {
	s := mustBuild(t)
	op := bindOp(t, s, `{ me { name } }`)

	_, root, errs := solver.Solve(s, op)
	require.Empty(t, errs)
	require.Len(t, root.Children, 1)
	assert.Empty(t, root.Children[0].Children, "no cross-subgraph hop needed")
}

const costSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION
directive @cost(weight: Int!) on FIELD_DEFINITION

enum join__Graph {
  USERS
  REVIEWS
  PROFILES
}

type Query {
  me: User @join__field(graph: USERS)
}

type User @join__type(graph: USERS, key: "id") @join__type(graph: REVIEWS, key: "id") @join__type(graph: PROFILES, key: "id") {
  id: ID!
  name: String! @join__field(graph: USERS)
  bio: String @join__field(graph: REVIEWS, requires: "id") @join__field(graph: PROFILES, requires: "id") @cost(weight: 50)
  reviews: [Review!]! @join__field(graph: REVIEWS)
}

type Review @join__type(graph: REVIEWS) {
  stars: Int!
}
`

// TestSolveCostWeightedTieBreak checks that, once a partition has already
// opened a resolver for one subgraph, a later field resolvable on *both*
// that subgraph and another prefers reusing the already-opened one
// (marginal cost = fieldCost only) over paying baseResolverCost to open
// a second -- even though PROFILES would win the old alphabetical-only
// tie-break over REVIEWS.
func TestSolveCostWeightedTieBreak(t *testing.T) {
	cs, err := schema.Build(costSDL)
	require.NoError(t, err)

	op := bindOp(t, cs, `{ me { reviews { stars } bio } }`)
	_, root, errs := solver.Solve(cs, op)
	require.Empty(t, errs)

	usersPartition := root.Children[0]
	assert.Equal(t, subgraphByName(cs, "USERS"), usersPartition.Subgraph)

	// "reviews" only resolves on REVIEWS, opening that resolver first;
	// "bio" resolves on both REVIEWS and PROFILES and must follow it
	// there rather than opening PROFILES, so usersPartition gets exactly
	// one cross-subgraph child.
	require.Len(t, usersPartition.Children, 1)
	assert.Equal(t, subgraphByName(cs, "REVIEWS"), usersPartition.Children[0].Subgraph)
}

const derivedSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION
directive @derived(from: String!) on FIELD_DEFINITION

enum join__Graph {
  USERS
  REVIEWS
}

type Query {
  me: User @join__field(graph: USERS)
}

type User @join__type(graph: USERS, key: "id") @join__type(graph: REVIEWS, key: "id") {
  id: ID!
  reviews: [Review!]! @join__field(graph: USERS)
  reviewCount: Int @join__field(graph: REVIEWS) @derived(from: "reviews")
}

type Review @join__type(graph: REVIEWS) {
  stars: Int!
}
`

// TestSolveDerivedFieldAvoidsJoin checks that a @derived field whose
// source sibling is already selected locally is kept on the current
// partition (a join-avoidance projection at ingestion) instead of being
// routed to the source's own subgraph.
func TestSolveDerivedFieldAvoidsJoin(t *testing.T) {
	ds, err := schema.Build(derivedSDL)
	require.NoError(t, err)

	// reviewCount resolves directly only on REVIEWS, while its source
	// "reviews" resolves on USERS; make sure USERS is not among
	// reviewCount's own subgraphs so keeping it there can only come from
	// the derived path.
	reviewCountID, ok := ds.FieldByName(mustLookupUser(t, ds), "reviewCount")
	require.True(t, ok)
	delete(ds.Field(reviewCountID).Resolvable, subgraphByName(ds, "USERS"))

	op := bindOp(t, ds, `{ me { reviews { stars } reviewCount } }`)
	_, root, errs := solver.Solve(ds, op)
	require.Empty(t, errs)

	usersPartition := root.Children[0]
	assert.Equal(t, subgraphByName(ds, "USERS"), usersPartition.Subgraph)

	var sawReviewCount bool
	for _, fid := range usersPartition.Fields {
		bf := op.Field(fid)
		if bf.Kind == operation.KindQuery && bf.Definition == reviewCountID {
			sawReviewCount = true
			assert.True(t, bf.HasDerivedFrom, "reviewCount should be marked derived")
		}
	}
	assert.True(t, sawReviewCount, "reviewCount should stay local to USERS instead of routing to REVIEWS")
}

func mustLookupUser(t *testing.T, s *schema.Schema) schema.TypeID {
	t.Helper()
	id, ok := s.LookupObjectByName("User")
	require.True(t, ok)
	return id
}

func TestSolveMutationOrdering(t *testing.T) {
	s := mustBuild(t)
	op := bindOp(t, s, `mutation { a: setX(v: 1) b: setY(v: 2) c: setX(v: 3) }`)

	_, root, errs := solver.Solve(s, op)
	require.Empty(t, errs)

	// setX/setY live on different subgraphs, so they produce two root
	// partitions; the mutation order must still reflect declaration
	// order via MutationAfter chaining.
	require.Len(t, root.Children, 2)
	var usersPartition, reviewsPartition *solver.Partition
	for _, c := range root.Children {
		if c.Subgraph == subgraphByName(s, "USERS") {
			usersPartition = c
		} else {
			reviewsPartition = c
		}
	}
	require.NotNil(t, usersPartition)
	require.NotNil(t, reviewsPartition)
	assert.Nil(t, usersPartition.MutationAfter)
	assert.Same(t, usersPartition, reviewsPartition.MutationAfter)
}
