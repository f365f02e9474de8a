package operation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/schema"
)

const testSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION

enum join__Graph {
  ACCOUNTS
  PRODUCTS
}

interface Node {
  id: ID!
}

type Query {
  me: User @join__field(graph: ACCOUNTS)
  node(id: ID!): Node @join__field(graph: ACCOUNTS)
  topProducts(first: Int = 5): [Product!]! @join__field(graph: PRODUCTS)
}

type User implements Node @join__type(graph: ACCOUNTS, key: "id") {
  id: ID!
  name: String!
}

type Product implements Node @join__type(graph: PRODUCTS, key: "upc") {
  id: ID!
  upc: String!
  name: String!
  price: Int
}
`

func mustBuild(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Build(testSDL)
	require.NoError(t, err)
	return s
}

func TestBindSimpleQuery(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`{ me { id name } }`)
	require.NoError(t, err)

	op, errs := operation.Bind(s, doc, "", nil)
	require.Empty(t, errs)
	require.NotNil(t, op)

	root := op.SelectionSet(op.Root)
	require.Len(t, root.Fields, 1)

	meField := op.Field(root.Fields[0])
	assert.Equal(t, operation.KindQuery, meField.Kind)
	assert.True(t, meField.HasSelectionSet)
	assert.Equal(t, "me", op.ResponseKeys.Name(meField.ResponseKey))

	sub := op.SelectionSet(meField.SelectionSet)
	require.Len(t, sub.Fields, 2)
}

func TestBindMergesSameAlias(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`{ me { id } me { name } }`)
	require.NoError(t, err)

	op, errs := operation.Bind(s, doc, "", nil)
	require.Empty(t, errs)

	root := op.SelectionSet(op.Root)
	require.Len(t, root.Fields, 1)

	meField := op.Field(root.Fields[0])
	sub := op.SelectionSet(meField.SelectionSet)
	assert.Len(t, sub.Fields, 2)
}

func TestBindConflictingMergeFails(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`{ me { x: id x: name } }`)
	require.NoError(t, err)

	_, errs := operation.Bind(s, doc, "", nil)
	require.NotEmpty(t, errs)
	assert.Equal(t, operation.MergedFieldConflict, errs[0].Kind)
}

func TestBindUnknownField(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`{ me { bogus } }`)
	require.NoError(t, err)

	_, errs := operation.Bind(s, doc, "", nil)
	require.Len(t, errs, 1)
	assert.Equal(t, operation.UnknownField, errs[0].Kind)
}

func TestBindMissingRequiredArgument(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`{ node { id } }`)
	require.NoError(t, err)

	_, errs := operation.Bind(s, doc, "", nil)
	require.Len(t, errs, 1)
	assert.Equal(t, operation.ArgumentCoercion, errs[0].Kind)
}

func TestBindInterfaceExpandsPossibleTypes(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`{ node(id: "1") { id ... on User { name } ... on Product { upc } } }`)
	require.NoError(t, err)

	op, errs := operation.Bind(s, doc, "", nil)
	require.Empty(t, errs)

	root := op.SelectionSet(op.Root)
	nodeField := op.Field(root.Fields[0])
	sub := op.SelectionSet(nodeField.SelectionSet)

	// Product, User each get their own "id" plus type-specific field.
	assert.Len(t, sub.Fields, 4)
}

func TestBindDefaultArgumentMaterialized(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`{ topProducts { upc } }`)
	require.NoError(t, err)

	op, errs := operation.Bind(s, doc, "", nil)
	require.Empty(t, errs)

	root := op.SelectionSet(op.Root)
	field := op.Field(root.Fields[0])
	require.Equal(t, 1, field.Args.Len())
}

func TestBindVariableReference(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`query($id: ID!) { node(id: $id) { id } }`)
	require.NoError(t, err)

	op, errs := operation.Bind(s, doc, "", map[string]interface{}{"id": "42"})
	require.Empty(t, errs)
	require.Len(t, op.Variables, 1)
	assert.Equal(t, "id", op.Variables[0].Name)
}

func TestBindUndefinedVariableFails(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`{ node(id: $missing) { id } }`)
	require.NoError(t, err)

	_, errs := operation.Bind(s, doc, "", nil)
	require.NotEmpty(t, errs)
	assert.Equal(t, operation.ArgumentCoercion, errs[0].Kind)
}

func TestBindSkipDirectiveLiteralPrunes(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`{ me { id name @skip(if: true) } }`)
	require.NoError(t, err)

	op, errs := operation.Bind(s, doc, "", nil)
	require.Empty(t, errs)

	root := op.SelectionSet(op.Root)
	sub := op.SelectionSet(op.Field(root.Fields[0]).SelectionSet)
	assert.Len(t, sub.Fields, 1)
}

func TestBindSkipDirectiveVariableRecordsModifier(t *testing.T) {
	s := mustBuild(t)
	doc, err := operation.ParseDocument(`query($drop: Boolean!) { me { id name @skip(if: $drop) } }`)
	require.NoError(t, err)

	op, errs := operation.Bind(s, doc, "", map[string]interface{}{"drop": true})
	require.Empty(t, errs)
	assert.Len(t, op.QueryModifiers, 1)
}
