package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thundergraph/gateway/schema"
)

const diffBaseSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION

enum join__Graph {
  ACCOUNTS
}

type Query {
  me: User @join__field(graph: ACCOUNTS)
}

type User @join__type(graph: ACCOUNTS, key: "id") {
  id: ID!
  name: String! @join__field(graph: ACCOUNTS)
  age: Int @join__field(graph: ACCOUNTS)
}
`

func TestDiffNoChanges(t *testing.T) {
	s, err := schema.Build(diffBaseSDL)
	require.NoError(t, err)

	d, err := schema.Diff(s, s)
	require.NoError(t, err)
	assert.True(t, d.Safe())
	assert.Empty(t, d.RemovedTypes)
	assert.Empty(t, d.RemovedFields)
	assert.Empty(t, d.ChangedFieldTypes)
}

func TestDiffRemovedField(t *testing.T) {
	const updatedSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION

enum join__Graph {
  ACCOUNTS
}

type Query {
  me: User @join__field(graph: ACCOUNTS)
}

type User @join__type(graph: ACCOUNTS, key: "id") {
  id: ID!
  name: String! @join__field(graph: ACCOUNTS)
}
`
	old, err := schema.Build(diffBaseSDL)
	require.NoError(t, err)
	updated, err := schema.Build(updatedSDL)
	require.NoError(t, err)

	d, err := schema.Diff(old, updated)
	require.NoError(t, err)
	assert.False(t, d.Safe())
	assert.Equal(t, []string{"User.age"}, d.RemovedFields)
	assert.Empty(t, d.RemovedTypes)
	assert.Empty(t, d.ChangedFieldTypes)
}

func TestDiffRemovedType(t *testing.T) {
	const updatedSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION

enum join__Graph {
  ACCOUNTS
}

type Query {
  ping: String @join__field(graph: ACCOUNTS)
}
`
	old, err := schema.Build(diffBaseSDL)
	require.NoError(t, err)
	updated, err := schema.Build(updatedSDL)
	require.NoError(t, err)

	d, err := schema.Diff(old, updated)
	require.NoError(t, err)
	assert.False(t, d.Safe())
	assert.Equal(t, []string{"User"}, d.RemovedTypes)
}

func TestDiffChangedFieldType(t *testing.T) {
	const updatedSDL = `
directive @join__type(graph: join__Graph!, key: String, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean) on FIELD_DEFINITION

enum join__Graph {
  ACCOUNTS
}

type Query {
  me: User @join__field(graph: ACCOUNTS)
}

type User @join__type(graph: ACCOUNTS, key: "id") {
  id: ID!
  name: String! @join__field(graph: ACCOUNTS)
  age: String @join__field(graph: ACCOUNTS)
}
`
	old, err := schema.Build(diffBaseSDL)
	require.NoError(t, err)
	updated, err := schema.Build(updatedSDL)
	require.NoError(t, err)

	d, err := schema.Diff(old, updated)
	require.NoError(t, err)
	assert.False(t, d.Safe())
	assert.Equal(t, []string{"User.age"}, d.ChangedFieldTypes)
	assert.Empty(t, d.RemovedFields)
}

func TestDiffNilSchemas(t *testing.T) {
	s, err := schema.Build(diffBaseSDL)
	require.NoError(t, err)

	d, err := schema.Diff(nil, s)
	require.NoError(t, err)
	assert.True(t, d.Safe())

	d, err = schema.Diff(s, nil)
	require.NoError(t, err)
	assert.True(t, d.Safe())
}
