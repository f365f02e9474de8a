package response_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thundergraph/gateway/response"
)

func TestTreeSerializeOrdersByQueryPosition(t *testing.T) {
	tree := response.New()
	b := tree.NewPart()
	obj := response.Object{Fields: []response.Field{
		{ResponseKey: "b", QueryPosition: 1, Value: response.Value{Kind: response.ValueInt, Int: 2}},
		{ResponseKey: "a", QueryPosition: 0, Value: response.Value{Kind: response.ValueString, Str: "hi"}},
		{ResponseKey: "hidden", QueryPosition: response.ExtraPosition, Extra: true, Value: response.Value{Kind: response.ValueBool, Bool: true}},
	}}
	root := b.PushObject(obj)
	tree.RootObject = root
	require.NoError(t, tree.Insert(b))

	out, err := tree.Serialize()
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"hi","b":2}`, string(out))
}

func TestTreeSerializeNestedListAndObject(t *testing.T) {
	tree := response.New()
	b := tree.NewPart()

	childID := b.PushObject(response.Object{Fields: []response.Field{
		{ResponseKey: "stars", QueryPosition: 0, Value: response.Value{Kind: response.ValueInt, Int: 5}},
	}})
	listID := b.PushList([]response.Value{{Kind: response.ValueObject, Object: childID}})
	root := b.PushObject(response.Object{Fields: []response.Field{
		{ResponseKey: "reviews", QueryPosition: 0, Value: response.Value{Kind: response.ValueList, List: listID}},
	}})
	tree.RootObject = root
	require.NoError(t, tree.Insert(b))

	out, err := tree.Serialize()
	require.NoError(t, err)
	require.JSONEq(t, `{"reviews":[{"stars":5}]}`, string(out))
}

func TestApplyBubbleAbsorbsAtNearestNullableAncestor(t *testing.T) {
	tree := response.New()
	b := tree.NewPart()

	userID := b.PushObject(response.Object{Fields: []response.Field{
		{ResponseKey: "name", QueryPosition: 0, NonNull: true, Value: response.Value{Kind: response.ValueString, Str: "whatever"}},
	}})
	root := b.PushObject(response.Object{Fields: []response.Field{
		{ResponseKey: "user", QueryPosition: 0, Value: response.Value{Kind: response.ValueObject, Object: userID}},
	}})
	tree.RootObject = root
	require.NoError(t, tree.Insert(b))

	builders := map[response.PartID]*response.Builder{b.ID(): b}
	absorbed := response.ApplyBubble(builders, []response.Ancestor{
		{Kind: response.AncestorObject, Object: root, ResponseKey: "user", NonNull: false},
	})
	require.True(t, absorbed)

	out, err := tree.Serialize()
	require.NoError(t, err)
	require.JSONEq(t, `{"user":null}`, string(out))
}

func TestMergeFieldsStitchesEntityPartitionOntoExistingObject(t *testing.T) {
	tree := response.New()
	b := tree.NewPart()
	userID := b.PushObject(response.Object{Fields: []response.Field{
		{ResponseKey: "name", QueryPosition: 0, Value: response.Value{Kind: response.ValueString, Str: "ada"}},
	}})
	tree.RootObject = userID
	require.NoError(t, tree.Insert(b))

	require.NoError(t, tree.MergeFields(userID, []response.Field{
		{ResponseKey: "reviews", QueryPosition: 1, Value: response.Value{Kind: response.ValueInt, Int: 3}},
	}))

	out, err := tree.Serialize()
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"ada","reviews":3}`, string(out))
}
