package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/core/model"
)

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		kind  model.Kind
		value model.Value
	}{
		{"string", model.KindString, model.StringValue("hello")},
		{"integer", model.KindInteger, model.IntValue(-42)},
		{"float", model.KindFloat, model.FloatValue(3.25)},
		{"boolean true", model.KindBoolean, model.BoolValue(true)},
		{"boolean false", model.KindBoolean, model.BoolValue(false)},
		{"opaque", model.KindOpaque, model.OpaqueValue{Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}},
		{"time", model.KindTime, model.TimeValue(1700000000)},
		{"objectlink", model.KindObjectLink, model.ObjectLinkValue{ObjectID: 3, InstanceID: 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			text, err := EncodeValue(tc.value)
			require.NoError(t, err)

			decoded, err := DecodeValue(tc.kind, text)
			require.NoError(t, err)
			assert.Equal(t, tc.value, decoded)
		})
	}
}

func TestDecodeValueInvalidText(t *testing.T) {
	testCases := []struct {
		kind model.Kind
		text string
	}{
		{model.KindInteger, "not-a-number"},
		{model.KindFloat, "not-a-float"},
		{model.KindBoolean, "maybe"},
		{model.KindOpaque, "not base64!!"},
		{model.KindObjectLink, "no-colon"},
	}
	for _, tc := range testCases {
		_, err := DecodeValue(tc.kind, tc.text)
		require.Error(t, err)
	}
}

func TestBuildMergesSharedPrefixes(t *testing.T) {
	p1, _ := Parse("/3/0/0")
	p2, _ := Parse("/3/0/1")
	p3, _ := Parse("/3/1/0")

	v1 := StringPtr("Acme")
	v2 := StringPtr("Widget")
	v3 := StringPtr("Other")

	tree, err := Build([]LeafEntry{
		{Path: p1, Value: v1},
		{Path: p2, Value: v2},
		{Path: p3, Value: v3},
	})
	require.NoError(t, err)
	require.Len(t, tree.Objects, 1)
	require.Len(t, tree.Objects[0].Instances, 2)
	assert.Equal(t, 0, tree.Objects[0].Instances[0].ID)
	assert.Equal(t, 1, tree.Objects[0].Instances[1].ID)
	require.Len(t, tree.Objects[0].Instances[0].Resources, 2)
}

func TestLeavesRoundTripsBuild(t *testing.T) {
	p1, _ := Parse("/3/0/0")
	p2, _ := Parse("/3/0/1")

	tree, err := Build([]LeafEntry{
		{Path: p1, Value: StringPtr("Acme")},
		{Path: p2, Value: StringPtr("Model-X")},
	})
	require.NoError(t, err)

	leaves := tree.Leaves()
	require.Len(t, leaves, 2)
	assert.Equal(t, "/3/0/0", leaves[0].Path.Format())
	assert.Equal(t, "Acme", *leaves[0].Value)
	assert.Equal(t, "/3/0/1", leaves[1].Path.Format())
	assert.Equal(t, "Model-X", *leaves[1].Value)
}

func TestLeavesPreservesObjectLevelResult(t *testing.T) {
	p, _ := Parse("/9")
	tree, err := Build([]LeafEntry{
		{Path: p, Result: &Result{Error: ResultPathNotFound}},
	})
	require.NoError(t, err)

	leaves := tree.Leaves()
	require.Len(t, leaves, 1)
	require.NotNil(t, leaves[0].Result)
	assert.Equal(t, ResultPathNotFound, leaves[0].Result.Error)
}

func TestEncodeDecodeTreeXML(t *testing.T) {
	p, _ := Parse("/3/0/0")
	tree, err := Build([]LeafEntry{{Path: p, Value: StringPtr("Acme")}})
	require.NoError(t, err)

	data, err := EncodeTree(tree)
	require.NoError(t, err)

	decoded, err := DecodeTree(data)
	require.NoError(t, err)

	leaves := decoded.Leaves()
	require.Len(t, leaves, 1)
	assert.Equal(t, "/3/0/0", leaves[0].Path.Format())
	require.NotNil(t, leaves[0].Value)
	assert.Equal(t, "Acme", *leaves[0].Value)
}

func TestDecodeTreeToleratesUnknownTags(t *testing.T) {
	xmlDoc := []byte(`<Objects><Object><ID>3</ID><FutureTag>ignored</FutureTag><ObjectInstance><ID>0</ID><Resource><ID>0</ID><Value>Acme</Value></Resource></ObjectInstance></Object></Objects>`)

	tree, err := DecodeTree(xmlDoc)
	require.NoError(t, err)

	leaves := tree.Leaves()
	require.Len(t, leaves, 1)
	assert.Equal(t, "/3/0/0", leaves[0].Path.Format())
}
