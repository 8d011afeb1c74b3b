package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSONManifest = `[
  {
    "id": 3,
    "name": "Device",
    "minInstance": 1,
    "maxInstance": 1,
    "resources": [
      {"id": 0, "name": "Manufacturer", "kind": "string", "access": "readonly"},
      {"id": 4, "name": "Reboot", "kind": "none", "access": "execute"}
    ]
  }
]`

const invalidShapeJSONManifest = `[
  {"id": 3, "resources": []}
]`

func TestLoadDefinitionManifestJSON(t *testing.T) {
	registry := NewDefinitionRegistry()
	err := LoadDefinitionManifest(strings.NewReader(validJSONManifest), registry)
	require.NoError(t, err)

	def, found := registry.GetObjectDefinition(3)
	require.True(t, found)
	assert.Equal(t, "Device", def.Name)

	res, found := def.Resource(0)
	require.True(t, found)
	assert.Equal(t, KindString, res.Kind)
	assert.Equal(t, AccessReadOnly, res.Access)

	exec, found := def.Resource(4)
	require.True(t, found)
	assert.Equal(t, KindNone, exec.Kind)
	assert.Equal(t, AccessExecute, exec.Access)
}

func TestLoadDefinitionManifestJSONRejectsSchemaViolation(t *testing.T) {
	registry := NewDefinitionRegistry()
	err := LoadDefinitionManifest(strings.NewReader(invalidShapeJSONManifest), registry)
	require.Error(t, err)
}

func TestLoadDefinitionManifestJSONNotJSON(t *testing.T) {
	registry := NewDefinitionRegistry()
	err := LoadDefinitionManifest(strings.NewReader("not json at all"), registry)
	require.Error(t, err)
}

const yamlManifest = `
- id: 1
  name: Security
  minInstance: 0
  maxInstance: 65535
  resources:
    - id: 0
      name: ServerURI
      kind: string
      access: readwrite
    - id: 2
      name: BootstrapServer
      kind: boolean
      access: readwrite
`

func TestLoadDefinitionManifestYAML(t *testing.T) {
	registry := NewDefinitionRegistry()
	err := LoadDefinitionManifestYAML(strings.NewReader(yamlManifest), registry)
	require.NoError(t, err)

	def, found := registry.GetObjectDefinition(1)
	require.True(t, found)
	assert.Equal(t, "Security", def.Name)
	assert.Len(t, def.Resources(), 2)
}

func TestApplyManifestAggregatesIndependentFailures(t *testing.T) {
	objs := []ManifestObject{
		{ID: 3, Name: "Device", MaxInstance: 1, Resources: []ManifestResource{
			{ID: 0, Name: "Bad", Kind: "not-a-kind", Access: "readonly"},
			{ID: 1, Name: "AlsoBad", Kind: "string", Access: "not-an-access"},
		}},
		{ID: 70000, Name: "TooBig"},
	}
	registry := NewDefinitionRegistry()
	err := applyManifest(objs, registry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-kind")
}

func TestKindFromString(t *testing.T) {
	testCases := []struct {
		in   string
		want Kind
	}{
		{"string", KindString},
		{"Integer", KindInteger},
		{"FLOAT", KindFloat},
		{"objectlinkarray", KindObjectLinkArray},
	}
	for _, tc := range testCases {
		got, err := kindFromString(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := kindFromString("bogus")
	require.Error(t, err)
}

func TestAccessFromString(t *testing.T) {
	testCases := []struct {
		in   string
		want Access
	}{
		{"none", AccessNone},
		{"ReadOnly", AccessReadOnly},
		{"WRITEONLY", AccessWriteOnly},
		{"readwrite", AccessReadWrite},
		{"execute", AccessExecute},
	}
	for _, tc := range testCases {
		got, err := accessFromString(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := accessFromString("bogus")
	require.Error(t, err)
}
