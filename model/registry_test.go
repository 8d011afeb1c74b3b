package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/core/errs"
)

type defineObjectCase struct {
	name        string
	id          int
	objName     string
	min, max    int
	expectError error
}

func TestDefineObject(t *testing.T) {
	testCases := []defineObjectCase{
		{name: "first define succeeds", id: 3, objName: "Device", min: 1, max: 1},
		{name: "empty name rejected", id: 4, objName: "", min: 0, max: 1, expectError: errs.ErrDefinitionInvalid},
		{name: "min greater than max rejected", id: 5, objName: "Bad", min: 2, max: 1, expectError: errs.ErrDefinitionInvalid},
		{name: "id out of range rejected", id: 70000, objName: "TooBig", min: 0, max: 1, expectError: errs.ErrDefinitionInvalid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewDefinitionRegistry()
			err := reg.DefineObject(tc.id, tc.objName, tc.min, tc.max)
			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
				require.False(t, reg.IsObjectDefined(tc.id))
				return
			}
			require.NoError(t, err)
			require.True(t, reg.IsObjectDefined(tc.id))
		})
	}
}

func TestDefineObjectAlreadyDefinedDoesNotMutate(t *testing.T) {
	reg := NewDefinitionRegistry()
	require.NoError(t, reg.DefineObject(3, "Device", 1, 1))

	err := reg.DefineObject(3, "Impostor", 0, 5)
	require.ErrorIs(t, err, errs.ErrAlreadyDefined)

	def, found := reg.GetObjectDefinition(3)
	require.True(t, found)
	require.Equal(t, "Device", def.Name)
	require.Equal(t, 1, def.MinInstance)
}

func TestDefineResourceRequiresObject(t *testing.T) {
	reg := NewDefinitionRegistry()
	err := reg.DefineResource(3, 0, "Manufacturer", KindString, 1, 1, AccessReadOnly)
	require.ErrorIs(t, err, errs.ErrNotDefined)
}

func TestDefineResourceExecuteAccessRequiresNoneKind(t *testing.T) {
	reg := NewDefinitionRegistry()
	require.NoError(t, reg.DefineObject(3, "Device", 1, 1))

	err := reg.DefineResource(3, 4, "Reboot", KindString, 1, 1, AccessExecute)
	require.ErrorIs(t, err, errs.ErrDefinitionInvalid)

	err = reg.DefineResource(3, 4, "Reboot", KindNone, 1, 1, AccessExecute)
	require.NoError(t, err)
}

func TestDefineResourceAlreadyDefined(t *testing.T) {
	reg := NewDefinitionRegistry()
	require.NoError(t, reg.DefineObject(3, "Device", 1, 1))
	require.NoError(t, reg.DefineResource(3, 0, "Manufacturer", KindString, 1, 1, AccessReadOnly))

	err := reg.DefineResource(3, 0, "Manufacturer2", KindString, 1, 1, AccessReadOnly)
	require.ErrorIs(t, err, errs.ErrAlreadyDefined)

	def, _ := reg.GetObjectDefinition(3)
	res, found := def.Resource(0)
	require.True(t, found)
	require.Equal(t, "Manufacturer", res.Name)
}

func TestIterateDefinitionsIsOrderedAndStable(t *testing.T) {
	reg := NewDefinitionRegistry()
	require.NoError(t, reg.DefineObject(9, "Last", 0, 1))
	require.NoError(t, reg.DefineObject(3, "Device", 1, 1))
	require.NoError(t, reg.DefineObject(1, "Security", 0, 65535))

	first := reg.IterateDefinitions()
	second := reg.IterateDefinitions()

	require.Equal(t, []int{1, 3, 9}, []int{first[0].ObjectID, first[1].ObjectID, first[2].ObjectID})
	require.Equal(t, first, second)
}

func TestIsObjectDefinedUnknown(t *testing.T) {
	reg := NewDefinitionRegistry()
	require.False(t, reg.IsObjectDefined(99))
	_, found := reg.GetObjectDefinition(99)
	require.False(t, found)
}

func TestErrorsIsStillWorksThroughWrapping(t *testing.T) {
	reg := NewDefinitionRegistry()
	require.NoError(t, reg.DefineObject(3, "Device", 1, 1))
	err := reg.DefineObject(3, "Device", 1, 1)
	require.True(t, errors.Is(err, errs.ErrAlreadyDefined))
}
