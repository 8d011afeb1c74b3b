package op

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
)

func TestDiscoverOperationReturnsAttributes(t *testing.T) {
	s, fc := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")

	fc.queueResponse(t, Envelope{
		Type: MessageResponse,
		Objects: &path.Tree{Objects: []path.ObjectNode{{ID: 3, Instances: []path.ObjectInstanceNode{{ID: 0, Resources: []path.ResourceNode{{
			ID:     1,
			Result: successResult(),
			Attributes: []path.AttributeNode{
				{Name: "pmin", Value: "10"},
				{Name: "gt", Value: "3.5"},
			},
		}}}}}}},
	})

	op := NewDiscover(s)
	require.NoError(t, op.AddDiscover(p))
	require.NoError(t, op.Perform(time.Second))

	resp, err := op.GetResponse()
	require.NoError(t, err)
	attrs, err := resp.GetAttributes(p)
	require.NoError(t, err)
	assert.Equal(t, model.IntValue(10), attrs["pmin"])
	assert.Equal(t, model.FloatValue(3.5), attrs["gt"])
}

func TestDiscoverOperationFreeIsNilSafe(t *testing.T) {
	var op *DiscoverOperation
	require.NoError(t, op.Free())
}
