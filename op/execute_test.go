package op

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/path"
)

func TestExecuteOperationRequiresResourcePath(t *testing.T) {
	s, _ := newConnectedSession(t)
	op := NewExecute(s)
	err := op.AddExecute(mustPath(t, "/3/0"))
	require.ErrorIs(t, err, errs.ErrAddInvalid)
}

func TestExecuteOperationEncodesArgument(t *testing.T) {
	s, fc := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")

	fc.queueResponse(t, Envelope{
		Type: MessageResponse,
		Objects: &path.Tree{Objects: []path.ObjectNode{{ID: 3, Instances: []path.ObjectInstanceNode{{ID: 0, Resources: []path.ResourceNode{{
			ID:     1,
			Result: successResult(),
		}}}}}}},
	})

	op := NewExecute(s)
	require.NoError(t, op.AddExecuteWithArgument(p, []byte("reboot")))
	require.NoError(t, op.Perform(time.Second))

	require.Len(t, fc.outbox, 1)
	req, err := DecodeEnvelope(fc.outbox[0])
	require.NoError(t, err)
	require.NotNil(t, req.Objects)
	require.Len(t, req.Objects.Objects, 1)
	res := req.Objects.Objects[0].Instances[0].Resources[0]
	require.NotNil(t, res.Value)
	assert.NotEmpty(t, *res.Value)
}

func TestExecuteOperationNoArgument(t *testing.T) {
	s, fc := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")

	fc.queueResponse(t, Envelope{
		Type: MessageResponse,
		Objects: &path.Tree{Objects: []path.ObjectNode{{ID: 3, Instances: []path.ObjectInstanceNode{{ID: 0, Resources: []path.ResourceNode{{
			ID:     1,
			Result: successResult(),
		}}}}}}},
	})

	op := NewExecute(s)
	require.NoError(t, op.AddExecute(p))
	require.NoError(t, op.Perform(time.Second))
}

func TestExecuteOperationFreeIsNilSafe(t *testing.T) {
	var op *ExecuteOperation
	require.NoError(t, op.Free())
}
