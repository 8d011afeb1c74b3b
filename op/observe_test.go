package op

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/subscribe"
)

func TestObserveOperationAddObserveInstallsForClient(t *testing.T) {
	s, fc := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")

	fc.queueResponse(t, Envelope{
		Type: MessageResponse,
		Objects: &path.Tree{Objects: []path.ObjectNode{{ID: 3, Instances: []path.ObjectInstanceNode{{ID: 0, Resources: []path.ResourceNode{{
			ID:     1,
			Result: successResult(),
		}}}}}}},
	})

	var fired bool
	op := NewObserve(s, "client-a")
	require.NoError(t, op.AddObserve(p, func(path.Path, *subscribe.ChangeSet) { fired = true }))
	require.NoError(t, op.Perform(time.Second))

	cs := subscribe.NewChangeSet(s.Registry(), "client-a")
	value := "1"
	cs.Record(p, subscribe.ChangeModify, &value)
	s.Observations().Dispatch(cs)

	assert.True(t, fired)
	require.NoError(t, op.Free())
}

func TestObserveOperationCancelRemovesObservation(t *testing.T) {
	s, fc := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")
	sub := subscribe.NewChange(p, func(path.Path, *subscribe.ChangeSet) {})
	require.NoError(t, s.Observations().Install("client-a", sub))

	fc.queueResponse(t, Envelope{
		Type: MessageResponse,
		Objects: &path.Tree{Objects: []path.ObjectNode{{ID: 3, Instances: []path.ObjectInstanceNode{{ID: 0, Resources: []path.ResourceNode{{
			ID:     1,
			Result: successResult(),
		}}}}}}},
	})

	op := NewObserve(s, "client-a")
	require.NoError(t, op.AddCancelObserve(sub))
	require.NoError(t, op.Perform(time.Second))

	assert.True(t, sub.Cancelled())
}

func TestObserveOperationDiscard(t *testing.T) {
	s, _ := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")

	op := NewObserve(s, "client-a")
	require.NoError(t, op.AddObserve(p, func(path.Path, *subscribe.ChangeSet) {}))
	op.Discard(p)
	require.NoError(t, op.AddObserve(p, func(path.Path, *subscribe.ChangeSet) {}))
}

func TestObserveOperationFreeIsNilSafe(t *testing.T) {
	var op *ObserveOperation
	require.NoError(t, op.Free())
}
