package op

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/subscribe"
)

func TestSubscribeOperationAddChangeInstallsOnSuccess(t *testing.T) {
	s, fc := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")

	fc.queueResponse(t, Envelope{
		Type: MessageResponse,
		Objects: &path.Tree{Objects: []path.ObjectNode{{ID: 3, Instances: []path.ObjectInstanceNode{{ID: 0, Resources: []path.ResourceNode{{
			ID:     1,
			Result: successResult(),
		}}}}}}},
	})

	var fired int
	op := NewSubscribe(s)
	require.NoError(t, op.AddChange(p, func(path.Path, *subscribe.ChangeSet) { fired++ }))
	require.NoError(t, op.Perform(time.Second))

	assert.Len(t, s.Dispatcher().At(p), 1)
	require.NoError(t, op.Free())
}

func TestSubscribeOperationRejectsDuplicatePath(t *testing.T) {
	s, _ := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")

	op := NewSubscribe(s)
	require.NoError(t, op.AddChange(p, func(path.Path, *subscribe.ChangeSet) {}))
	err := op.AddExecute(p, func(path.Path, subscribe.ExecuteArgs) {})
	require.ErrorIs(t, err, errs.ErrOperationInvalid)
}

func TestSubscribeOperationCancelChangeRemovesFromDispatcher(t *testing.T) {
	s, fc := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")
	sub := subscribe.NewChange(p, func(path.Path, *subscribe.ChangeSet) {})
	require.NoError(t, s.Dispatcher().Install(sub))

	fc.queueResponse(t, Envelope{
		Type: MessageResponse,
		Objects: &path.Tree{Objects: []path.ObjectNode{{ID: 3, Instances: []path.ObjectInstanceNode{{ID: 0, Resources: []path.ResourceNode{{
			ID:     1,
			Result: successResult(),
		}}}}}}},
	})

	op := NewSubscribe(s)
	require.NoError(t, op.AddCancelChange(sub))
	require.NoError(t, op.Perform(time.Second))

	assert.True(t, sub.Cancelled())
	assert.Empty(t, s.Dispatcher().At(p))
}

func TestSubscribeOperationDiscardUnlinksPending(t *testing.T) {
	s, _ := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")

	op := NewSubscribe(s)
	require.NoError(t, op.AddChange(p, func(path.Path, *subscribe.ChangeSet) {}))
	op.Discard(p)

	// A discarded path leaves nothing to send; adding it again must
	// succeed rather than colliding with a phantom duplicate.
	require.NoError(t, op.AddChange(p, func(path.Path, *subscribe.ChangeSet) {}))
}

func TestSubscribeOperationDiscardExcludesPathFromRequest(t *testing.T) {
	s, fc := newConnectedSession(t)
	discarded := mustPath(t, "/3/0/1")
	kept := mustPath(t, "/3/0/2")

	fc.queueResponse(t, Envelope{
		Type: MessageResponse,
		Objects: &path.Tree{Objects: []path.ObjectNode{{ID: 3, Instances: []path.ObjectInstanceNode{{ID: 0, Resources: []path.ResourceNode{{
			ID:     2,
			Result: successResult(),
		}}}}}}},
	})

	op := NewSubscribe(s)
	require.NoError(t, op.AddChange(discarded, func(path.Path, *subscribe.ChangeSet) {}))
	require.NoError(t, op.AddChange(kept, func(path.Path, *subscribe.ChangeSet) {}))
	op.Discard(discarded)
	require.NoError(t, op.Perform(time.Second))

	require.Len(t, fc.outbox, 1)
	sent, err := DecodeEnvelope(fc.outbox[0])
	require.NoError(t, err)
	require.NotNil(t, sent.Objects)
	leaves := sent.Objects.Leaves()
	var paths []path.Path
	for _, l := range leaves {
		paths = append(paths, l.Path)
	}
	assert.NotContains(t, paths, discarded)
	assert.Contains(t, paths, kept)
}

func TestSubscribeOperationFreeUnlinksStillPending(t *testing.T) {
	s, _ := newConnectedSession(t)
	p := mustPath(t, "/3/0/1")
	sub := subscribe.NewChange(p, func(path.Path, *subscribe.ChangeSet) {})

	op := NewSubscribe(s)
	require.NoError(t, op.AddCancelChange(sub))
	assert.Equal(t, 1, sub.OperationRefs())

	require.NoError(t, op.Free())
	assert.Equal(t, 0, sub.OperationRefs())
}

func TestSubscribeOperationFreeIsNilSafe(t *testing.T) {
	var op *SubscribeOperation
	require.NoError(t, op.Free())
}
