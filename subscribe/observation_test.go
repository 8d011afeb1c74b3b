package subscribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/core/path"
)

func TestObservationIndexKeyedByClient(t *testing.T) {
	reg := newTestRegistry(t)
	idx := NewObservationIndex()
	resourcePath := mustParse(t, "/3/0/0")

	var deliveredFor string
	sub := NewChange(resourcePath, func(p path.Path, cs *ChangeSet) {
		deliveredFor = cs.ClientID()
	})
	require.NoError(t, idx.Install("client-a", sub))

	csA := NewChangeSet(reg, "client-a")
	value := "Acme"
	csA.Record(resourcePath, ChangeModify, &value)
	idx.Dispatch(csA)
	assert.Equal(t, "client-a", deliveredFor)

	deliveredFor = ""
	csB := NewChangeSet(reg, "client-b")
	csB.Record(resourcePath, ChangeModify, &value)
	idx.Dispatch(csB)
	assert.Empty(t, deliveredFor)
}

func TestObservationIndexRemoveClient(t *testing.T) {
	reg := newTestRegistry(t)
	idx := NewObservationIndex()
	resourcePath := mustParse(t, "/3/0/0")

	called := false
	sub := NewChange(resourcePath, func(path.Path, *ChangeSet) { called = true })
	require.NoError(t, idx.Install("client-a", sub))
	idx.RemoveClient("client-a")

	cs := NewChangeSet(reg, "client-a")
	value := "Acme"
	cs.Record(resourcePath, ChangeModify, &value)
	idx.Dispatch(cs)

	assert.False(t, called)
}

func TestObservationIndexDispatchExecute(t *testing.T) {
	idx := NewObservationIndex()
	execPath := mustParse(t, "/3/0/4")

	var receivedSize int
	sub := NewExecute(execPath, func(path.Path, ExecuteArgs) {})
	sub.executeCallback = func(p path.Path, args ExecuteArgs) { receivedSize = args.Size() }
	require.NoError(t, idx.Install("client-a", sub))

	idx.DispatchExecute("client-a", execPath, ExecuteArgs{Data: []byte("abc")})
	assert.Equal(t, 3, receivedSize)
}
