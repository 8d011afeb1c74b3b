package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUDPChannelValidatesAddress(t *testing.T) {
	_, err := newUDPChannel("127.0.0.1:5683")
	require.NoError(t, err)

	_, err = newUDPChannel("not a valid address")
	require.Error(t, err)
}

func TestUDPChannelConnectDisconnectLifecycle(t *testing.T) {
	ch, err := newUDPChannel("127.0.0.1:5683")
	require.NoError(t, err)

	require.NoError(t, ch.Connect(time.Second))
	err = ch.Connect(time.Second)
	require.Error(t, err)

	require.NoError(t, ch.Disconnect())
	err = ch.Disconnect()
	require.Error(t, err)
}

func TestUDPChannelSendReceiveRequireConnection(t *testing.T) {
	ch, err := newUDPChannel("127.0.0.1:5683")
	require.NoError(t, err)

	err = ch.Send([]byte("hello"))
	require.Error(t, err)

	_, _, err = ch.Receive(10 * time.Millisecond)
	require.Error(t, err)
}

func TestUDPChannelReceiveTimesOutWithoutPeer(t *testing.T) {
	ch, err := newUDPChannel("127.0.0.1:5683")
	require.NoError(t, err)
	require.NoError(t, ch.Connect(time.Second))
	defer ch.Disconnect()

	_, ok, err := ch.Receive(20 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}
