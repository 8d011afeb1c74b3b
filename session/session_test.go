package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/core/errs"
)

// fakeChannel is an in-memory Channel double so tests never touch a
// real socket.
type fakeChannel struct {
	connected  bool
	connectErr error
	outbox     [][]byte
	inbox      [][]byte
}

func (f *fakeChannel) Connect(timeout time.Duration) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	if f.connected {
		return errs.ErrIPC
	}
	f.connected = true
	return nil
}

func (f *fakeChannel) Disconnect() error {
	if !f.connected {
		return errs.ErrIPC
	}
	f.connected = false
	return nil
}

func (f *fakeChannel) Send(frame []byte) error {
	f.outbox = append(f.outbox, frame)
	return nil
}

func (f *fakeChannel) Receive(timeout time.Duration) ([]byte, bool, error) {
	if len(f.inbox) == 0 {
		return nil, false, nil
	}
	frame := f.inbox[0]
	f.inbox = f.inbox[1:]
	return frame, true, nil
}

func TestNewSessionStartsDisconnected(t *testing.T) {
	s := New(KindClient)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, KindClient, s.Kind())
	assert.NotNil(t, s.Registry())
}

func TestSetDefaultTimeoutRejectsNonPositive(t *testing.T) {
	s := New(KindClient)
	require.Error(t, s.SetDefaultTimeout(0))
	require.Error(t, s.SetDefaultTimeout(-time.Second))
	require.NoError(t, s.SetDefaultTimeout(2*time.Second))
	assert.Equal(t, 2*time.Second, s.DefaultTimeout())
}

func TestConnectAndDisconnect(t *testing.T) {
	s := New(KindClient)
	fc := &fakeChannel{}
	require.NoError(t, s.SetChannel(fc))

	require.NoError(t, s.Connect())
	assert.Equal(t, StateConnected, s.State())

	err := s.Connect()
	require.ErrorIs(t, err, errs.ErrIPC)

	require.NoError(t, s.Disconnect())
	assert.Equal(t, StateDisconnected, s.State())
}

func TestConnectPropagatesChannelErrorClassification(t *testing.T) {
	// A channel that classifies its own failure keeps that
	// classification; an unclassified error is wrapped as ErrIPC, never
	// misreported as Timeout.
	s := New(KindClient)
	fc := &fakeChannel{connectErr: errs.ErrTimeout}
	require.NoError(t, s.SetChannel(fc))
	err := s.Connect()
	require.ErrorIs(t, err, errs.ErrTimeout)
	assert.Equal(t, StateDisconnected, s.State())

	s = New(KindClient)
	fc = &fakeChannel{connectErr: errors.New("dial udp: address in use")}
	require.NoError(t, s.SetChannel(fc))
	err = s.Connect()
	require.ErrorIs(t, err, errs.ErrIPC)
	require.NotErrorIs(t, err, errs.ErrTimeout)
}

func TestDisconnectWithoutConnectFails(t *testing.T) {
	s := New(KindClient)
	err := s.Disconnect()
	require.ErrorIs(t, err, errs.ErrSessionNotConnected)
}

func TestSetChannelRejectedWhileConnected(t *testing.T) {
	s := New(KindClient)
	fc := &fakeChannel{}
	require.NoError(t, s.SetChannel(fc))
	require.NoError(t, s.Connect())

	err := s.SetChannel(&fakeChannel{})
	require.Error(t, err)
}

func TestProcessQueuesNotificationsWithoutDispatching(t *testing.T) {
	s := New(KindClient)
	fc := &fakeChannel{inbox: [][]byte{[]byte("frame-1"), []byte("frame-2")}}
	require.NoError(t, s.SetChannel(fc))
	require.NoError(t, s.Connect())

	require.NoError(t, s.Process(10*time.Millisecond))
	assert.Equal(t, 2, s.PendingNotifications())
}

func TestProcessRequiresConnection(t *testing.T) {
	s := New(KindClient)
	err := s.Process(time.Millisecond)
	require.ErrorIs(t, err, errs.ErrSessionNotConnected)
}

func TestDispatchCallbacksDrainsFIFOAndSetsInCallback(t *testing.T) {
	s := New(KindClient)
	s.QueueNotification(Notification{Tree: []byte("first")})
	s.QueueNotification(Notification{Tree: []byte("second")})

	var order []string
	var sawInCallback bool
	s.DispatchCallbacks(func(n Notification) {
		order = append(order, string(n.Tree))
		sawInCallback = s.InCallback()
	})

	assert.Equal(t, []string{"first", "second"}, order)
	assert.True(t, sawInCallback)
	assert.False(t, s.InCallback())
	assert.Equal(t, 0, s.PendingNotifications())
}

func TestQueueNotificationTracksClientID(t *testing.T) {
	s := New(KindServer)
	s.QueueNotification(Notification{ClientID: "client-a", Tree: []byte("x")})

	var seen string
	s.DispatchCallbacks(func(n Notification) { seen = n.ClientID })
	assert.Equal(t, "client-a", seen)
}
