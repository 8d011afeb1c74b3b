package op

import (
	"testing"
	"time"

	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
)

// fakeChannel is an in-memory session.Channel double, mirroring
// session_test.go's fakeChannel so op tests never touch a real socket.
type fakeChannel struct {
	connected bool
	outbox    [][]byte
	inbox     [][]byte
}

func (f *fakeChannel) Connect(time.Duration) error {
	f.connected = true
	return nil
}

func (f *fakeChannel) Disconnect() error {
	f.connected = false
	return nil
}

func (f *fakeChannel) Send(frame []byte) error {
	f.outbox = append(f.outbox, frame)
	return nil
}

func (f *fakeChannel) Receive(time.Duration) ([]byte, bool, error) {
	if len(f.inbox) == 0 {
		return nil, false, nil
	}
	frame := f.inbox[0]
	f.inbox = f.inbox[1:]
	return frame, true, nil
}

// queueResponse encodes e and appends it to fc's inbox, for a test to
// pre-arm the reply a subsequent Perform's round trip will receive.
func (f *fakeChannel) queueResponse(t *testing.T, e Envelope) {
	t.Helper()
	frame, err := EncodeEnvelope(e)
	if err != nil {
		t.Fatalf("encoding queued response: %v", err)
	}
	f.inbox = append(f.inbox, frame)
}

// newConnectedSession returns a client session wired to a fresh
// fakeChannel and already connected, for use by every op test.
func newConnectedSession(t *testing.T) (*session.Session, *fakeChannel) {
	t.Helper()
	s := session.New(session.KindClient)
	fc := &fakeChannel{}
	if err := s.SetChannel(fc); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s, fc
}

// successResult is a convenience Success path.Result pointer.
func successResult() *path.Result {
	return &path.Result{Error: path.ResultSuccess}
}

// errorResult builds a non-Success path.Result of the given kind.
func errorResult(kind path.ResultError) *path.Result {
	return &path.Result{Error: kind}
}

func mustPath(t *testing.T, s string) path.Path {
	t.Helper()
	p, err := path.Parse(s)
	if err != nil {
		t.Fatalf("path.Parse(%q): %v", s, err)
	}
	return p
}

// sessionForDisconnectedTest returns a session that has never been
// connected, for exercising the ErrSessionNotConnected precondition.
func sessionForDisconnectedTest() *session.Session {
	return session.New(session.KindClient)
}

// defineTestResource registers object 3/resource 1 as a read-write
// integer, the shape most data-operation tests exercise against.
func defineTestResource(t *testing.T, reg *model.DefinitionRegistry) {
	t.Helper()
	if err := reg.DefineObject(3, "Device", 0, 1); err != nil {
		t.Fatalf("DefineObject: %v", err)
	}
	if err := reg.DefineResource(3, 1, "Manufacturer", model.KindInteger, 0, 1, model.AccessReadWrite); err != nil {
		t.Fatalf("DefineResource: %v", err)
	}
}
