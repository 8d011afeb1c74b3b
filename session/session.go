// Package session implements the Session & IPC Channel: the
// client/server session lifecycle, its default timeout and connection
// state, the link to a Definition Registry, and the notification
// queue drained by Process and drained-into-callbacks by
// DispatchCallbacks. Grounded on auth.AuthManager's
// lifecycle-plus-bookkeeping shape, adapted from auth-token bookkeeping
// to subscription-index/notification-queue bookkeeping — without
// AuthManager's mutex, since spec §5 makes a session single-threaded
// cooperative by contract rather than internally synchronized.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/subscribe"
)

// Kind tags whether a session plays the client or server role.
type Kind int

const (
	KindClient Kind = iota
	KindServer
)

func (k Kind) String() string {
	if k == KindServer {
		return "server"
	}
	return "client"
}

// State is a session's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

// Defaults for the client IPC channel when none is explicitly
// configured, per spec §6.
const (
	DefaultAddress = "127.0.0.1"
	DefaultPort    = 5683
)

const defaultTimeout = 5 * time.Second

// Notification is one parsed IPC notification message queued by
// Process and delivered by DispatchCallbacks.
type Notification struct {
	ClientID string
	Tree     []byte // raw wire-form IPC frame (the whole envelope), parsed lazily at dispatch time
}

// Session is the client or server side of one IPC conversation: its
// connection state, its definition registry, its subscription index,
// and its pending-notification queue.
type Session struct {
	kind     Kind
	logger   *slog.Logger
	registry *model.DefinitionRegistry

	address string
	channel Channel
	timeout time.Duration
	state   State

	dispatcher  *subscribe.Dispatcher       // client-side
	observation *subscribe.ObservationIndex // server-side
	clientEvent subscribe.ClientEventCallback

	notifications []Notification
	dispatching   bool // true while inside DispatchCallbacks
}

// New returns a disconnected session of the given kind, with an empty
// registry and default timeout.
func New(kind Kind) *Session {
	return &Session{
		kind:        kind,
		logger:      slog.Default(),
		registry:    model.NewDefinitionRegistry(),
		timeout:     defaultTimeout,
		state:       StateDisconnected,
		dispatcher:  subscribe.NewDispatcher(),
		observation: subscribe.NewObservationIndex(),
	}
}

// Kind reports whether this is a client or server session.
func (s *Session) Kind() Kind { return s.kind }

// SetLogger replaces the session's logger. A nil logger restores
// slog.Default().
func (s *Session) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	s.logger = l
}

// Logger returns the session's logger, for the operation engine's
// perform and dispatch paths.
func (s *Session) Logger() *slog.Logger { return s.logger }

// State reports the current connection state.
func (s *Session) State() State { return s.state }

// Registry returns the session's definition registry.
func (s *Session) Registry() *model.DefinitionRegistry { return s.registry }

// Dispatcher returns the client-side subscription index.
func (s *Session) Dispatcher() *subscribe.Dispatcher { return s.dispatcher }

// Observations returns the server-side observation index.
func (s *Session) Observations() *subscribe.ObservationIndex { return s.observation }

// SetClientEventCallback registers cb to receive client register/
// update/deregister events on a server session. Passing nil clears it.
func (s *Session) SetClientEventCallback(cb subscribe.ClientEventCallback) {
	s.clientEvent = cb
}

// ClientEventCallback returns the registered client-event callback, or
// nil.
func (s *Session) ClientEventCallback() subscribe.ClientEventCallback { return s.clientEvent }

// DefaultTimeout returns the session's configured default timeout.
func (s *Session) DefaultTimeout() time.Duration { return s.timeout }

// InCallback reports whether the caller is currently executing inside
// DispatchCallbacks — the operation engine consults this to reject a
// re-entrant Perform with OperationInvalid per spec §4.C.
func (s *Session) InCallback() bool { return s.dispatching }

// SetIPCUDP configures the channel's UDP endpoint. address must be
// "host:port"; it is validated but not dialed. Fails with ErrIPC if
// address is unresolvable, or if the session is already connected.
func (s *Session) SetIPCUDP(address string) error {
	if s.state == StateConnected {
		return fmt.Errorf("%w: cannot reconfigure IPC while connected", errs.ErrIPC)
	}
	ch, err := newUDPChannel(address)
	if err != nil {
		return err
	}
	s.address = address
	s.channel = ch
	return nil
}

// SetChannel installs an arbitrary Channel implementation, bypassing
// SetIPCUDP's address validation — used by tests to substitute an
// in-memory double.
func (s *Session) SetChannel(ch Channel) error {
	if s.state == StateConnected {
		return fmt.Errorf("%w: cannot reconfigure IPC while connected", errs.ErrIPC)
	}
	s.channel = ch
	return nil
}

// SetDefaultTimeout sets the timeout perform/process/connect/disconnect
// fall back to when not given an explicit one. Fails with
// ErrUnsupported if t is not strictly positive.
func (s *Session) SetDefaultTimeout(t time.Duration) error {
	if t <= 0 {
		return fmt.Errorf("%w: timeout must be positive", errs.ErrUnsupported)
	}
	s.timeout = t
	return nil
}

// Connect establishes the configured channel, dialing the default
// client endpoint if none was explicitly set. Fails with ErrIPC if
// already connected or the channel cannot be established, and with
// ErrTimeout if the channel reports the connect attempt exceeding the
// default timeout. Each channel implementation classifies its own
// failures: the stock UDP channel reports a dial that outlives the
// deadline (address re-resolution) as ErrTimeout and everything else
// as ErrIPC.
func (s *Session) Connect() error {
	if s.state == StateConnected {
		return fmt.Errorf("%w: already connected", errs.ErrIPC)
	}
	if s.channel == nil {
		ch, err := newUDPChannel(fmt.Sprintf("%s:%d", DefaultAddress, DefaultPort))
		if err != nil {
			return err
		}
		s.channel = ch
	}
	if err := s.channel.Connect(s.timeout); err != nil {
		if errors.Is(err, errs.ErrIPC) || errors.Is(err, errs.ErrTimeout) {
			return err
		}
		return fmt.Errorf("%w: %v", errs.ErrIPC, err)
	}
	s.state = StateConnected
	s.logger.Info("session connected", "kind", s.kind, "address", s.address)
	return nil
}

// Disconnect tears down the channel. Fails with ErrSessionNotConnected
// if not connected, and with ErrIPC if no channel was ever configured.
func (s *Session) Disconnect() error {
	if s.state != StateConnected {
		return fmt.Errorf("%w", errs.ErrSessionNotConnected)
	}
	if s.channel == nil {
		return fmt.Errorf("%w: no channel configured", errs.ErrIPC)
	}
	if err := s.channel.Disconnect(); err != nil {
		return err
	}
	s.state = StateDisconnected
	s.logger.Info("session disconnected", "kind", s.kind)
	return nil
}

// RawChannel returns the session's configured transport, for use by the
// operation engine's Perform. It is nil until SetIPCUDP/SetChannel or
// Connect has run.
func (s *Session) RawChannel() Channel { return s.channel }

// Process drains the channel of pending notification frames, queuing
// each one, for up to timeout. It returns early once the channel has
// nothing left to deliver. It never invokes callbacks.
func (s *Session) Process(timeout time.Duration) error {
	if s.state != StateConnected {
		return fmt.Errorf("%w", errs.ErrSessionNotConnected)
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		frame, ok, err := s.channel.Receive(remaining)
		if err != nil {
			return fmt.Errorf("%w", errs.ErrIPC)
		}
		if !ok {
			return nil
		}
		s.notifications = append(s.notifications, Notification{Tree: frame})
		s.logger.Debug("notification queued", "pending", len(s.notifications))
	}
}

// QueueNotification injects a notification directly onto the pending
// queue, bypassing the channel — used by tests and by the static
// client engine's in-process delivery path.
func (s *Session) QueueNotification(n Notification) {
	s.notifications = append(s.notifications, n)
}

// PendingNotifications reports how many notifications are queued.
func (s *Session) PendingNotifications() int { return len(s.notifications) }

// DispatchCallbacks pops every queued notification, in FIFO arrival
// order, and invokes the registered per-path callbacks synchronously.
// handle is called once per notification with its raw frame and should
// parse it into a subscribe.ChangeSet (or execute invocation) and drive
// the session's Dispatcher/Observations — kept as an injected function
// because only the operation-engine layer knows the wire decode.
func (s *Session) DispatchCallbacks(handle func(Notification)) {
	s.dispatching = true
	defer func() { s.dispatching = false }()

	pending := s.notifications
	s.notifications = nil
	for _, n := range pending {
		handle(n)
	}
}
