// Package op implements the Operation Engine: the shared
// new/add/perform/free skeleton plus the per-kind operations (Get,
// Set, Delete, Execute, Define, Discover, Subscribe/Observe) that ride
// on top of it. Grounded on handlers.go's add-then-perform-then-respond
// shape across GetHandler/PutHandler/PostHandler/DeleteHandler/
// PatchHandler, generalized into one engine instead of five
// near-duplicate HTTP handlers.
package op

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
)

// Kind identifies which operation a base is specialized into.
type Kind int

const (
	KindGet Kind = iota
	KindSet
	KindDelete
	KindExecute
	KindDefine
	KindDiscover
	KindSubscribe
	KindObserve
	KindListClients
)

func (k Kind) subType() SubType {
	switch k {
	case KindGet:
		return SubGet
	case KindSet:
		return SubSet
	case KindDelete:
		return SubDelete
	case KindExecute:
		return SubExecute
	case KindDefine:
		return SubDefine
	case KindSubscribe:
		return SubSubscribe
	case KindObserve:
		return SubObserve
	case KindListClients:
		return SubListClients
	default:
		return SubGet
	}
}

// base is the shared skeleton every operation embeds: new(session),
// add tracking with last-wins replacement by path, perform/free
// lifecycle guards, and the resulting Response.
type base struct {
	id      uuid.UUID
	kind    Kind
	session *session.Session

	entries    []path.LeafEntry
	entryIndex map[path.Path]int // path -> index in entries, for last-wins replace

	performed bool
	freed     bool
	response  *Response
}

// resolveTimeout returns timeout, or s's configured default when
// timeout is zero — every operation's Perform accepts 0 to mean "use
// the session default" instead of repeating SetDefaultTimeout's value
// at every call site.
func resolveTimeout(s *session.Session, timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return s.DefaultTimeout()
}

func newBase(s *session.Session, kind Kind) base {
	return base{
		id:         uuid.New(),
		kind:       kind,
		session:    s,
		entryIndex: make(map[path.Path]int),
	}
}

// addEntry inserts or replaces (last-wins) the entry for e.Path.
func (b *base) addEntry(e path.LeafEntry) {
	if i, exists := b.entryIndex[e.Path]; exists {
		b.entries[i] = e
		return
	}
	b.entryIndex[e.Path] = len(b.entries)
	b.entries = append(b.entries, e)
}

// removeEntry drops a previously added path entirely, so a discarded
// subscribe/observe add is not shipped on the next Perform — spec §4.E's
// "freeing a subscription ... removes it from [the] operation['s map]
// (so the perform will not reference it)". Reindexes every entry after
// the removed one, since entryIndex stores positions by value.
func (b *base) removeEntry(p path.Path) {
	i, exists := b.entryIndex[p]
	if !exists {
		return
	}
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	delete(b.entryIndex, p)
	for q, idx := range b.entryIndex {
		if idx > i {
			b.entryIndex[q] = idx - 1
		}
	}
}

// ID returns the operation's handle, for subscription back-linking and
// diagnostics.
func (b *base) ID() uuid.UUID { return b.id }

// checkPerform validates the shared preconditions of spec §4.D's
// tie-break rules, common to every operation kind.
func (b *base) checkPerform(timeout time.Duration) error {
	if len(b.entries) == 0 {
		return fmt.Errorf("%w: no paths added", errs.ErrOperationInvalid)
	}
	return b.checkPerformAllowEmpty(timeout)
}

// checkPerformAllowEmpty is checkPerform without the at-least-one-path
// rule, for operations like ListClients that target no path at all.
func (b *base) checkPerformAllowEmpty(timeout time.Duration) error {
	if b.freed {
		return fmt.Errorf("%w: operation already freed", errs.ErrOperationInvalid)
	}
	if b.performed {
		return fmt.Errorf("%w: operation already performed", errs.ErrOperationInvalid)
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", errs.ErrOperationInvalid)
	}
	if b.session.State() != session.StateConnected {
		return fmt.Errorf("%w", errs.ErrSessionNotConnected)
	}
	if b.session.InCallback() {
		return fmt.Errorf("%w: cannot perform from within a callback", errs.ErrOperationInvalid)
	}
	return nil
}

// roundTrip builds a request envelope from the accumulated entries,
// sends it, receives the matching response frame, and decodes it. It
// is shared by every operation kind's Perform.
func (b *base) roundTrip(timeout time.Duration) (Envelope, error) {
	tree, err := path.Build(b.entries)
	if err != nil {
		return Envelope{}, err
	}
	req := Envelope{
		Type:    MessageRequest,
		SubType: b.kind.subType(),
		Objects: &tree,
	}
	return b.send(req, timeout)
}

// send transmits a fully-built request envelope and awaits its
// matching response, broken out of roundTrip so operations whose
// request is not a plain path tree (Define's definition payload,
// ListClients' pathless request) can build their own envelope while still
// sharing the send/receive/notification-interleaving logic.
func (b *base) send(req Envelope, timeout time.Duration) (Envelope, error) {
	frame, err := EncodeEnvelope(req)
	if err != nil {
		return Envelope{}, err
	}

	ch := b.session.RawChannel()
	if ch == nil {
		return Envelope{}, fmt.Errorf("%w: no channel configured", errs.ErrIPC)
	}
	if err := ch.Send(frame); err != nil {
		return Envelope{}, err
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Envelope{}, fmt.Errorf("%w", errs.ErrTimeout)
		}
		respFrame, ok, err := ch.Receive(remaining)
		if err != nil {
			return Envelope{}, err
		}
		if !ok {
			return Envelope{}, fmt.Errorf("%w", errs.ErrTimeout)
		}
		resp, err := DecodeEnvelope(respFrame)
		if err != nil {
			return Envelope{}, err
		}
		if resp.Type != MessageResponse {
			// A notification arrived interleaved with our response;
			// queue it and keep waiting rather than discarding it —
			// perform never invokes callbacks itself (spec §4.C).
			b.session.QueueNotification(session.Notification{Tree: respFrame})
			continue
		}
		if resp.Code == CodeFailureBadRequest {
			// Frame-level rejection: the daemon refused the whole
			// request, so there are no per-path results to consult.
			return Envelope{}, fmt.Errorf("%w: daemon rejected request", errs.ErrResponseInvalid)
		}
		return resp, nil
	}
}

// finish marks the operation performed and stores resp, returning
// ErrResponse if any path result was non-success, per spec §7.
func (b *base) finish(resp *Response) error {
	b.performed = true
	b.response = resp
	if resp.HasFailure() {
		b.session.Logger().Warn("operation completed with per-path errors", "op", b.kind.subType())
		return errs.ErrResponse
	}
	return nil
}

// GetResponse returns the performed operation's response. It fails
// with ErrOperationInvalid if the operation has not yet been performed.
func (b *base) GetResponse() (*Response, error) {
	if !b.performed {
		return nil, fmt.Errorf("%w: operation not yet performed", errs.ErrOperationInvalid)
	}
	return b.response, nil
}

// free releases the operation. Calling it twice on the same operation
// is ErrOperationInvalid — only a nil operation pointer is an
// idempotent free, which each concrete type's Free method checks for
// before ever reaching here.
func (b *base) free() error {
	if b.freed {
		return fmt.Errorf("%w: operation already freed", errs.ErrOperationInvalid)
	}
	b.freed = true
	return nil
}
