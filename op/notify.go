package op

import (
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/session"
	"github.com/lwm2m-go/core/subscribe"
)

// HandleNotification decodes one queued notification and drives s's
// Dispatcher (client-side) or ObservationIndex (server-side), the
// concrete "handle" callback session.Session.DispatchCallbacks expects —
// the operation engine is the only layer that knows the wire grammar,
// so session.Session takes it as an injected function rather than
// importing op itself. A malformed or unrecognised frame is dropped:
// a peer's bad notification must never abort the drain of the rest of
// the queue.
func HandleNotification(s *session.Session, n session.Notification) {
	resp, err := DecodeEnvelope(n.Tree)
	if err != nil || resp.Type != MessageNotification {
		return
	}

	switch resp.SubType {
	case SubSet:
		if resp.Objects != nil {
			dispatchChange(s, n.ClientID, resp)
		}
	case SubExecute:
		if resp.Objects != nil {
			dispatchExecute(s, n.ClientID, resp)
		}
	case SubClientRegister:
		dispatchClientEvent(s, subscribe.ClientRegister, resp)
	case SubClientUpdate:
		dispatchClientEvent(s, subscribe.ClientUpdate, resp)
	case SubClientDeregister:
		dispatchClientEvent(s, subscribe.ClientDeregister, resp)
	}
}

// dispatchClientEvent delivers one client lifecycle event to the
// session's registered callback. A deregistering client's observations
// are dropped first, so a callback that lists live observations never
// sees entries for a client that is already gone.
func dispatchClientEvent(s *session.Session, kind subscribe.ClientEventKind, resp Envelope) {
	ev := subscribe.ClientEvent{Kind: kind, Clients: clientRecords(resp.Clients)}
	if kind == subscribe.ClientDeregister {
		for _, c := range ev.Clients {
			s.Observations().RemoveClient(c.ID)
		}
	}
	if cb := s.ClientEventCallback(); cb != nil {
		cb(ev)
	}
}

// dispatchChange builds a ChangeSet from a Set-notification's leaves
// and fans it out, per spec §4.E step 1's change-set classification.
func dispatchChange(s *session.Session, clientID string, resp Envelope) {
	cs := subscribe.NewChangeSet(s.Registry(), clientID)
	for _, leaf := range resp.Objects.Leaves() {
		cs.Record(leaf.Path, changeKind(leaf.Change, leaf.Value), leaf.Value)
	}
	if s.Kind() == session.KindClient {
		s.Dispatcher().Dispatch(cs)
	} else {
		s.Observations().Dispatch(cs)
	}
}

// dispatchExecute delivers one execute invocation per leaf carrying an
// argument payload.
func dispatchExecute(s *session.Session, clientID string, resp Envelope) {
	for _, leaf := range resp.Objects.Leaves() {
		args := subscribe.ExecuteArgs{}
		if leaf.Value != nil {
			if v, err := model.ParseOpaqueBase64(*leaf.Value); err == nil {
				args.Data = v.Data
			}
		}
		if s.Kind() == session.KindClient {
			s.Dispatcher().DispatchExecute(leaf.Path, args)
		} else {
			s.Observations().DispatchExecute(clientID, leaf.Path, args)
		}
	}
}

// changeKind maps a notification leaf's Change tag to a ChangeKind,
// defaulting to Delete when no value accompanies an untagged leaf and
// Modify otherwise — the sender omits Change on ordinary updates and
// only sets it to distinguish Create/Delete from a plain Modify.
func changeKind(change *string, value *string) subscribe.ChangeKind {
	if change != nil {
		switch *change {
		case "Create":
			return subscribe.ChangeCreate
		case "Delete":
			return subscribe.ChangeDelete
		default:
			return subscribe.ChangeModify
		}
	}
	if value == nil {
		return subscribe.ChangeDelete
	}
	return subscribe.ChangeModify
}
