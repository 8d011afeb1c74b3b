package op

import (
	"time"

	"github.com/lwm2m-go/core/session"
	"github.com/lwm2m-go/core/subscribe"
)

// ListClientsOperation asks the daemon for every registered client and
// the entity paths each has registered — the server-side entry point
// behind spec §4.E's "iterator of newly-registered clients" and §8's S5
// scenario. Unlike the data operations it targets no path: the request
// is the whole client registry.
type ListClientsOperation struct {
	base
	clients []subscribe.ClientRecord
}

// NewListClients starts a ListClients operation against s.
func NewListClients(s *session.Session) *ListClientsOperation {
	return &ListClientsOperation{base: newBase(s, KindListClients)}
}

// Perform requests the client list. Passing 0 uses the session's
// default timeout.
func (o *ListClientsOperation) Perform(timeout time.Duration) error {
	t := resolveTimeout(o.session, timeout)
	if err := o.checkPerformAllowEmpty(t); err != nil {
		return err
	}
	req := Envelope{
		Type:    MessageRequest,
		SubType: SubListClients,
	}
	resp, err := o.send(req, t)
	if err != nil {
		return err
	}
	o.clients = clientRecords(resp.Clients)
	return o.finish(newResponse(o.session.Registry()))
}

// Clients returns the registered clients reported by the daemon, in the
// order the response listed them. Empty until Perform succeeds.
func (o *ListClientsOperation) Clients() []subscribe.ClientRecord {
	out := make([]subscribe.ClientRecord, len(o.clients))
	copy(out, o.clients)
	return out
}

// Free releases the operation. A nil receiver is a no-op.
func (o *ListClientsOperation) Free() error {
	if o == nil {
		return nil
	}
	return o.free()
}

// clientRecords flattens a Clients subtree into ClientRecord entries,
// one registered entity path per leaf of each client's Objects tree.
func clientRecords(entries []ClientEntry) []subscribe.ClientRecord {
	out := make([]subscribe.ClientRecord, 0, len(entries))
	for _, e := range entries {
		rec := subscribe.ClientRecord{ID: e.ID}
		for _, leaf := range e.Objects.Leaves() {
			rec.Entities = append(rec.Entities, leaf.Path)
		}
		out = append(out, rec)
	}
	return out
}
