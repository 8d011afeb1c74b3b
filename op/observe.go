package op

import (
	"fmt"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
	"github.com/lwm2m-go/core/subscribe"
)

// ObserveOperation is the server-side analogue of SubscribeOperation:
// Observations are keyed by (client-id, path) rather than path alone,
// per spec §4.E's "server-side observations mirror the client-side
// subscription machinery but are keyed by (client-id, path)".
type ObserveOperation struct {
	base
	clientID string
	pending  map[path.Path]subscribeEntry
}

// NewObserve starts an Observe operation against s, targeting clientID.
func NewObserve(s *session.Session, clientID string) *ObserveOperation {
	return &ObserveOperation{
		base:     newBase(s, KindObserve),
		clientID: clientID,
		pending:  make(map[path.Path]subscribeEntry),
	}
}

// AddObserve requests a Change observation at p for this operation's
// client.
func (o *ObserveOperation) AddObserve(p path.Path, cb subscribe.ChangeCallback) error {
	return o.addPending(p, path.Observe, subscribe.NewChange(p, cb), false)
}

// AddCancelObserve requests cancellation of an active observation.
func (o *ObserveOperation) AddCancelObserve(sub *subscribe.Subscription) error {
	return o.addPending(sub.Path, path.CancelObserve, sub, true)
}

func (o *ObserveOperation) addPending(p path.Path, tag path.SubscribeTag, sub *subscribe.Subscription, cancel bool) error {
	if o.performed || o.freed {
		return fmt.Errorf("%w: cannot add after perform/free", errs.ErrAddInvalid)
	}
	if _, exists := o.pending[p]; exists {
		return fmt.Errorf("%w: duplicate path %s in one observe operation", errs.ErrOperationInvalid, p)
	}
	o.pending[p] = subscribeEntry{tag: tag, sub: sub, cancel: cancel}
	sub.LinkOperation(o.ID())
	o.addEntry(path.LeafEntry{Path: p, Subscribe: &tag})
	return nil
}

// Discard removes a not-yet-performed add for p from this operation.
func (o *ObserveOperation) Discard(p path.Path) {
	if o.performed || o.freed {
		return
	}
	if e, ok := o.pending[p]; ok {
		e.sub.UnlinkOperation(o.ID())
		delete(o.pending, p)
		o.removeEntry(p)
	}
}

// Perform sends the accumulated observe/cancel requests and installs or
// removes the corresponding observation in the session's
// ObservationIndex, keyed by this operation's client ID.
func (o *ObserveOperation) Perform(timeout time.Duration) error {
	t := resolveTimeout(o.session, timeout)
	if err := o.checkPerform(t); err != nil {
		return err
	}
	resp, err := o.roundTrip(t)
	if err != nil {
		return err
	}
	result := newResponse(o.session.Registry())
	if resp.Objects != nil {
		result.populateFromTree(*resp.Objects)
	}

	for p, entry := range o.pending {
		pr, found := result.GetPathResult(p)
		if !found || !pr.Success() {
			continue
		}
		if entry.cancel {
			entry.sub.Cancel()
			o.session.Observations().Remove(o.clientID, entry.sub)
		} else if err := o.session.Observations().Install(o.clientID, entry.sub); err != nil {
			o.session.Logger().Warn("observation install failed", "client", o.clientID, "path", p.String(), "err", err)
		}
	}

	return o.finish(result)
}

// Free releases the operation, unlinking it from every observation it
// still references. A nil receiver is a no-op.
func (o *ObserveOperation) Free() error {
	if o == nil {
		return nil
	}
	for _, entry := range o.pending {
		entry.sub.UnlinkOperation(o.ID())
	}
	return o.free()
}
