package op

import (
	"fmt"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
	"github.com/lwm2m-go/core/subscribe"
)

// subscribeEntry is one path's worth of work accumulated on a
// SubscribeOperation: either "start watching p with sub" or "stop
// watching p via sub", depending on cancel.
type subscribeEntry struct {
	tag    path.SubscribeTag
	sub    *subscribe.Subscription
	cancel bool
}

// SubscribeOperation is the client-side half of spec §4.E: a map from
// path to subscription plus the generic operation skeleton. Grounded on
// the same add-then-perform shape as every other op, specialized to
// install or remove entries in the session's Dispatcher once the
// daemon confirms each path.
type SubscribeOperation struct {
	base
	pending map[path.Path]subscribeEntry
}

// NewSubscribe starts a Subscribe operation against s.
func NewSubscribe(s *session.Session) *SubscribeOperation {
	return &SubscribeOperation{
		base:    newBase(s, KindSubscribe),
		pending: make(map[path.Path]subscribeEntry),
	}
}

// AddChange requests a Change subscription at p, invoking cb on every
// matching notification once active. A duplicate path within one
// subscribe operation is ErrOperationInvalid per spec §4.D's explicit
// tie-break for Subscribe (see DESIGN.md's Open Question decision).
func (o *SubscribeOperation) AddChange(p path.Path, cb subscribe.ChangeCallback) error {
	return o.addPending(p, path.SubscribeToChange, subscribe.NewChange(p, cb), false)
}

// AddExecute requests an Execute subscription at p.
func (o *SubscribeOperation) AddExecute(p path.Path, cb subscribe.ExecuteCallback) error {
	return o.addPending(p, path.SubscribeToExecute, subscribe.NewExecute(p, cb), false)
}

// AddCancelChange requests cancellation of an active Change
// subscription. sub must be a Subscription that an earlier performed
// subscribe operation installed; the session's Dispatcher().At lists
// the ones installed at a path.
func (o *SubscribeOperation) AddCancelChange(sub *subscribe.Subscription) error {
	return o.addPending(sub.Path, path.CancelSubscribeToChange, sub, true)
}

// AddCancelExecute requests cancellation of an active Execute
// subscription.
func (o *SubscribeOperation) AddCancelExecute(sub *subscribe.Subscription) error {
	return o.addPending(sub.Path, path.CancelSubscribeToExecute, sub, true)
}

func (o *SubscribeOperation) addPending(p path.Path, tag path.SubscribeTag, sub *subscribe.Subscription, cancel bool) error {
	if o.performed || o.freed {
		return fmt.Errorf("%w: cannot add after perform/free", errs.ErrAddInvalid)
	}
	if _, exists := o.pending[p]; exists {
		return fmt.Errorf("%w: duplicate path %s in one subscribe operation", errs.ErrOperationInvalid, p)
	}
	o.pending[p] = subscribeEntry{tag: tag, sub: sub, cancel: cancel}
	sub.LinkOperation(o.ID())
	o.addEntry(path.LeafEntry{Path: p, Subscribe: &tag})
	return nil
}

// Discard removes a not-yet-performed add for p from this operation,
// the Go realization of spec §4.E's "freeing a subscription that is
// still referenced by a never-performed subscribe operation removes it
// from that operation". It is a no-op once the operation has already
// been performed or freed.
func (o *SubscribeOperation) Discard(p path.Path) {
	if o.performed || o.freed {
		return
	}
	if e, ok := o.pending[p]; ok {
		e.sub.UnlinkOperation(o.ID())
		delete(o.pending, p)
		o.removeEntry(p)
	}
}

// Perform sends the accumulated subscribe/cancel requests and, for
// every path whose result is Success, installs or removes the
// corresponding subscription in the session's Dispatcher.
func (o *SubscribeOperation) Perform(timeout time.Duration) error {
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
			o.session.Dispatcher().Remove(entry.sub)
		} else if err := o.session.Dispatcher().Install(entry.sub); err != nil {
			o.session.Logger().Warn("subscription install failed", "path", p.String(), "err", err)
		}
	}

	return o.finish(result)
}

// Free releases the operation, unlinking it from every subscription it
// still references — spec §4.E's "freeing an operation removes the
// operation from each subscription's operation list". A nil receiver
// is a no-op.
func (o *SubscribeOperation) Free() error {
	if o == nil {
		return nil
	}
	for _, entry := range o.pending {
		entry.sub.UnlinkOperation(o.ID())
	}
	return o.free()
}
