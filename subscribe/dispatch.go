package subscribe

import (
	"fmt"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/path"
)

// Dispatcher is a session's subscription index: every live Change and
// Execute subscription, keyed by path, fanned out innermost-first on
// each notification. Grounded on sse.SubscriberHandler's
// skiplist-of-subscribers-by-path indexing and its Notify walk, with
// the fan-out direction reversed (innermost-first instead of a single
// exact-path match) per spec §4.E/§8 property 5.
type Dispatcher struct {
	byPath map[path.Path][]*Subscription
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{byPath: make(map[path.Path][]*Subscription)}
}

// Install activates sub, indexing it by its target path. It fails with
// ErrSubscriptionInvalid if sub is already installed.
func (d *Dispatcher) Install(sub *Subscription) error {
	for _, existing := range d.byPath[sub.Path] {
		if existing == sub {
			return fmt.Errorf("%w: subscription already installed", errs.ErrSubscriptionInvalid)
		}
	}
	d.byPath[sub.Path] = append(d.byPath[sub.Path], sub)
	return nil
}

// Remove deactivates sub, removing it from the index. It is a no-op if
// sub was never installed.
func (d *Dispatcher) Remove(sub *Subscription) {
	subs := d.byPath[sub.Path]
	for i, existing := range subs {
		if existing == sub {
			d.byPath[sub.Path] = append(subs[:i], subs[i+1:]...)
			if len(d.byPath[sub.Path]) == 0 {
				delete(d.byPath, sub.Path)
			}
			return
		}
	}
}

// At returns every subscription currently installed at exactly p, in
// installation order.
func (d *Dispatcher) At(p path.Path) []*Subscription {
	return d.byPath[p]
}

// Dispatch delivers one change-set: for every touched leaf path, fan
// out to any Change subscription at that exact path, then — in order —
// to the parent resource, parent object-instance, and parent object,
// per spec §4.E step 3. Cancelled subscriptions are skipped.
func (d *Dispatcher) Dispatch(cs *ChangeSet) {
	for _, p := range cs.Paths() {
		candidates := append([]path.Path{p}, p.Ancestors()...)
		for _, cp := range candidates {
			for _, sub := range d.byPath[cp] {
				if sub.Kind != KindChange || sub.Cancelled() {
					continue
				}
				sub.changeCallback(p, cs)
			}
		}
	}
}

// DispatchExecute delivers one execute invocation to every Execute
// subscription installed at exactly p.
func (d *Dispatcher) DispatchExecute(p path.Path, args ExecuteArgs) {
	for _, sub := range d.byPath[p] {
		if sub.Kind != KindExecute || sub.Cancelled() {
			continue
		}
		sub.executeCallback(p, args)
	}
}
