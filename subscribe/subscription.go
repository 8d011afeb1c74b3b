// Package subscribe implements the Subscription/Observation Engine:
// Change and Execute subscription records, the change-set view handed
// to callbacks, and the fan-out Dispatcher that delivers notifications
// innermost-path-first. It generalizes the teacher's sse.go, swapping
// an HTTP Server-Sent-Events stream for direct, synchronous callback
// invocation (spec §9's "callback with an opaque context pointer"
// design note, expressed in Go as an ordinary closure).
package subscribe

import (
	"github.com/google/uuid"

	"github.com/lwm2m-go/core/path"
)

// Kind distinguishes a Change subscription from an Execute subscription.
type Kind int

const (
	KindChange Kind = iota
	KindExecute
)

// ChangeCallback is invoked once per leaf path touched by a change-set
// that this subscription matches.
type ChangeCallback func(p path.Path, cs *ChangeSet)

// ExecuteCallback is invoked when the subscribed executable resource is
// invoked by the peer.
type ExecuteCallback func(p path.Path, args ExecuteArgs)

// Subscription is a live Change or Execute registration. It is shared,
// mutable state: a Subscribe operation installs it into a Dispatcher,
// and freeing the subscription or the owning operation unlinks it —
// mirrored from sse.Subscriber's path/channel/context shape, generalized
// to carry a typed callback instead of an SSE event channel.
type Subscription struct {
	ID   uuid.UUID
	Path path.Path
	Kind Kind

	changeCallback  ChangeCallback
	executeCallback ExecuteCallback

	cancelled bool
	ops       map[uuid.UUID]struct{}
}

// NewChange creates an un-activated Change subscription for p.
func NewChange(p path.Path, cb ChangeCallback) *Subscription {
	return &Subscription{
		ID:             uuid.New(),
		Path:           p,
		Kind:           KindChange,
		changeCallback: cb,
		ops:            make(map[uuid.UUID]struct{}),
	}
}

// NewExecute creates an un-activated Execute subscription for p.
func NewExecute(p path.Path, cb ExecuteCallback) *Subscription {
	return &Subscription{
		ID:              uuid.New(),
		Path:            p,
		Kind:            KindExecute,
		executeCallback: cb,
		ops:             make(map[uuid.UUID]struct{}),
	}
}

// Cancelled reports whether this subscription has been cancelled (via
// Cancel or a performed CancelSubscribeTo… add).
func (s *Subscription) Cancelled() bool { return s.cancelled }

// Cancel marks the subscription as cancelled; a cancelled subscription
// is skipped by dispatch even if it is still installed.
func (s *Subscription) Cancel() { s.cancelled = true }

// linkOperation records that subscribeOpID references this subscription,
// so freeing the operation can unlink it again.
func (s *Subscription) linkOperation(subscribeOpID uuid.UUID) {
	s.ops[subscribeOpID] = struct{}{}
}

// unlinkOperation removes a previously linked operation reference.
func (s *Subscription) unlinkOperation(subscribeOpID uuid.UUID) {
	delete(s.ops, subscribeOpID)
}

// LinkOperation is the exported form of linkOperation, for the op
// package's SubscribeOperation/ObserveOperation to record the
// bidirectional weak link described in spec §9 without this package
// having to know anything about operations.
func (s *Subscription) LinkOperation(subscribeOpID uuid.UUID) { s.linkOperation(subscribeOpID) }

// UnlinkOperation is the exported form of unlinkOperation.
func (s *Subscription) UnlinkOperation(subscribeOpID uuid.UUID) { s.unlinkOperation(subscribeOpID) }

// OperationRefs reports how many subscribe operations currently
// reference this subscription.
func (s *Subscription) OperationRefs() int { return len(s.ops) }
