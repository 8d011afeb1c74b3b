package op

import (
	"fmt"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
)

// DeleteOperation removes an object instance, an optional resource, or
// a range of resource-instance indices. Grounded on DeleteHandler's
// existence-then-remove body, generalized from a single HTTP DELETE
// into an accumulate-then-perform batch of deletes.
type DeleteOperation struct {
	base
}

// NewDelete starts a Delete operation against s.
func NewDelete(s *session.Session) *DeleteOperation {
	return &DeleteOperation{base: newBase(s, KindDelete)}
}

// AddDelete marks p (an object-instance or resource path) for deletion.
func (o *DeleteOperation) AddDelete(p path.Path) error {
	if p.IsObject() || p.IsResourceInstance() {
		return fmt.Errorf("%w: AddDelete requires an object-instance or resource path", errs.ErrAddInvalid)
	}
	o.addEntry(path.LeafEntry{Path: p})
	return nil
}

// AddDeleteRange marks count resource-instance indices of the
// multi-instance resource p, starting at start, for deletion. It fails
// locally with ErrAddInvalid when start is negative, count < 1, or
// count > model.MaxID — the malformed-range case spec §4.D calls out
// explicitly, as distinct from CannotDelete which only the daemon can
// determine (e.g. min-instance would be violated).
func (o *DeleteOperation) AddDeleteRange(p path.Path, start, count int) error {
	if !p.IsResource() {
		return fmt.Errorf("%w: AddDeleteRange requires a resource path", errs.ErrAddInvalid)
	}
	if start < 0 || count < 1 || count > model.MaxID {
		return fmt.Errorf("%w: malformed resource-instance range [%d, %d)", errs.ErrAddInvalid, start, start+count)
	}
	for i := start; i < start+count; i++ {
		o.addEntry(path.LeafEntry{Path: p.WithResourceInstance(i)})
	}
	return nil
}

// Perform sends the accumulated deletes. Passing 0 uses the session's
// default timeout.
func (o *DeleteOperation) Perform(timeout time.Duration) error {
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
	return o.finish(result)
}

// Free releases the operation. A nil receiver is a no-op.
func (o *DeleteOperation) Free() error {
	if o == nil {
		return nil
	}
	return o.free()
}
