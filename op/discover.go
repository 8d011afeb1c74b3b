package op

import (
	"fmt"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
)

// DiscoverOperation retrieves the attribute set attached to one or more
// paths (server-side only). Grounded on GetHandler's read-then-respond
// shape, the same skeleton Get uses, specialized to decode Attribute
// nodes rather than Value nodes.
type DiscoverOperation struct {
	base
}

// NewDiscover starts a Discover operation against s.
func NewDiscover(s *session.Session) *DiscoverOperation {
	return &DiscoverOperation{base: newBase(s, KindDiscover)}
}

// AddDiscover adds p to the set of paths to discover attributes for.
func (o *DiscoverOperation) AddDiscover(p path.Path) error {
	if o.performed || o.freed {
		return fmt.Errorf("%w: cannot add after perform/free", errs.ErrAddInvalid)
	}
	o.addEntry(path.LeafEntry{Path: p})
	return nil
}

// Perform sends the accumulated discovers. Passing 0 uses the
// session's default timeout.
func (o *DiscoverOperation) Perform(timeout time.Duration) error {
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
func (o *DiscoverOperation) Free() error {
	if o == nil {
		return nil
	}
	return o.free()
}
