package op

import (
	"fmt"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
)

// GetOperation reads one or more paths from a client. Grounded on
// GetHandler's read-then-respond shape, generalized from a single HTTP
// request/response pair into an accumulate-then-perform-once operation.
type GetOperation struct {
	base
}

// NewGet starts a Get operation against s.
func NewGet(s *session.Session) *GetOperation {
	return &GetOperation{base: newBase(s, KindGet)}
}

// AddGet adds p to the set of paths this operation will read. Adding
// the same path twice keeps only the most recent add.
func (o *GetOperation) AddGet(p path.Path) error {
	if o.performed || o.freed {
		return fmt.Errorf("%w: cannot add after perform/free", errs.ErrAddInvalid)
	}
	o.addEntry(path.LeafEntry{Path: p})
	return nil
}

// Perform sends the accumulated reads and blocks until every path
// resolves or timeout elapses. Passing 0 uses the session's default
// timeout. The response is available via GetResponse once the daemon
// has replied, including when Perform returns ErrResponse for per-path
// failures; after any other error there is no response.
func (o *GetOperation) Perform(timeout time.Duration) error {
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

// Free releases the operation. A nil receiver is a no-op, the only
// form of double-free spec §4.D allows.
func (o *GetOperation) Free() error {
	if o == nil {
		return nil
	}
	return o.free()
}
