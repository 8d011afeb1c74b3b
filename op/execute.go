package op

import (
	"fmt"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
)

// ExecuteOperation invokes an executable resource (kind None, Execute
// access), optionally carrying a byte-sequence argument. Grounded on
// PostHandler's single-target invoke-and-respond body, generalized into
// an accumulate-then-perform batch exactly like every other op.
type ExecuteOperation struct {
	base
}

// NewExecute starts an Execute operation against s.
func NewExecute(s *session.Session) *ExecuteOperation {
	return &ExecuteOperation{base: newBase(s, KindExecute)}
}

// AddExecute invokes the executable resource at p with no argument.
func (o *ExecuteOperation) AddExecute(p path.Path) error {
	return o.AddExecuteWithArgument(p, nil)
}

// AddExecuteWithArgument invokes the executable resource at p, passing
// argument as its byte-sequence payload. A nil argument is encoded the
// same as AddExecute.
func (o *ExecuteOperation) AddExecuteWithArgument(p path.Path, argument []byte) error {
	if !p.IsResource() {
		return fmt.Errorf("%w: AddExecute requires a resource path", errs.ErrAddInvalid)
	}
	if argument == nil {
		o.addEntry(path.LeafEntry{Path: p})
		return nil
	}
	text, err := path.EncodeValue(model.OpaqueValue{Data: argument})
	if err != nil {
		return err
	}
	o.addEntry(path.LeafEntry{Path: p, Value: &text})
	return nil
}

// Perform sends the accumulated invocations. Passing 0 uses the
// session's default timeout.
func (o *ExecuteOperation) Perform(timeout time.Duration) error {
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
func (o *ExecuteOperation) Free() error {
	if o == nil {
		return nil
	}
	return o.free()
}
