package op

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
)

// SetOperation writes one or more paths on a client, optionally
// creating Object Instances and Resources along the way. Grounded on
// PutHandler's create-or-overwrite body, generalized from one HTTP
// PUT into an accumulate-then-perform batch of writes.
type SetOperation struct {
	base
}

// NewSet starts a Set operation against s.
func NewSet(s *session.Session) *SetOperation {
	return &SetOperation{base: newBase(s, KindSet)}
}

func (o *SetOperation) checkKind(p path.Path, want model.Kind) error {
	reg := o.session.Registry()
	if reg == nil {
		return nil
	}
	obj, found := reg.GetObjectDefinition(p.ObjectID)
	if !found {
		return nil
	}
	res, found := obj.Resource(p.ResourceID)
	if !found {
		return nil
	}
	if res.Kind != want {
		return fmt.Errorf("%w: %s is defined as %s, not %s", errs.ErrTypeMismatch, p, res.Kind, want)
	}
	return nil
}

// AddCreateInstance requests creation of a new Object Instance with no
// resources set. p may name the instance explicitly (an object-instance
// path) or just the object, in which case the daemon assigns the new
// instance ID and reports it in the response.
func (o *SetOperation) AddCreateInstance(p path.Path) error {
	if !p.IsObject() && !p.IsObjectInstance() {
		return fmt.Errorf("%w: AddCreateInstance requires an object or object-instance path", errs.ErrAddInvalid)
	}
	o.addEntry(path.LeafEntry{Path: p})
	return nil
}

// AddCreateResource requests creation of an optional resource at p,
// without writing a value to it.
func (o *SetOperation) AddCreateResource(p path.Path) error {
	if !p.IsResource() {
		return fmt.Errorf("%w: AddCreateResource requires a resource path", errs.ErrAddInvalid)
	}
	o.addEntry(path.LeafEntry{Path: p})
	return nil
}

// AddValue sets a scalar resource at p to v.
func (o *SetOperation) AddValue(p path.Path, v model.Value) error {
	if !p.IsResource() {
		return fmt.Errorf("%w: AddValue requires a resource path", errs.ErrAddInvalid)
	}
	if err := o.checkKind(p, v.Kind()); err != nil {
		return err
	}
	text, err := path.EncodeValue(v)
	if err != nil {
		return err
	}
	o.addEntry(path.LeafEntry{Path: p, Value: &text})
	return nil
}

// AddArray writes every populated instance of arr to the
// multi-instance resource at p. Instances are independent adds, so a
// bad entry does not stop the rest; every per-index failure is
// collected into the returned *multierror.Error.
func (o *SetOperation) AddArray(p path.Path, arr *model.Array) error {
	if !p.IsResource() {
		return fmt.Errorf("%w: AddArray requires a resource path", errs.ErrAddInvalid)
	}
	if err := o.checkKind(p, arr.Kind()); err != nil {
		return err
	}
	var result *multierror.Error
	for _, idx := range arr.Indices() {
		v, _ := arr.Get(idx)
		if err := o.AddArrayEntry(p.WithResourceInstance(idx), v); err != nil {
			result = multierror.Append(result, fmt.Errorf("instance %d: %w", idx, err))
		}
	}
	return result.ErrorOrNil()
}

// AddArrayEntry sets a single sparse entry of a multi-instance resource
// without disturbing any other entry already on the daemon.
func (o *SetOperation) AddArrayEntry(p path.Path, v model.Value) error {
	if !p.IsResourceInstance() {
		return fmt.Errorf("%w: AddArrayEntry requires a resource-instance path", errs.ErrAddInvalid)
	}
	text, err := path.EncodeValue(v)
	if err != nil {
		return err
	}
	o.addEntry(path.LeafEntry{Path: p, Value: &text})
	return nil
}

// Perform sends the accumulated writes. Passing 0 uses the session's
// default timeout. A bare-object create (daemon assigns the instance
// ID) cannot share one operation with deeper adds under the same
// object: the request tree has no way to carry both, so the combination
// is rejected as ErrOperationInvalid.
func (o *SetOperation) Perform(timeout time.Duration) error {
	t := resolveTimeout(o.session, timeout)
	if err := o.checkPerform(t); err != nil {
		return err
	}
	for _, e := range o.entries {
		if !e.Path.IsObject() {
			continue
		}
		for _, other := range o.entries {
			if other.Path.ObjectID == e.Path.ObjectID && !other.Path.IsObject() {
				return fmt.Errorf("%w: bare-object create for /%d conflicts with deeper adds under it", errs.ErrOperationInvalid, e.Path.ObjectID)
			}
		}
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
func (o *SetOperation) Free() error {
	if o == nil {
		return nil
	}
	return o.free()
}
