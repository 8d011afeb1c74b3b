package static

import (
	"context"
	"fmt"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/skiplist"
)

// HandlerOp identifies which lifecycle or data operation a resource
// handler is being invoked for, per spec §4.F's handler contract.
type HandlerOp int

const (
	OpCreateObjectInstance HandlerOp = iota
	OpDeleteObjectInstance
	OpCreateResource
	OpDeleteResource
	OpRead
	OpWrite
	OpExecute
)

// Handler is a resource operation callback, the Go realization of
// spec §4.F's `fn(client, operation, O, I, R, i, &data_ptr, &data_size,
// &changed)`. The source's double-pointer out-parameters become plain
// return values: for Read, returned data is the resource's current
// encoding; for Write, in carries the new encoding and the handler
// reports whether the stored value actually changed; for Execute, in
// carries the invocation argument and the returned data is ignored.
// Handlers for operations they do not support should return
// ErrUnsupported.
type Handler func(c *Client, op HandlerOp, objectID, instanceID, resourceID, resourceInstanceID int, in []byte) (out []byte, changed bool, err error)

// ValueGetter reads the current value of one resource instance, the
// Go-idiomatic replacement for the source's "storage pointer" binding:
// instead of exposing `ptr + k*step_size` for the engine to read
// through unsafely, the application hands over a typed accessor. A GC
// language has no business doing C's pointer arithmetic (spec §9's
// "manual lifetime of borrowed pointers" note applies here too).
type ValueGetter func(instanceID int) (model.Value, error)

// ValueSetter writes a new value to one resource instance, reporting
// whether the stored value actually differs afterward — the same
// "set *changed" contract the source's Write handler uses, to decide
// whether a change notification is due.
type ValueSetter func(instanceID int, v model.Value) (changed bool, err error)

// bindingKind distinguishes the two storage bindings a resource can
// carry: a pair of typed accessor closures, or a full handler
// callback. The source's three bindings (pointer, pointer-array,
// handler) collapse to two here because a Go closure already captures
// "one value per instance" or "one value per instance via index into a
// slice" identically — the distinction between them was only ever
// about how the application computed an address, which a closure
// hides.
type bindingKind int

const (
	bindingValue bindingKind = iota
	bindingHandler
)

type binding struct {
	kind    bindingKind
	get     ValueGetter
	set     ValueSetter
	handler Handler
}

// storageIndex is the set of resource storage bindings registered on a
// Client, keyed by "/O/R" (object/resource, instance-independent).
// Grounded on the teacher's database.go nesting skiplists by name;
// here the key is a formatted object/resource pair instead of a
// document path.
type storageIndex struct {
	byResource skiplist.DBIndex[string, binding]
}

func newStorageIndex() *storageIndex {
	return &storageIndex{byResource: skiplist.NewSkipList[string, binding]()}
}

func resourceKey(objectID, resourceID int) string {
	return fmt.Sprintf("/%d/%d", objectID, resourceID)
}

func (s *storageIndex) setValueBinding(objectID, resourceID int, get ValueGetter, set ValueSetter) error {
	key := resourceKey(objectID, resourceID)
	_, err := s.byResource.Upsert(key, func(_ string, _ binding, exists bool) (binding, error) {
		return binding{kind: bindingValue, get: get, set: set}, nil
	})
	return err
}

func (s *storageIndex) setHandlerBinding(objectID, resourceID int, h Handler) error {
	key := resourceKey(objectID, resourceID)
	_, err := s.byResource.Upsert(key, func(_ string, _ binding, exists bool) (binding, error) {
		return binding{kind: bindingHandler, handler: h}, nil
	})
	return err
}

func (s *storageIndex) lookup(objectID, resourceID int) (binding, bool) {
	return s.byResource.Find(resourceKey(objectID, resourceID))
}

func (s *storageIndex) all() []binding {
	all, _ := s.byResource.Query(context.Background(), "", "\xff")
	return all
}

// SetResourceStorageValue binds resource (objectID, resourceID) to a
// pair of typed accessor closures — one call site covers what the
// source splits into "storage pointer" (a single instance) and
// "storage pointer array" (one slot per object instance), since get/set
// already take instanceID.
func (c *Client) SetResourceStorageValue(objectID, resourceID int, get ValueGetter, set ValueSetter) error {
	if c.running {
		return fmt.Errorf("%w: cannot change resource storage bindings while running", errs.ErrStaticClientInvalid)
	}
	return c.storage.setValueBinding(objectID, resourceID, get, set)
}

// SetResourceOperationHandler binds resource (objectID, resourceID) to
// a full lifecycle/data handler, per spec §4.F's handler-callback
// binding.
func (c *Client) SetResourceOperationHandler(objectID, resourceID int, h Handler) error {
	if c.running {
		return fmt.Errorf("%w: cannot change resource storage bindings while running", errs.ErrStaticClientInvalid)
	}
	return c.storage.setHandlerBinding(objectID, resourceID, h)
}

// GetResourceInstanceValue returns the current value stored at
// (objectID, instanceID, resourceID, resourceInstanceID), the typed
// analogue of the source's `get_resource_instance_pointer` — handlers
// use this to read sibling resources bound by value storage. Unlike
// the source, this is a fresh copy rather than a pointer into shared
// storage: spec §9's GC-target guidance for borrowed-pointer patterns
// is "expose copies only".
func (c *Client) GetResourceInstanceValue(objectID, instanceID, resourceID, resourceInstanceID int) (model.Value, error) {
	b, found := c.storage.lookup(objectID, resourceID)
	if !found {
		return nil, fmt.Errorf("%w: resource %d/%d has no storage binding", errs.ErrNotDefined, objectID, resourceID)
	}
	switch b.kind {
	case bindingValue:
		return b.get(instanceID)
	case bindingHandler:
		out, _, err := b.handler(c, OpRead, objectID, instanceID, resourceID, resourceInstanceID, nil)
		if err != nil {
			return nil, err
		}
		kind, found := c.resourceKind(objectID, resourceID)
		if !found {
			return nil, fmt.Errorf("%w: resource %d/%d", errs.ErrNotDefined, objectID, resourceID)
		}
		return decodeHandlerValue(kind, out)
	default:
		return nil, fmt.Errorf("%w: unrecognised binding kind", errs.ErrInternal)
	}
}

// writeResourceInstance applies a write to a bound resource, invoking
// either the value setter or the Write handler, and returns whether
// the stored value changed.
func (c *Client) writeResourceInstance(objectID, instanceID, resourceID, resourceInstanceID int, v model.Value) (bool, error) {
	b, found := c.storage.lookup(objectID, resourceID)
	if !found {
		return false, fmt.Errorf("%w: resource %d/%d has no storage binding", errs.ErrNotDefined, objectID, resourceID)
	}
	switch b.kind {
	case bindingValue:
		return b.set(instanceID, v)
	case bindingHandler:
		payload, err := encodeHandlerValue(v)
		if err != nil {
			return false, err
		}
		_, changed, err := b.handler(c, OpWrite, objectID, instanceID, resourceID, resourceInstanceID, payload)
		return changed, err
	default:
		return false, fmt.Errorf("%w: unrecognised binding kind", errs.ErrInternal)
	}
}

// executeResource invokes an executable resource's handler with
// argument, the static-client-side counterpart of op.ExecuteOperation.
func (c *Client) executeResource(objectID, instanceID, resourceID int, argument []byte) error {
	b, found := c.storage.lookup(objectID, resourceID)
	if !found {
		return fmt.Errorf("%w: resource %d/%d has no storage binding", errs.ErrNotDefined, objectID, resourceID)
	}
	if b.kind != bindingHandler {
		return fmt.Errorf("%w: resource %d/%d is not handler-bound", errs.ErrUnsupported, objectID, resourceID)
	}
	_, _, err := b.handler(c, OpExecute, objectID, instanceID, resourceID, model.InvalidID, argument)
	return err
}

func encodeHandlerValue(v model.Value) ([]byte, error) {
	if v.Kind() == model.KindString {
		return []byte(string(v.(model.StringValue))), nil
	}
	if v.Kind() == model.KindOpaque {
		return v.(model.OpaqueValue).Data, nil
	}
	text, err := path.EncodeValue(v)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func decodeHandlerValue(kind model.Kind, data []byte) (model.Value, error) {
	switch kind {
	case model.KindString:
		return model.StringValue(string(data)), nil
	case model.KindOpaque:
		return model.OpaqueValue{Data: data}, nil
	default:
		return path.DecodeValue(kind, string(data))
	}
}
