package model

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/lwm2m-go/core/errs"
)

// Value is the sum type over every resource kind's possible content:
// the eight scalars (None carries no payload) plus an Array wrapping
// any one scalar kind per resource-instance index. Concrete
// implementations are unexported-method-gated so no type outside this
// package can satisfy Value, matching spec §9's "sum/tagged-union over
// the eight scalar kinds plus a per-kind array type" design note.
type Value interface {
	Kind() Kind
	isValue()
}

type NoneValue struct{}

func (NoneValue) Kind() Kind { return KindNone }
func (NoneValue) isValue()   {}

type StringValue string

func (StringValue) Kind() Kind { return KindString }
func (StringValue) isValue()   {}

type IntValue int64

func (IntValue) Kind() Kind { return KindInteger }
func (IntValue) isValue()   {}

type FloatValue float64

func (FloatValue) Kind() Kind { return KindFloat }
func (FloatValue) isValue()   {}

type BoolValue bool

func (BoolValue) Kind() Kind { return KindBoolean }
func (BoolValue) isValue()   {}

// OpaqueValue carries arbitrary bytes. A zero-length, non-nil Data is a
// valid, explicit empty payload per spec §3.
type OpaqueValue struct {
	Data []byte
}

func (OpaqueValue) Kind() Kind { return KindOpaque }
func (OpaqueValue) isValue()   {}

// Base64 returns the wire text form of an opaque payload.
func (v OpaqueValue) Base64() string {
	return base64.StdEncoding.EncodeToString(v.Data)
}

// ParseOpaqueBase64 decodes the wire text form of an opaque payload.
func ParseOpaqueBase64(s string) (OpaqueValue, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return OpaqueValue{}, fmt.Errorf("model: invalid opaque payload: %w", err)
	}
	return OpaqueValue{Data: b}, nil
}

type TimeValue int64

func (TimeValue) Kind() Kind { return KindTime }
func (TimeValue) isValue()   {}

// ObjectLinkValue is a pair of object ID + object-instance ID.
type ObjectLinkValue struct {
	ObjectID   int
	InstanceID int
}

func (ObjectLinkValue) Kind() Kind { return KindObjectLink }
func (ObjectLinkValue) isValue()   {}

func (v ObjectLinkValue) String() string {
	return fmt.Sprintf("%d:%d", v.ObjectID, v.InstanceID)
}

// Array is a sparse map from resource-instance index to a scalar Value.
// Only indices that have actually been written are present — spec §3's
// "sparse update semantics" invariant is enforced by every writer that
// touches an Array, never by the type itself.
type Array struct {
	scalar    Kind
	instances map[int]Value
}

// NewArray creates an empty array of the given scalar kind.
func NewArray(scalar Kind) *Array {
	return &Array{scalar: scalar, instances: make(map[int]Value)}
}

func (a *Array) Kind() Kind {
	switch a.scalar {
	case KindString:
		return KindStringArray
	case KindInteger:
		return KindIntegerArray
	case KindFloat:
		return KindFloatArray
	case KindBoolean:
		return KindBooleanArray
	case KindOpaque:
		return KindOpaqueArray
	case KindTime:
		return KindTimeArray
	case KindObjectLink:
		return KindObjectLinkArray
	default:
		return KindNone
	}
}
func (*Array) isValue() {}

// ScalarKind returns the kind of each element in the array.
func (a *Array) ScalarKind() Kind { return a.scalar }

// Set writes (or overwrites) the value at resource-instance index i.
// It returns TypeMismatch if v's kind does not match the array's
// scalar kind.
func (a *Array) Set(i int, v Value) error {
	if v.Kind() != a.scalar {
		return fmt.Errorf("%w: array holds %s, got %s", errs.ErrTypeMismatch, a.scalar, v.Kind())
	}
	a.instances[i] = v
	return nil
}

// Get returns the value at index i, or false if that index is absent.
func (a *Array) Get(i int) (Value, bool) {
	v, ok := a.instances[i]
	return v, ok
}

// Indices returns every populated index, in ascending order.
func (a *Array) Indices() []int {
	out := make([]int, 0, len(a.instances))
	for i := range a.instances {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

// Len reports the number of populated instances.
func (a *Array) Len() int { return len(a.instances) }
