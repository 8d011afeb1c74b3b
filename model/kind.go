// Package model implements the Definition Registry: the canonical store
// of Object and Resource Definitions, the typed Value sum type used to
// carry resource contents, and the loaders that bulk-import definitions
// from a manifest file.
package model

import "fmt"

// InvalidID is the sentinel used throughout the public API for an
// absent identifier component in a path.
const InvalidID = -1

// MaxID is the largest value a 16-bit object/instance/resource
// identifier may take.
const MaxID = 65535

// Kind identifies the scalar or array type of a resource's value.
type Kind int

const (
	// KindNone is the executable placeholder kind. A resource of this
	// kind carries no value; it exists to be Executed.
	KindNone Kind = iota
	KindString
	KindInteger
	KindFloat
	KindBoolean
	KindOpaque
	KindTime
	KindObjectLink
	KindStringArray
	KindIntegerArray
	KindFloatArray
	KindBooleanArray
	KindOpaqueArray
	KindTimeArray
	KindObjectLinkArray
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindString:
		return "String"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBoolean:
		return "Boolean"
	case KindOpaque:
		return "Opaque"
	case KindTime:
		return "Time"
	case KindObjectLink:
		return "ObjectLink"
	case KindStringArray:
		return "StringArray"
	case KindIntegerArray:
		return "IntegerArray"
	case KindFloatArray:
		return "FloatArray"
	case KindBooleanArray:
		return "BooleanArray"
	case KindOpaqueArray:
		return "OpaqueArray"
	case KindTimeArray:
		return "TimeArray"
	case KindObjectLinkArray:
		return "ObjectLinkArray"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsArray reports whether k is the array counterpart of a scalar kind.
func (k Kind) IsArray() bool {
	return k >= KindStringArray && k <= KindObjectLinkArray
}

// Scalar returns the scalar kind that k is the array form of. It panics
// if k is not an array kind; callers must check IsArray first.
func (k Kind) Scalar() Kind {
	switch k {
	case KindStringArray:
		return KindString
	case KindIntegerArray:
		return KindInteger
	case KindFloatArray:
		return KindFloat
	case KindBooleanArray:
		return KindBoolean
	case KindOpaqueArray:
		return KindOpaque
	case KindTimeArray:
		return KindTime
	case KindObjectLinkArray:
		return KindObjectLink
	default:
		panic("model: Scalar called on non-array kind")
	}
}

// Access is the access mode a resource definition grants.
type Access int

const (
	AccessNone Access = iota
	AccessReadOnly
	AccessWriteOnly
	AccessReadWrite
	AccessExecute
)

func (a Access) String() string {
	switch a {
	case AccessNone:
		return "None"
	case AccessReadOnly:
		return "ReadOnly"
	case AccessWriteOnly:
		return "WriteOnly"
	case AccessReadWrite:
		return "ReadWrite"
	case AccessExecute:
		return "Execute"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Readable reports whether the access mode permits Get/Read.
func (a Access) Readable() bool {
	return a == AccessReadOnly || a == AccessReadWrite
}

// Writable reports whether the access mode permits Set/Write.
func (a Access) Writable() bool {
	return a == AccessWriteOnly || a == AccessReadWrite
}
