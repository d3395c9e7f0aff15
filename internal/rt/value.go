// Package rt is the runtime support library linked into every compiled
// module: heap-type behavior (array growth, dictionary operations, boxes),
// panic construction and reference counting. All exported functions are
// reentrant; failure is reported as a panic value, never a process abort.
package rt

import (
	"fmt"
	"math/big"

	"tern/internal/types"
)

// ValueKind identifies the runtime shape of a Value.
type ValueKind uint8

const (
	// VKInvalid represents an invalid value.
	VKInvalid ValueKind = iota
	// VKUnit represents the empty value.
	VKUnit
	// VKBool represents a boolean.
	VKBool
	// VKUint represents an unsigned integer of width <= 64.
	VKUint
	// VKBig represents a field element or a u128, stored as a big integer.
	VKBig
	// VKStruct represents an aggregate of field values.
	VKStruct
	// VKEnum represents a discriminant plus a payload value.
	VKEnum
	// VKHandle represents a heap object (array, dict or box) by handle.
	VKHandle
)

func (k ValueKind) String() string {
	switch k {
	case VKInvalid:
		return "invalid"
	case VKUnit:
		return "unit"
	case VKBool:
		return "bool"
	case VKUint:
		return "uint"
	case VKBig:
		return "big"
	case VKStruct:
		return "struct"
	case VKEnum:
		return "enum"
	case VKHandle:
		return "handle"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Handle identifies a heap object. Handles are monotonically increasing
// and never reused within a run.
type Handle uint64

// Value is a runtime datum flowing through compiled code.
type Value struct {
	Kind ValueKind
	Type types.TypeID // static type from the compiler

	Bool    bool
	U64     uint64
	Big     *big.Int
	Fields  []Value // VKStruct
	Tag     int     // VKEnum
	Payload *Value  // VKEnum
	H       Handle  // VKHandle
}

// Unit is the empty value.
func Unit() Value {
	return Value{Kind: VKUnit}
}

// BoolVal wraps a boolean.
func BoolVal(b bool) Value {
	return Value{Kind: VKBool, Bool: b}
}

// UintVal wraps an unsigned integer of width <= 64.
func UintVal(t types.TypeID, v uint64) Value {
	return Value{Kind: VKUint, Type: t, U64: v}
}

// BigVal wraps a field element or u128. The big.Int is owned by the value.
func BigVal(t types.TypeID, v *big.Int) Value {
	return Value{Kind: VKBig, Type: t, Big: v}
}

// StructVal wraps an aggregate.
func StructVal(t types.TypeID, fields []Value) Value {
	return Value{Kind: VKStruct, Type: t, Fields: fields}
}

// EnumVal wraps a discriminant and payload.
func EnumVal(t types.TypeID, tag int, payload Value) Value {
	return Value{Kind: VKEnum, Type: t, Tag: tag, Payload: &payload}
}

// HandleVal wraps a heap handle.
func HandleVal(t types.TypeID, h Handle) Value {
	return Value{Kind: VKHandle, Type: t, H: h}
}

// IsZero reports whether this is the invalid zero value.
func (v Value) IsZero() bool {
	return v.Kind == VKInvalid
}

// IsHeap reports whether the value lives behind a heap header.
func (v Value) IsHeap() bool {
	return v.Kind == VKHandle
}
