package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnit
	KindBool
	KindFelt
	KindUint
	KindStruct
	KindEnum
	KindArray
	KindDict
	KindBox
	KindNonZero
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindFelt:
		return "felt"
	case KindUint:
		return "uint"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindBox:
		return "box"
	case KindNonZero:
		return "nonzero"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of unsigned integers.
type Width uint8

const (
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// FeltBits is the bit width of the prime-field element.
// The field modulus fits in 252 bits; values are stored in 32 bytes.
const FeltBits = 252

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Elem    TypeID // for array/dict/box/nonzero
	Width   Width  // for uint
	Payload uint32 // index into struct/enum side tables
}

// Descriptor helpers ---------------------------------------------------------

// MakeUint describes an unsigned integer of the given width.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeArray describes a growable array of element type.
func MakeArray(elem TypeID) Type {
	return Type{Kind: KindArray, Elem: elem}
}

// MakeDict describes a felt-keyed dictionary with the given value type.
func MakeDict(value TypeID) Type {
	return Type{Kind: KindDict, Elem: value}
}

// MakeBox describes a boxed (heap-indirect) value of the element type.
func MakeBox(elem TypeID) Type {
	return Type{Kind: KindBox, Elem: elem}
}

// MakeNonZero describes a value of the element type known to be non-zero.
func MakeNonZero(elem TypeID) Type {
	return Type{Kind: KindNonZero, Elem: elem}
}
