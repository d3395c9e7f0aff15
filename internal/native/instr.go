// Package native is the lowered form of a program: per-function register
// machine code plus the marshaling descriptors the invocation layer needs
// to call into it. Scheduling and machine-level emission are delegated to
// the external code generator that consumes this form.
package native

import (
	"math/big"

	"tern/internal/types"
)

// Reg indexes a virtual register within one function frame.
type Reg uint32

// NoReg marks an unused register slot in an instruction payload.
const NoReg Reg = ^Reg(0)

// BlockID indexes a block within one function.
type BlockID uint32

// InstrKind enumerates lowered instruction kinds.
type InstrKind uint8

const (
	// InstrConst materializes an immediate.
	InstrConst InstrKind = iota
	// InstrCopy duplicates a register (heap retains are explicit).
	InstrCopy
	// InstrFeltBin is field arithmetic.
	InstrFeltBin
	// InstrUintBin is fixed-width unsigned arithmetic with a carry output.
	InstrUintBin
	// InstrIsZero tests a felt for zero into a bool register.
	InstrIsZero
	// InstrStructPack builds a struct from field registers.
	InstrStructPack
	// InstrStructUnpack splits a struct into field registers.
	InstrStructUnpack
	// InstrEnumInit builds an enum from a variant payload.
	InstrEnumInit
	// InstrEnumPayload extracts a variant payload from an enum.
	InstrEnumPayload
	// InstrArrayNew allocates an empty array.
	InstrArrayNew
	// InstrArrayAppend appends an element, growing the backing region.
	InstrArrayAppend
	// InstrArrayLen reads the header length into a uint register.
	InstrArrayLen
	// InstrArrayGet is a bounds-checked element read.
	InstrArrayGet
	// InstrArrayPop removes the front element; Ok reports non-emptiness.
	InstrArrayPop
	// InstrDictNew allocates an empty dictionary.
	InstrDictNew
	// InstrDictGet reads the binding for a felt key.
	InstrDictGet
	// InstrDictInsert writes the binding for a felt key.
	InstrDictInsert
	// InstrDictSquash produces the canonical snapshot of a dictionary.
	InstrDictSquash
	// InstrBoxNew moves a value behind a heap pointer.
	InstrBoxNew
	// InstrUnbox loads the value behind a box pointer.
	InstrUnbox
	// InstrRetain atomically increments a heap value's reference count.
	InstrRetain
	// InstrRelease atomically decrements a heap value's reference count.
	InstrRelease
	// InstrGasCharge deducts a static cost; exhaustion panics.
	InstrGasCharge
	// InstrGasWithdraw deducts a cost when available; Ok reports success.
	InstrGasWithdraw
	// InstrGasRedeposit returns unused gas to the counter.
	InstrGasRedeposit
	// InstrCall invokes another compiled function.
	InstrCall
)

// FeltOp enumerates field arithmetic operators.
type FeltOp uint8

const (
	FeltAdd FeltOp = iota
	FeltSub
	FeltMul
	// FeltDiv multiplies by the modular inverse; a zero divisor raises the
	// division-by-zero panic at runtime.
	FeltDiv
)

// UintOp enumerates unsigned arithmetic operators.
type UintOp uint8

const (
	UintAdd UintOp = iota
	UintSub
	UintMul
)

// Instr is one lowered instruction.
type Instr struct {
	Kind InstrKind

	Const        ConstInstr
	Copy         CopyInstr
	FeltBin      FeltBinInstr
	UintBin      UintBinInstr
	IsZero       IsZeroInstr
	StructPack   StructPackInstr
	StructUnpack StructUnpackInstr
	EnumInit     EnumInitInstr
	EnumPayload  EnumPayloadInstr
	Array        ArrayInstr
	Dict         DictInstr
	Box          BoxInstr
	RC           RCInstr
	Gas          GasInstr
	Call         CallInstr
}

type ConstInstr struct {
	Dst   Reg
	Type  types.TypeID
	Value *big.Int
}

type CopyInstr struct {
	Dst Reg
	Src Reg
}

type FeltBinInstr struct {
	Op  FeltOp
	Dst Reg
	A   Reg
	B   Reg
}

type UintBinInstr struct {
	Op    UintOp
	Width types.Width
	Dst   Reg
	// Carry receives overflow/borrow as a bool; NoReg discards it.
	Carry Reg
	A     Reg
	B     Reg
}

type IsZeroInstr struct {
	Dst Reg
	Src Reg
}

type StructPackInstr struct {
	Dst    Reg
	Type   types.TypeID
	Fields []Reg
}

type StructUnpackInstr struct {
	Dsts []Reg
	Src  Reg
}

type EnumInitInstr struct {
	Dst     Reg
	Type    types.TypeID
	Variant int
	Payload Reg
}

type EnumPayloadInstr struct {
	Dst     Reg
	Src     Reg
	Variant int
}

// ArrayInstr covers all array operations; unused fields are NoReg.
type ArrayInstr struct {
	Elem  types.TypeID
	Dst   Reg
	Ok    Reg // InstrArrayPop: non-empty flag
	Arr   Reg
	Index Reg
	Value Reg
}

// DictInstr covers all dictionary operations; unused fields are NoReg.
type DictInstr struct {
	Value types.TypeID
	Dst   Reg
	Dict  Reg
	Key   Reg
	Val   Reg
}

type BoxInstr struct {
	Dst Reg
	Src Reg
}

type RCInstr struct {
	Src Reg
}

type GasInstr struct {
	Amount uint64
	Ok     Reg // InstrGasWithdraw only
}

type CallInstr struct {
	Callee string
	Dsts   []Reg
	Args   []Reg
}
