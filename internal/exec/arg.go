// Package exec is the invocation layer: it marshals caller-supplied
// arguments across the native calling boundary, drives a compiled entry
// point, and decodes the result into a normal return or a panic payload.
package exec

import (
	"math/big"

	"tern/internal/rt"
)

// ArgKind identifies the wire shape of one argument or result slot.
type ArgKind uint8

const (
	ArgUnit ArgKind = iota
	ArgBool
	ArgUint
	// ArgFelt is a field element as a fixed 32-byte little-endian encoding.
	ArgFelt
	ArgStruct
	// ArgEnum carries a variant ordinal plus that variant's payload.
	ArgEnum
	// ArgArray is passed as header plus elements; the engine materializes
	// the backing region on its own heap.
	ArgArray
	// ArgDict is passed as its entry list in key order.
	ArgDict
	ArgBox
)

// Arg is one value crossing the invocation boundary, in either direction.
// Composite shapes nest.
type Arg struct {
	Kind ArgKind

	Bool    bool
	U64     uint64
	Felt    [32]byte // little-endian
	Fields  []Arg    // ArgStruct
	Variant int      // ArgEnum
	Payload *Arg     // ArgEnum, ArgBox
	Elems   []Arg    // ArgArray
	Entries []DictEntry
}

// DictEntry is one key binding of a dictionary argument or result.
type DictEntry struct {
	Key [32]byte // little-endian felt
	Val Arg
}

// FeltArg encodes a field element argument. Values are reduced into the
// field before encoding.
func FeltArg(v *big.Int) Arg {
	a := Arg{Kind: ArgFelt}
	putFelt(&a.Felt, rt.FeltMod(v))
	return a
}

// FeltArgUint is shorthand for small field-element literals.
func FeltArgUint(v uint64) Arg {
	return FeltArg(new(big.Int).SetUint64(v))
}

func UintArg(v uint64) Arg {
	return Arg{Kind: ArgUint, U64: v}
}

func BoolArg(v bool) Arg {
	return Arg{Kind: ArgBool, Bool: v}
}

func UnitArg() Arg {
	return Arg{Kind: ArgUnit}
}

func StructArg(fields ...Arg) Arg {
	return Arg{Kind: ArgStruct, Fields: fields}
}

func EnumArg(variant int, payload Arg) Arg {
	return Arg{Kind: ArgEnum, Variant: variant, Payload: &payload}
}

func ArrayArg(elems ...Arg) Arg {
	return Arg{Kind: ArgArray, Elems: elems}
}

func DictArg(entries ...DictEntry) Arg {
	return Arg{Kind: ArgDict, Entries: entries}
}

// Bind builds one dictionary entry; the key is reduced into the field.
func Bind(key *big.Int, val Arg) DictEntry {
	var e DictEntry
	putFelt(&e.Key, rt.FeltMod(key))
	e.Val = val
	return e
}

// FeltOf decodes the 32-byte little-endian encoding back into an integer.
func (a *Arg) FeltOf() *big.Int {
	return feltOf(&a.Felt)
}

func putFelt(dst *[32]byte, v *big.Int) {
	var buf [32]byte
	b := v.Bytes() // big-endian
	copy(buf[32-len(b):], b)
	for i := 0; i < 32; i++ {
		dst[i] = buf[31-i]
	}
}

func feltOf(src *[32]byte) *big.Int {
	var buf [32]byte
	for i := 0; i < 32; i++ {
		buf[i] = src[31-i]
	}
	return new(big.Int).SetBytes(buf[:])
}
