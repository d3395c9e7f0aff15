package rt

import (
	"fmt"
	"math/big"
)

// PanicCode distinguishes runtime failure classes. Panics are first-class
// results of execution, not host-level errors.
type PanicCode uint32

const (
	PanicNone PanicCode = iota
	// PanicDivByZero is raised by field division with a zero divisor.
	PanicDivByZero
	// PanicOutOfGas is raised when the gas counter is exhausted.
	PanicOutOfGas
	// PanicOutOfMemory is raised when a heap allocation exceeds the
	// configured memory budget.
	PanicOutOfMemory
	// PanicIndexOutOfRange is raised by a failed array bounds check.
	PanicIndexOutOfRange
	// PanicAssertFailed is raised by explicit assertion libfuncs.
	PanicAssertFailed
	// PanicInvalidDictAccess is raised on dictionary misuse (e.g. squash
	// of an already-squashed dictionary).
	PanicInvalidDictAccess
	// PanicExplicit is raised by the panic_with libfunc.
	PanicExplicit
)

func (c PanicCode) String() string {
	switch c {
	case PanicNone:
		return "none"
	case PanicDivByZero:
		return "division by zero"
	case PanicOutOfGas:
		return "out of gas"
	case PanicOutOfMemory:
		return "out of memory"
	case PanicIndexOutOfRange:
		return "index out of range"
	case PanicAssertFailed:
		return "assertion failed"
	case PanicInvalidDictAccess:
		return "invalid dict access"
	case PanicExplicit:
		return "panic"
	default:
		return fmt.Sprintf("PanicCode(%d)", c)
	}
}

// Panic is a constructed panic value: a code plus a felt payload that
// propagates to the invocation boundary unchanged.
type Panic struct {
	Code  PanicCode
	Msg   string
	Felts []*big.Int
}

// NewPanic constructs a panic value with no payload felts.
func NewPanic(code PanicCode, msg string) *Panic {
	return &Panic{Code: code, Msg: msg}
}

// WithFelt appends a payload felt.
func (p *Panic) WithFelt(v *big.Int) *Panic {
	p.Felts = append(p.Felts, v)
	return p
}

func (p *Panic) String() string {
	if p == nil {
		return "<nil>"
	}
	if p.Msg == "" {
		return p.Code.String()
	}
	return fmt.Sprintf("%s: %s", p.Code, p.Msg)
}
