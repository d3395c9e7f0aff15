package rt

import (
	"fmt"
	"math/big"
)

// prime is the field modulus: 2^251 + 17*2^192 + 1.
var prime = func() *big.Int {
	p, ok := new(big.Int).SetString(
		"3618502788666131213697322783095070105623107215331596699973092056135872020481", 10)
	if !ok {
		panic("rt: bad field modulus literal")
	}
	return p
}()

// Prime returns a copy of the field modulus.
func Prime() *big.Int {
	return new(big.Int).Set(prime)
}

// FeltMod reduces v into the canonical range [0, prime).
func FeltMod(v *big.Int) *big.Int {
	out := new(big.Int).Mod(v, prime)
	if out.Sign() < 0 {
		out.Add(out, prime)
	}
	return out
}

// FeltAdd returns (a + b) mod prime.
func FeltAdd(a, b *big.Int) *big.Int {
	return FeltMod(new(big.Int).Add(a, b))
}

// FeltSub returns (a - b) mod prime.
func FeltSub(a, b *big.Int) *big.Int {
	return FeltMod(new(big.Int).Sub(a, b))
}

// FeltMul returns (a * b) mod prime.
func FeltMul(a, b *big.Int) *big.Int {
	return FeltMod(new(big.Int).Mul(a, b))
}

// FeltDiv returns a * b^-1 mod prime, or a division-by-zero panic when b
// reduces to zero.
func FeltDiv(a, b *big.Int) (*big.Int, *Panic) {
	bm := FeltMod(b)
	if bm.Sign() == 0 {
		return nil, NewPanic(PanicDivByZero, "felt division by zero")
	}
	inv := new(big.Int).ModInverse(bm, prime)
	return FeltMul(a, inv), nil
}

// ParseFelt parses a decimal felt literal and reduces it into the field.
func ParseFelt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad felt literal %q", s)
	}
	return FeltMod(v), nil
}
