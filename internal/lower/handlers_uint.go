package lower

import (
	"fmt"
	"math/big"

	"tern/internal/native"
	"tern/internal/types"
)

func (r *Registry) registerUint() {
	for _, w := range []types.Width{8, 16, 32, 64, 128} {
		prefix := fmt.Sprintf("u%d", w)
		r.Register(prefix+"_const", lowerUintConst)
		r.Register(prefix+"_overflowing_add", lowerUintOverflowing(native.UintAdd))
		r.Register(prefix+"_overflowing_sub", lowerUintOverflowing(native.UintSub))
		r.Register(prefix+"_mul", lowerUintMul)
	}
}

func (fc *funcLowerer) uintWidth(t types.TypeID) (types.Width, error) {
	tt, ok := fc.res.Types.Lookup(t)
	if !ok || tt.Kind != types.KindUint {
		return 0, fmt.Errorf("operand type %s is not an unsigned integer", fc.res.Types.Label(t))
	}
	return tt.Width, nil
}

func lowerUintConst(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	lit, err := fc.genericValue(inv, 0)
	if err != nil {
		return err
	}
	w, err := fc.uintWidth(inv.sig.Outputs[0])
	if err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(lit, 0)
	if !ok || v.Sign() < 0 || v.BitLen() > int(w) {
		return fmt.Errorf("literal %q does not fit in u%d", lit, w)
	}
	fc.emit(native.Instr{Kind: native.InstrConst, Const: native.ConstInstr{
		Dst:   fc.define(inv, 0),
		Type:  inv.sig.Outputs[0],
		Value: v,
	}})
	return nil
}

// lowerUintOverflowing computes the wrapped result and a carry flag, then
// branches: target 0 in range, target 1 overflowed. Both branches receive
// the wrapped result.
func lowerUintOverflowing(op native.UintOp) Handler {
	return func(fc *funcLowerer, inv *invocation) error {
		if err := fc.wantBranches(inv, 2); err != nil {
			return err
		}
		w, err := fc.uintWidth(inv.sig.Inputs[0])
		if err != nil {
			return err
		}
		result := fc.newReg(inv.sig.Outputs[0])
		carry := fc.newReg(fc.res.Types.Builtins().Bool)
		fc.emit(native.Instr{Kind: native.InstrUintBin, UintBin: native.UintBinInstr{
			Op:    op,
			Width: w,
			Dst:   result,
			Carry: carry,
			A:     inv.in[0],
			B:     inv.in[1],
		}})

		ok := fc.branchEdge(inv, 0)
		over := fc.branchEdge(inv, 1)
		for _, e := range []*edge{ok, over} {
			fc.emitTo(e.block, native.Instr{Kind: native.InstrCopy, Copy: native.CopyInstr{
				Dst: fc.edgeDefine(inv, e, 0),
				Src: result,
			}})
		}
		fc.terminate(native.Terminator{Kind: native.TermBrBool, BrBool: native.BrBoolTerm{
			Cond:  carry,
			True:  over.block,
			False: ok.block,
		}})
		return nil
	}
}

func lowerUintMul(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	w, err := fc.uintWidth(inv.sig.Inputs[0])
	if err != nil {
		return err
	}
	fc.emit(native.Instr{Kind: native.InstrUintBin, UintBin: native.UintBinInstr{
		Op:    native.UintMul,
		Width: w,
		Dst:   fc.define(inv, 0),
		Carry: native.NoReg,
		A:     inv.in[0],
		B:     inv.in[1],
	}})
	return nil
}
