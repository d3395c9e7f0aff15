package lower

import (
	"fmt"

	"tern/internal/native"
	"tern/internal/rt"
)

func (r *Registry) registerFelt() {
	r.Register("felt_const", lowerFeltConst)
	r.Register("felt_add", lowerFeltBin(native.FeltAdd))
	r.Register("felt_sub", lowerFeltBin(native.FeltSub))
	r.Register("felt_mul", lowerFeltBin(native.FeltMul))
	r.Register("felt_div", lowerFeltBin(native.FeltDiv))
	r.Register("felt_is_zero", lowerFeltIsZero)
}

func lowerFeltConst(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	lit, err := fc.genericValue(inv, 0)
	if err != nil {
		return err
	}
	v, err := rt.ParseFelt(lit)
	if err != nil {
		return fmt.Errorf("felt_const: %v", err)
	}
	fc.emit(native.Instr{Kind: native.InstrConst, Const: native.ConstInstr{
		Dst:   fc.define(inv, 0),
		Type:  inv.sig.Outputs[0],
		Value: v,
	}})
	return nil
}

func lowerFeltBin(op native.FeltOp) Handler {
	return func(fc *funcLowerer, inv *invocation) error {
		if err := fc.wantStraightLine(inv); err != nil {
			return err
		}
		fc.emit(native.Instr{Kind: native.InstrFeltBin, FeltBin: native.FeltBinInstr{
			Op:  op,
			Dst: fc.define(inv, 0),
			A:   inv.in[0],
			B:   inv.in[1],
		}})
		return nil
	}
}

// lowerFeltIsZero tests the input and branches: target 0 for zero (no
// payload), target 1 for non-zero, which receives the input re-typed as
// its non-zero refinement.
func lowerFeltIsZero(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantBranches(inv, 2); err != nil {
		return err
	}
	cond := fc.newReg(fc.res.Types.Builtins().Bool)
	fc.emit(native.Instr{Kind: native.InstrIsZero, IsZero: native.IsZeroInstr{
		Dst: cond,
		Src: inv.in[0],
	}})

	zero := fc.branchEdge(inv, 0)
	nonzero := fc.branchEdge(inv, 1)
	out := fc.edgeDefine(inv, nonzero, 0)
	fc.emitTo(nonzero.block, native.Instr{Kind: native.InstrCopy, Copy: native.CopyInstr{
		Dst: out,
		Src: inv.in[0],
	}})

	fc.terminate(native.Terminator{Kind: native.TermBrBool, BrBool: native.BrBoolTerm{
		Cond:  cond,
		True:  zero.block,
		False: nonzero.block,
	}})
	return nil
}
