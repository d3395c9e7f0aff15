package testkit

import (
	"fmt"

	"tern/internal/native"
)

// CheckModuleInvariants runs structural checks on a lowered module:
// 1) every function's entry block exists and every block is terminated
// 2) every register reference is within the function's frame
// 3) every branch target is within the function's block list
// 4) every descriptor symbol resolves through the module index
func CheckModuleInvariants(m *native.Module) error {
	if m == nil {
		return fmt.Errorf("nil module")
	}
	if len(m.Funcs) != len(m.Descs) {
		return fmt.Errorf("function/descriptor count mismatch: %d vs %d", len(m.Funcs), len(m.Descs))
	}
	for i, fn := range m.Funcs {
		if fn == nil {
			return fmt.Errorf("function %d is nil", i)
		}
		if err := checkFunc(fn); err != nil {
			return fmt.Errorf("%s: %w", fn.Name, err)
		}
		if idx, ok := m.ByName[m.Descs[i].Symbol]; !ok || idx != i {
			return fmt.Errorf("%s: symbol %q not indexed", fn.Name, m.Descs[i].Symbol)
		}
	}
	return nil
}

func checkFunc(fn *native.Func) error {
	if int(fn.Entry) >= len(fn.Blocks) {
		return fmt.Errorf("entry bb%d out of range", fn.Entry)
	}
	if fn.NumParams > len(fn.RegTypes) {
		return fmt.Errorf("%d params but only %d registers", fn.NumParams, len(fn.RegTypes))
	}
	checkReg := func(r native.Reg) error {
		if r != native.NoReg && int(r) >= len(fn.RegTypes) {
			return fmt.Errorf("register r%d out of range", r)
		}
		return nil
	}
	checkBlock := func(b native.BlockID) error {
		if int(b) >= len(fn.Blocks) {
			return fmt.Errorf("branch to bb%d out of range", b)
		}
		return nil
	}

	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		if !blk.Terminated() {
			return fmt.Errorf("bb%d has no terminator", bi)
		}
		for ii := range blk.Instrs {
			for _, r := range instrRegs(&blk.Instrs[ii]) {
				if err := checkReg(r); err != nil {
					return fmt.Errorf("bb%d instr %d: %w", bi, ii, err)
				}
			}
		}
		switch blk.Term.Kind {
		case native.TermGoto:
			if err := checkBlock(blk.Term.Goto.Target); err != nil {
				return fmt.Errorf("bb%d: %w", bi, err)
			}
		case native.TermBrBool:
			t := &blk.Term.BrBool
			if err := checkReg(t.Cond); err != nil {
				return fmt.Errorf("bb%d: %w", bi, err)
			}
			for _, tgt := range []native.BlockID{t.True, t.False} {
				if err := checkBlock(tgt); err != nil {
					return fmt.Errorf("bb%d: %w", bi, err)
				}
			}
		case native.TermBrTag:
			t := &blk.Term.BrTag
			if err := checkReg(t.Src); err != nil {
				return fmt.Errorf("bb%d: %w", bi, err)
			}
			for _, tgt := range t.Cases {
				if err := checkBlock(tgt); err != nil {
					return fmt.Errorf("bb%d: %w", bi, err)
				}
			}
		case native.TermReturn:
			for _, r := range blk.Term.Return.Values {
				if err := checkReg(r); err != nil {
					return fmt.Errorf("bb%d: %w", bi, err)
				}
			}
		case native.TermPanic:
			if err := checkReg(blk.Term.Panic.Payload); err != nil {
				return fmt.Errorf("bb%d: %w", bi, err)
			}
		}
	}
	return nil
}

func instrRegs(ins *native.Instr) []native.Reg {
	switch ins.Kind {
	case native.InstrConst:
		return []native.Reg{ins.Const.Dst}
	case native.InstrCopy:
		return []native.Reg{ins.Copy.Dst, ins.Copy.Src}
	case native.InstrFeltBin:
		return []native.Reg{ins.FeltBin.Dst, ins.FeltBin.A, ins.FeltBin.B}
	case native.InstrUintBin:
		return []native.Reg{ins.UintBin.Dst, ins.UintBin.Carry, ins.UintBin.A, ins.UintBin.B}
	case native.InstrIsZero:
		return []native.Reg{ins.IsZero.Dst, ins.IsZero.Src}
	case native.InstrStructPack:
		return append([]native.Reg{ins.StructPack.Dst}, ins.StructPack.Fields...)
	case native.InstrStructUnpack:
		return append([]native.Reg{ins.StructUnpack.Src}, ins.StructUnpack.Dsts...)
	case native.InstrEnumInit:
		return []native.Reg{ins.EnumInit.Dst, ins.EnumInit.Payload}
	case native.InstrEnumPayload:
		return []native.Reg{ins.EnumPayload.Dst, ins.EnumPayload.Src}
	case native.InstrArrayNew, native.InstrArrayAppend, native.InstrArrayLen,
		native.InstrArrayGet, native.InstrArrayPop:
		a := &ins.Array
		return []native.Reg{a.Dst, a.Ok, a.Arr, a.Index, a.Value}
	case native.InstrDictNew, native.InstrDictGet, native.InstrDictInsert, native.InstrDictSquash:
		d := &ins.Dict
		return []native.Reg{d.Dst, d.Dict, d.Key, d.Val}
	case native.InstrBoxNew, native.InstrUnbox:
		return []native.Reg{ins.Box.Dst, ins.Box.Src}
	case native.InstrRetain, native.InstrRelease:
		return []native.Reg{ins.RC.Src}
	case native.InstrGasCharge, native.InstrGasWithdraw, native.InstrGasRedeposit:
		return []native.Reg{ins.Gas.Ok}
	case native.InstrCall:
		return append(append([]native.Reg{}, ins.Call.Dsts...), ins.Call.Args...)
	}
	return nil
}
