package lower

import (
	"fmt"
	"strconv"

	"tern/internal/native"
	"tern/internal/rt"
)

func (r *Registry) registerFlow() {
	r.Register("dup", lowerDup)
	r.Register("drop", lowerDrop)
	r.Register("rename", lowerRename)
	r.Register("jump", lowerJump)
	r.Register("branch_align", lowerBranchAlign)
	r.Register("function_call", lowerFunctionCall)
	r.Register("withdraw_gas", lowerWithdrawGas)
	r.Register("redeposit_gas", lowerRedepositGas)
	r.Register("panic_with", lowerPanicWith)
}

// lowerDup is the only way a value becomes usable twice. Heap-typed
// duplicates share the backing object, so the reference count is bumped.
func lowerDup(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	if fc.res.Types.IsHeap(inv.sig.Inputs[0]) {
		fc.emit(native.Instr{Kind: native.InstrRetain, RC: native.RCInstr{Src: inv.in[0]}})
	}
	fc.defineAt(inv, 0, inv.in[0])
	fc.emit(native.Instr{Kind: native.InstrCopy, Copy: native.CopyInstr{
		Dst: fc.define(inv, 1),
		Src: inv.in[0],
	}})
	return nil
}

func lowerDrop(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	if fc.res.Types.IsHeap(inv.sig.Inputs[0]) {
		fc.emit(native.Instr{Kind: native.InstrRelease, RC: native.RCInstr{Src: inv.in[0]}})
	}
	return nil
}

// lowerRename rebinds a value under a new identity without moving it.
func lowerRename(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	fc.defineAt(inv, 0, inv.in[0])
	return nil
}

func lowerJump(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantBranches(inv, 1); err != nil {
		return err
	}
	e := fc.branchEdge(inv, 0)
	fc.terminate(native.Terminator{Kind: native.TermGoto, Goto: native.GotoTerm{Target: e.block}})
	return nil
}

// lowerBranchAlign is a cost-equalization marker with no runtime effect;
// its price was already charged by the metering pass.
func lowerBranchAlign(fc *funcLowerer, inv *invocation) error {
	return fc.wantStraightLine(inv)
}

func lowerFunctionCall(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	callee, err := fc.genericValue(inv, 0)
	if err != nil {
		return err
	}
	if _, ok := fc.res.FuncByName[callee]; !ok {
		return fmt.Errorf("function_call references undeclared function %q", callee)
	}
	dsts := make([]native.Reg, len(inv.st.Outputs))
	for i := range inv.st.Outputs {
		dsts[i] = fc.define(inv, i)
	}
	fc.emit(native.Instr{Kind: native.InstrCall, Call: native.CallInstr{
		Callee: callee,
		Dsts:   dsts,
		Args:   inv.in,
	}})
	return nil
}

// lowerWithdrawGas deducts the amount named by its generic argument when
// the counter covers it: target 0 on success, target 1 on failure. Failure
// leaves the counter untouched so the failure path can still run.
func lowerWithdrawGas(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantBranches(inv, 2); err != nil {
		return err
	}
	amount, err := fc.gasAmount(inv)
	if err != nil {
		return err
	}
	ok := fc.newReg(fc.res.Types.Builtins().Bool)
	fc.emit(native.Instr{Kind: native.InstrGasWithdraw, Gas: native.GasInstr{
		Amount: amount,
		Ok:     ok,
	}})
	success := fc.branchEdge(inv, 0)
	failure := fc.branchEdge(inv, 1)
	fc.terminate(native.Terminator{Kind: native.TermBrBool, BrBool: native.BrBoolTerm{
		Cond:  ok,
		True:  success.block,
		False: failure.block,
	}})
	return nil
}

func lowerRedepositGas(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	amount, err := fc.gasAmount(inv)
	if err != nil {
		return err
	}
	fc.emit(native.Instr{Kind: native.InstrGasRedeposit, Gas: native.GasInstr{
		Amount: amount,
		Ok:     native.NoReg,
	}})
	return nil
}

func (fc *funcLowerer) gasAmount(inv *invocation) (uint64, error) {
	lit, err := fc.genericValue(inv, 0)
	if err != nil {
		return 0, err
	}
	amount, err := strconv.ParseUint(lit, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%q amount %q is not a non-negative integer", inv.sig.Name, lit)
	}
	return amount, nil
}

// lowerPanicWith terminates the current block with an explicit panic
// carrying the input value as payload.
func lowerPanicWith(fc *funcLowerer, inv *invocation) error {
	if len(inv.st.Branches) != 0 {
		return fmt.Errorf("panic_with does not continue, statement declares %d targets", len(inv.st.Branches))
	}
	fc.checkNoLeaks(inv.loc)
	payload := native.NoReg
	if len(inv.in) == 1 {
		payload = inv.in[0]
	}
	fc.terminate(native.Terminator{Kind: native.TermPanic, Panic: native.PanicTerm{
		Code:    uint32(rt.PanicExplicit),
		Payload: payload,
	}})
	return nil
}
