package lower_test

import (
	"testing"

	"tern/internal/diag"
	"tern/internal/layout"
	"tern/internal/lower"
	"tern/internal/native"
	"tern/internal/sir"
	tk "tern/internal/testkit"
)

func lowerProgram(t *testing.T, prog *sir.Program) (*native.Module, *diag.Bag, error) {
	t.Helper()
	bag := diag.NewBag(32)
	res, err := sir.Resolve(prog, bag)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	mod, err := lower.Program(res, lower.Options{Target: layout.X86_64LinuxGNU(), Workers: 1}, bag)
	return mod, bag, err
}

func TestLowerStraightLineAdd(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("add", "felt").Param(0, "felt").Param(1, "felt")
	entry := fb.Block()
	fb.Invoke(entry, add, tk.Vals(0, 1), tk.Vals(2))
	fb.Return(entry, 2)

	mod, _, err := lowerProgram(t, fb.Done().Build())
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if err := tk.CheckModuleInvariants(mod); err != nil {
		t.Fatalf("invariants: %v", err)
	}

	fn, desc, ok := mod.Lookup("add")
	if !ok {
		t.Fatal("symbol add missing")
	}
	if fn.NumParams != 2 || len(desc.Params) != 2 || len(desc.Results) != 1 {
		t.Errorf("descriptor shapes: %d params, %d param layouts, %d results",
			fn.NumParams, len(desc.Params), len(desc.Results))
	}
	if !desc.HasGasBound || desc.GasBound != 100 {
		t.Errorf("gas bound = %d (has=%v), want 100", desc.GasBound, desc.HasGasBound)
	}

	// The meter charge is emitted ahead of the operation it prices.
	first := fn.Blocks[fn.Entry].Instrs[0]
	if first.Kind != native.InstrGasCharge || first.Gas.Amount != 100 {
		t.Errorf("entry starts with %v, want a 100-gas charge", first.Kind)
	}
}

func TestLowerBranchingIsZero(t *testing.T) {
	b := tk.NewProgram().
		Type("felt", "felt").
		ElemType("nz", "nonzero", "felt")
	isZero := b.Libfunc("felt_is_zero", nil, []string{"felt"}, []string{"nz"})
	drop := b.Libfunc("drop", []sir.GenericArg{tk.TypeArg("nz")}, []string{"nz"}, nil)
	c0 := b.Libfunc("felt_const", []sir.GenericArg{tk.ValueArg("0")}, nil, []string{"felt"})
	c1 := b.Libfunc("felt_const", []sir.GenericArg{tk.ValueArg("1")}, nil, []string{"felt"})

	fb := b.Func("sign", "felt").Param(0, "felt")
	entry := fb.Block()
	zero := fb.Block()
	nonzero := fb.Block()
	fb.Invoke(entry, isZero, tk.Vals(0), tk.Vals(1), tk.To(zero), tk.To(nonzero, 1))
	fb.Invoke(zero, c0, nil, tk.Vals(2))
	fb.Return(zero, 2)
	fb.Invoke(nonzero, drop, tk.Vals(1), nil)
	fb.Invoke(nonzero, c1, nil, tk.Vals(3))
	fb.Return(nonzero, 3)

	mod, _, err := lowerProgram(t, fb.Done().Build())
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if err := tk.CheckModuleInvariants(mod); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	fn, desc, _ := mod.Lookup("sign")
	if !desc.HasGasBound {
		t.Error("loop-free function lost its gas bound")
	}
	// Entry, two targets and two edge trampolines at minimum.
	if len(fn.Blocks) < 5 {
		t.Errorf("lowered to %d blocks, want at least 5", len(fn.Blocks))
	}
}

func TestLowerDoubleConsume(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("f", "felt").Param(0, "felt")
	entry := fb.Block()
	fb.Invoke(entry, add, tk.Vals(0, 0), tk.Vals(1))
	fb.Return(entry, 1)

	_, bag, err := lowerProgram(t, fb.Done().Build())
	if err == nil {
		t.Fatal("lowering accepted a double consume")
	}
	if !hasCode(bag, diag.LowerConsumedValue) {
		t.Errorf("diagnostics %v lack LowerConsumedValue", bag.Items())
	}
}

func TestLowerUnknownValue(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("f", "felt").Param(0, "felt")
	entry := fb.Block()
	fb.Invoke(entry, add, tk.Vals(0, 9), tk.Vals(1))
	fb.Return(entry, 1)

	_, bag, err := lowerProgram(t, fb.Done().Build())
	if err == nil || !hasCode(bag, diag.LowerUnknownValue) {
		t.Errorf("err=%v diags=%v, want LowerUnknownValue", err, bag.Items())
	}
}

func TestLowerLeakedValue(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	fb := b.Func("f", "felt").Param(0, "felt").Param(1, "felt")
	entry := fb.Block()
	fb.Return(entry, 0)

	_, bag, err := lowerProgram(t, fb.Done().Build())
	if err == nil || !hasCode(bag, diag.LowerLeakedValue) {
		t.Errorf("err=%v diags=%v, want LowerLeakedValue", err, bag.Items())
	}
}

func TestLowerArityMismatch(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("f", "felt").Param(0, "felt")
	entry := fb.Block()
	fb.Invoke(entry, add, tk.Vals(0), tk.Vals(1))
	fb.Return(entry, 1)

	_, bag, err := lowerProgram(t, fb.Done().Build())
	if err == nil || !hasCode(bag, diag.LowerArityMismatch) {
		t.Errorf("err=%v diags=%v, want LowerArityMismatch", err, bag.Items())
	}
}

func TestLowerTypeMismatch(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt").Type("u64", "u64")
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("f", "felt").Param(0, "felt").Param(1, "u64")
	entry := fb.Block()
	fb.Invoke(entry, add, tk.Vals(0, 1), tk.Vals(2))
	fb.Return(entry, 2)

	_, bag, err := lowerProgram(t, fb.Done().Build())
	if err == nil || !hasCode(bag, diag.LowerTypeMismatch) {
		t.Errorf("err=%v diags=%v, want LowerTypeMismatch", err, bag.Items())
	}
}

func TestLowerBranchArityFixedByFirstArrival(t *testing.T) {
	b := tk.NewProgram().
		Type("felt", "felt").
		ElemType("nz", "nonzero", "felt")
	isZero := b.Libfunc("felt_is_zero", nil, []string{"felt"}, []string{"nz"})

	// Both branches target the same block; the zero edge passes nothing,
	// the nonzero edge passes its refinement output.
	fb := b.Func("f", "felt").Param(0, "felt")
	entry := fb.Block()
	join := fb.Block()
	fb.Invoke(entry, isZero, tk.Vals(0), tk.Vals(1), tk.To(join), tk.To(join, 1))
	fb.Return(join, 1)

	_, bag, err := lowerProgram(t, fb.Done().Build())
	if err == nil || !hasCode(bag, diag.LowerBranchMismatch) {
		t.Errorf("err=%v diags=%v, want LowerBranchMismatch", err, bag.Items())
	}
}

func TestLowerBranchMustCarrySurvivors(t *testing.T) {
	b := tk.NewProgram().
		Type("felt", "felt").
		ElemType("nz", "nonzero", "felt")
	isZero := b.Libfunc("felt_is_zero", nil, []string{"felt"}, []string{"nz"})

	// Value 1 survives the branch but the zero edge does not pass it on.
	fb := b.Func("f", "felt").Param(0, "felt").Param(1, "felt")
	entry := fb.Block()
	zero := fb.Block()
	nonzero := fb.Block()
	fb.Invoke(entry, isZero, tk.Vals(0), tk.Vals(2), tk.To(zero), tk.To(nonzero, 1, 2))
	fb.Return(zero)
	fb.Return(nonzero, 1)

	_, bag, err := lowerProgram(t, fb.Done().Build())
	if err == nil || !hasCode(bag, diag.LowerLeakedValue) {
		t.Errorf("err=%v diags=%v, want LowerLeakedValue", err, bag.Items())
	}
}

func TestLowerUnsealedBlock(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("f", "felt").Param(0, "felt").Param(1, "felt")
	entry := fb.Block()
	fb.Invoke(entry, add, tk.Vals(0, 1), tk.Vals(2))

	_, bag, err := lowerProgram(t, fb.Done().Build())
	if err == nil || !hasCode(bag, diag.LowerUnsealedBlock) {
		t.Errorf("err=%v diags=%v, want LowerUnsealedBlock", err, bag.Items())
	}
}

func TestLowerUnreachableBlockWarns(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("f", "felt").Param(0, "felt").Param(1, "felt")
	entry := fb.Block()
	fb.Block() // never targeted
	fb.Invoke(entry, add, tk.Vals(0, 1), tk.Vals(2))
	fb.Return(entry, 2)

	mod, bag, err := lowerProgram(t, fb.Done().Build())
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if mod == nil || !hasCode(bag, diag.LowerUnreachableBlock) {
		t.Errorf("diags=%v, want an unreachable-block warning without failure", bag.Items())
	}
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}
