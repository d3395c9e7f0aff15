package exec_test

import (
	"errors"
	"math/big"
	"testing"

	"tern/internal/diag"
	"tern/internal/exec"
	"tern/internal/layout"
	"tern/internal/lower"
	"tern/internal/rt"
	"tern/internal/sir"
	tk "tern/internal/testkit"
)

func compile(t *testing.T, prog *sir.Program) *exec.Engine {
	t.Helper()
	bag := diag.NewBag(32)
	res, err := sir.Resolve(prog, bag)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	mod, err := lower.Program(res, lower.Options{Target: layout.X86_64LinuxGNU()}, bag)
	if err != nil {
		t.Fatalf("Program: %v\n%v", err, bag.Items())
	}
	return exec.NewEngine(mod, res.Types)
}

func addEngine(t *testing.T) *exec.Engine {
	b := tk.NewProgram().Type("felt", "felt")
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("add", "felt").Param(0, "felt").Param(1, "felt")
	entry := fb.Block()
	fb.Invoke(entry, add, tk.Vals(0, 1), tk.Vals(2))
	fb.Return(entry, 2)
	return compile(t, fb.Done().Build())
}

func resultFelt(t *testing.T, out *exec.Outcome) *big.Int {
	t.Helper()
	if out.Panicked() {
		t.Fatalf("invocation panicked: %v", out.Panic)
	}
	if len(out.Result) != 1 || out.Result[0].Kind != exec.ArgFelt {
		t.Fatalf("result = %+v, want one felt", out.Result)
	}
	return out.Result[0].FeltOf()
}

func TestInvokeAdd(t *testing.T) {
	eng := addEngine(t)
	out, err := eng.Invoke("add", []exec.Arg{exec.FeltArgUint(3), exec.FeltArgUint(4)}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := resultFelt(t, out); got.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("add(3, 4) = %v, want 7", got)
	}
	if out.GasUsed != 100 || out.GasLeft != 9_900 {
		t.Errorf("gas used %d left %d, want 100 and 9900", out.GasUsed, out.GasLeft)
	}
}

func TestInvokeOutOfGas(t *testing.T) {
	eng := addEngine(t)
	out, err := eng.Invoke("add", []exec.Arg{exec.FeltArgUint(3), exec.FeltArgUint(4)}, 50)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !out.Panicked() || out.Panic.Code != rt.PanicOutOfGas {
		t.Errorf("outcome = %+v, want OutOfGas panic", out)
	}
}

func TestInvokeUnknownSymbol(t *testing.T) {
	eng := addEngine(t)
	if _, err := eng.Invoke("missing", nil, 100); err == nil {
		t.Fatal("Invoke accepted an unknown symbol")
	}
}

func TestInvokeArgumentShapeViolation(t *testing.T) {
	eng := addEngine(t)

	_, err := eng.Invoke("add", []exec.Arg{exec.BoolArg(true), exec.FeltArgUint(4)}, 1_000)
	var ie *exec.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("shape violation gave %v, want InvocationError", err)
	}

	_, err = eng.Invoke("add", []exec.Arg{exec.FeltArgUint(3)}, 1_000)
	if !errors.As(err, &ie) {
		t.Fatalf("arity violation gave %v, want InvocationError", err)
	}
}

func TestFeltDivisionByZeroPanics(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	div := b.Libfunc("felt_div", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("div", "felt").Param(0, "felt").Param(1, "felt")
	entry := fb.Block()
	fb.Invoke(entry, div, tk.Vals(0, 1), tk.Vals(2))
	fb.Return(entry, 2)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("div", []exec.Arg{exec.FeltArgUint(12), exec.FeltArgUint(4)}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := resultFelt(t, out); got.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("div(12, 4) = %v, want 3", got)
	}

	out, err = eng.Invoke("div", []exec.Arg{exec.FeltArgUint(7), exec.FeltArgUint(0)}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !out.Panicked() || out.Panic.Code != rt.PanicDivByZero {
		t.Errorf("div by zero gave %+v, want DivByZero panic", out)
	}
}

func TestArrayAppendEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("u64", "u64").
		ElemType("arr", "array", "u64")
	c7 := b.Libfunc("u64_const", []sir.GenericArg{tk.ValueArg("7")}, nil, []string{"u64"})
	app := b.Libfunc("array_append", nil, []string{"arr", "u64"}, []string{"arr"})
	fb := b.Func("push7", "arr").Param(0, "arr")
	entry := fb.Block()
	fb.Invoke(entry, c7, nil, tk.Vals(1))
	fb.Invoke(entry, app, tk.Vals(0, 1), tk.Vals(2))
	fb.Return(entry, 2)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("push7",
		[]exec.Arg{exec.ArrayArg(exec.UintArg(1), exec.UintArg(2))}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Panicked() {
		t.Fatalf("panicked: %v", out.Panic)
	}
	got := out.Result[0]
	if got.Kind != exec.ArgArray || len(got.Elems) != 3 {
		t.Fatalf("result = %+v, want a 3-element array", got)
	}
	for i, want := range []uint64{1, 2, 7} {
		if got.Elems[i].U64 != want {
			t.Errorf("element %d = %d, want %d", i, got.Elems[i].U64, want)
		}
	}
}

func TestArrayLenEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("u64", "u64").
		ElemType("arr", "array", "u64")
	anew := b.Libfunc("array_new", nil, nil, []string{"arr"})
	c5 := b.Libfunc("u64_const", []sir.GenericArg{tk.ValueArg("5")}, nil, []string{"u64"})
	app := b.Libfunc("array_append", nil, []string{"arr", "u64"}, []string{"arr"})
	length := b.Libfunc("array_len", nil, []string{"arr"}, []string{"arr", "u64"})
	dropA := b.Libfunc("drop", []sir.GenericArg{tk.TypeArg("arr")}, []string{"arr"}, nil)

	fb := b.Func("len3", "u64")
	entry := fb.Block()
	fb.Invoke(entry, anew, nil, tk.Vals(0))
	fb.Invoke(entry, c5, nil, tk.Vals(1))
	fb.Invoke(entry, app, tk.Vals(0, 1), tk.Vals(2))
	fb.Invoke(entry, c5, nil, tk.Vals(3))
	fb.Invoke(entry, app, tk.Vals(2, 3), tk.Vals(4))
	fb.Invoke(entry, c5, nil, tk.Vals(5))
	fb.Invoke(entry, app, tk.Vals(4, 5), tk.Vals(6))
	fb.Invoke(entry, length, tk.Vals(6), tk.Vals(7, 8))
	fb.Invoke(entry, dropA, tk.Vals(7), nil)
	fb.Return(entry, 8)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("len3", nil, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Panicked() {
		t.Fatalf("panicked: %v", out.Panic)
	}
	if out.Result[0].Kind != exec.ArgUint || out.Result[0].U64 != 3 {
		t.Errorf("len after three appends = %+v, want 3", out.Result[0])
	}
}

func TestArrayGetEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("u64", "u64").
		ElemType("arr", "array", "u64")
	idx1 := b.Libfunc("u64_const", []sir.GenericArg{tk.ValueArg("1")}, nil, []string{"u64"})
	get := b.Libfunc("array_get", nil, []string{"arr", "u64"}, []string{"arr", "u64"})
	dropA := b.Libfunc("drop", []sir.GenericArg{tk.TypeArg("arr")}, []string{"arr"}, nil)

	fb := b.Func("second", "u64").Param(0, "arr")
	entry := fb.Block()
	fb.Invoke(entry, idx1, nil, tk.Vals(1))
	fb.Invoke(entry, get, tk.Vals(0, 1), tk.Vals(2, 3))
	fb.Invoke(entry, dropA, tk.Vals(2), nil)
	fb.Return(entry, 3)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("second",
		[]exec.Arg{exec.ArrayArg(exec.UintArg(4), exec.UintArg(5), exec.UintArg(6))}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Panicked() {
		t.Fatalf("panicked: %v", out.Panic)
	}
	if out.Result[0].U64 != 5 {
		t.Errorf("second([4 5 6]) = %d, want 5", out.Result[0].U64)
	}

	out, err = eng.Invoke("second", []exec.Arg{exec.ArrayArg()}, 10_000)
	if err != nil {
		t.Fatalf("Invoke(empty): %v", err)
	}
	if !out.Panicked() || out.Panic.Code != rt.PanicIndexOutOfRange {
		t.Errorf("get past the end gave %+v, want IndexOutOfRange panic", out)
	}
}

func TestArrayPopEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("u64", "u64").
		ElemType("arr", "array", "u64")
	pop := b.Libfunc("array_pop", nil, []string{"arr"}, []string{"arr", "u64"})
	c0 := b.Libfunc("u64_const", []sir.GenericArg{tk.ValueArg("0")}, nil, []string{"u64"})
	dropA := b.Libfunc("drop", []sir.GenericArg{tk.TypeArg("arr")}, []string{"arr"}, nil)

	fb := b.Func("popfront", "u64").Param(0, "arr")
	entry := fb.Block()
	some := fb.Block()
	empty := fb.Block()
	fb.Invoke(entry, pop, tk.Vals(0), tk.Vals(1, 2), tk.To(some, 1, 2), tk.To(empty, 1))
	fb.Invoke(some, dropA, tk.Vals(1), nil)
	fb.Return(some, 2)
	fb.Invoke(empty, dropA, tk.Vals(1), nil)
	fb.Invoke(empty, c0, nil, tk.Vals(3))
	fb.Return(empty, 3)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("popfront",
		[]exec.Arg{exec.ArrayArg(exec.UintArg(7), exec.UintArg(8))}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Panicked() {
		t.Fatalf("panicked: %v", out.Panic)
	}
	if out.Result[0].U64 != 7 {
		t.Errorf("popfront([7 8]) = %d, want 7", out.Result[0].U64)
	}

	out, err = eng.Invoke("popfront", []exec.Arg{exec.ArrayArg()}, 10_000)
	if err != nil {
		t.Fatalf("Invoke(empty): %v", err)
	}
	if out.Panicked() {
		t.Fatalf("empty pop panicked: %v", out.Panic)
	}
	if out.Result[0].U64 != 0 {
		t.Errorf("popfront([]) took the non-empty branch: %d", out.Result[0].U64)
	}
}

func TestDictInsertEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("felt", "felt").
		Type("u64", "u64").
		ElemType("d", "dict", "u64")
	key := b.Libfunc("felt_const", []sir.GenericArg{tk.ValueArg("1")}, nil, []string{"felt"})
	val := b.Libfunc("u64_const", []sir.GenericArg{tk.ValueArg("10")}, nil, []string{"u64"})
	ins := b.Libfunc("dict_insert", nil, []string{"d", "felt", "u64"}, []string{"d"})
	fb := b.Func("put", "d").Param(0, "d")
	entry := fb.Block()
	fb.Invoke(entry, key, nil, tk.Vals(1))
	fb.Invoke(entry, val, nil, tk.Vals(2))
	fb.Invoke(entry, ins, tk.Vals(0, 1, 2), tk.Vals(3))
	fb.Return(entry, 3)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("put", []exec.Arg{exec.DictArg()}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Panicked() {
		t.Fatalf("panicked: %v", out.Panic)
	}
	got := out.Result[0]
	if got.Kind != exec.ArgDict || len(got.Entries) != 1 {
		t.Fatalf("result = %+v, want one dict entry", got)
	}
	ent := got.Entries[0]
	if k := feltKey(&ent); k.Cmp(big.NewInt(1)) != 0 || ent.Val.U64 != 10 {
		t.Errorf("entry = %v -> %d, want 1 -> 10", k, ent.Val.U64)
	}
}

func feltKey(e *exec.DictEntry) *big.Int {
	a := exec.Arg{Kind: exec.ArgFelt, Felt: e.Key}
	return a.FeltOf()
}

func TestDictGetEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("felt", "felt").
		Type("u64", "u64").
		ElemType("d", "dict", "u64")
	dnew := b.Libfunc("dict_new", nil, nil, []string{"d"})
	k1 := b.Libfunc("felt_const", []sir.GenericArg{tk.ValueArg("1")}, nil, []string{"felt"})
	v10 := b.Libfunc("u64_const", []sir.GenericArg{tk.ValueArg("10")}, nil, []string{"u64"})
	ins := b.Libfunc("dict_insert", nil, []string{"d", "felt", "u64"}, []string{"d"})
	get := b.Libfunc("dict_get", nil, []string{"d", "felt"}, []string{"d", "u64"})
	dropD := b.Libfunc("drop", []sir.GenericArg{tk.TypeArg("d")}, []string{"d"}, nil)

	fb := b.Func("putget", "u64")
	entry := fb.Block()
	fb.Invoke(entry, dnew, nil, tk.Vals(0))
	fb.Invoke(entry, k1, nil, tk.Vals(1))
	fb.Invoke(entry, v10, nil, tk.Vals(2))
	fb.Invoke(entry, ins, tk.Vals(0, 1, 2), tk.Vals(3))
	fb.Invoke(entry, k1, nil, tk.Vals(4))
	fb.Invoke(entry, get, tk.Vals(3, 4), tk.Vals(5, 6))
	fb.Invoke(entry, dropD, tk.Vals(5), nil)
	fb.Return(entry, 6)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("putget", nil, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Panicked() {
		t.Fatalf("panicked: %v", out.Panic)
	}
	if out.Result[0].Kind != exec.ArgUint || out.Result[0].U64 != 10 {
		t.Errorf("get after insert 1 -> 10 = %+v, want 10", out.Result[0])
	}
}

func TestDictSquashEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("felt", "felt").
		Type("u64", "u64").
		ElemType("d", "dict", "u64")
	dnew := b.Libfunc("dict_new", nil, nil, []string{"d"})
	k9 := b.Libfunc("felt_const", []sir.GenericArg{tk.ValueArg("9")}, nil, []string{"felt"})
	k2 := b.Libfunc("felt_const", []sir.GenericArg{tk.ValueArg("2")}, nil, []string{"felt"})
	v90 := b.Libfunc("u64_const", []sir.GenericArg{tk.ValueArg("90")}, nil, []string{"u64"})
	v20 := b.Libfunc("u64_const", []sir.GenericArg{tk.ValueArg("20")}, nil, []string{"u64"})
	ins := b.Libfunc("dict_insert", nil, []string{"d", "felt", "u64"}, []string{"d"})
	squash := b.Libfunc("dict_squash", nil, []string{"d"}, []string{"d"})

	fb := b.Func("settle", "d")
	entry := fb.Block()
	fb.Invoke(entry, dnew, nil, tk.Vals(0))
	fb.Invoke(entry, k9, nil, tk.Vals(1))
	fb.Invoke(entry, v90, nil, tk.Vals(2))
	fb.Invoke(entry, ins, tk.Vals(0, 1, 2), tk.Vals(3))
	fb.Invoke(entry, k2, nil, tk.Vals(4))
	fb.Invoke(entry, v20, nil, tk.Vals(5))
	fb.Invoke(entry, ins, tk.Vals(3, 4, 5), tk.Vals(6))
	fb.Invoke(entry, squash, tk.Vals(6), tk.Vals(7))
	fb.Return(entry, 7)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("settle", nil, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Panicked() {
		t.Fatalf("panicked: %v", out.Panic)
	}
	got := out.Result[0]
	if got.Kind != exec.ArgDict || len(got.Entries) != 2 {
		t.Fatalf("result = %+v, want two dict entries", got)
	}
	if k := feltKey(&got.Entries[0]); k.Cmp(big.NewInt(2)) != 0 || got.Entries[0].Val.U64 != 20 {
		t.Errorf("entry 0 = %v -> %d, want 2 -> 20", k, got.Entries[0].Val.U64)
	}
	if k := feltKey(&got.Entries[1]); k.Cmp(big.NewInt(9)) != 0 || got.Entries[1].Val.U64 != 90 {
		t.Errorf("entry 1 = %v -> %d, want 9 -> 90", k, got.Entries[1].Val.U64)
	}

	// Squash pays per recorded access at run time: two inserts on top of
	// the statically charged costs.
	want := uint64(800 + 100 + 100 + 650 + 100 + 100 + 650 + 1000 + 2*50)
	if out.GasUsed != want {
		t.Errorf("gas used %d, want %d", out.GasUsed, want)
	}
}

func TestEnumMatchEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("felt", "felt").
		Type("unit", "unit").
		EnumType("opt", "none", "unit", "some", "felt")
	match := b.Libfunc("enum_match", []sir.GenericArg{tk.TypeArg("opt")},
		[]string{"opt"}, []string{"unit", "felt"})
	dropU := b.Libfunc("drop", []sir.GenericArg{tk.TypeArg("unit")}, []string{"unit"}, nil)
	c0 := b.Libfunc("felt_const", []sir.GenericArg{tk.ValueArg("0")}, nil, []string{"felt"})

	fb := b.Func("unwrap_or_zero", "felt").Param(0, "opt")
	entry := fb.Block()
	none := fb.Block()
	some := fb.Block()
	fb.Invoke(entry, match, tk.Vals(0), tk.Vals(1, 2), tk.To(none, 1), tk.To(some, 2))
	fb.Invoke(none, dropU, tk.Vals(1), nil)
	fb.Invoke(none, c0, nil, tk.Vals(3))
	fb.Return(none, 3)
	fb.Return(some, 2)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("unwrap_or_zero",
		[]exec.Arg{exec.EnumArg(1, exec.FeltArgUint(42))}, 10_000)
	if err != nil {
		t.Fatalf("Invoke(some): %v", err)
	}
	if got := resultFelt(t, out); got.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("some(42) unwrapped to %v", got)
	}

	out, err = eng.Invoke("unwrap_or_zero",
		[]exec.Arg{exec.EnumArg(0, exec.UnitArg())}, 10_000)
	if err != nil {
		t.Fatalf("Invoke(none): %v", err)
	}
	if got := resultFelt(t, out); got.Sign() != 0 {
		t.Errorf("none unwrapped to %v, want 0", got)
	}
}

func TestEnumInitEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("felt", "felt").
		Type("unit", "unit").
		EnumType("opt", "none", "unit", "some", "felt")
	initSome := b.Libfunc("enum_init",
		[]sir.GenericArg{tk.TypeArg("opt"), tk.ValueArg("1")},
		[]string{"felt"}, []string{"opt"})
	fb := b.Func("wrap", "opt").Param(0, "felt")
	entry := fb.Block()
	fb.Invoke(entry, initSome, tk.Vals(0), tk.Vals(1))
	fb.Return(entry, 1)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("wrap", []exec.Arg{exec.FeltArgUint(42)}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Panicked() {
		t.Fatalf("panicked: %v", out.Panic)
	}
	got := out.Result[0]
	if got.Kind != exec.ArgEnum || got.Variant != 1 {
		t.Fatalf("result = %+v, want variant 1", got)
	}
	if got.Payload.FeltOf().Cmp(big.NewInt(42)) != 0 {
		t.Errorf("payload = %v, want 42", got.Payload.FeltOf())
	}
}

func TestStructPackUnpackEndToEnd(t *testing.T) {
	b := tk.NewProgram().
		Type("felt", "felt").
		StructType("pair", "a", "felt", "b", "felt")
	unpack := b.Libfunc("struct_unpack", []sir.GenericArg{tk.TypeArg("pair")},
		[]string{"pair"}, []string{"felt", "felt"})
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	fb := b.Func("sum", "felt").Param(0, "pair")
	entry := fb.Block()
	fb.Invoke(entry, unpack, tk.Vals(0), tk.Vals(1, 2))
	fb.Invoke(entry, add, tk.Vals(1, 2), tk.Vals(3))
	fb.Return(entry, 3)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("sum",
		[]exec.Arg{exec.StructArg(exec.FeltArgUint(3), exec.FeltArgUint(4))}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := resultFelt(t, out); got.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("sum({3, 4}) = %v, want 7", got)
	}
}

func TestU64OverflowingAdd(t *testing.T) {
	b := tk.NewProgram().Type("u64", "u64")
	wadd := b.Libfunc("u64_overflowing_add", nil, []string{"u64", "u64"}, []string{"u64"})
	fb := b.Func("wadd", "u64").Param(0, "u64").Param(1, "u64")
	entry := fb.Block()
	ok := fb.Block()
	over := fb.Block()
	fb.Invoke(entry, wadd, tk.Vals(0, 1), tk.Vals(2), tk.To(ok, 2), tk.To(over, 2))
	fb.Return(ok, 2)
	fb.Return(over, 2)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("wadd", []exec.Arg{exec.UintArg(1), exec.UintArg(2)}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Panicked() {
		t.Fatalf("panicked: %v", out.Panic)
	}
	if out.Result[0].U64 != 3 {
		t.Errorf("1 + 2 = %d", out.Result[0].U64)
	}

	half := uint64(1) << 63
	out, err = eng.Invoke("wadd", []exec.Arg{exec.UintArg(half), exec.UintArg(half)}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Result[0].U64 != 0 {
		t.Errorf("overflowing add wrapped to %d, want 0", out.Result[0].U64)
	}
}

func TestWithdrawGasBranches(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	wd := b.Libfunc("withdraw_gas", []sir.GenericArg{tk.ValueArg("500")}, nil, nil)
	c1 := b.Libfunc("felt_const", []sir.GenericArg{tk.ValueArg("1")}, nil, []string{"felt"})
	c0 := b.Libfunc("felt_const", []sir.GenericArg{tk.ValueArg("0")}, nil, []string{"felt"})
	fb := b.Func("metered", "felt")
	entry := fb.Block()
	ok := fb.Block()
	fail := fb.Block()
	fb.Invoke(entry, wd, nil, nil, tk.To(ok), tk.To(fail))
	fb.Invoke(ok, c1, nil, tk.Vals(1))
	fb.Return(ok, 1)
	fb.Invoke(fail, c0, nil, tk.Vals(2))
	fb.Return(fail, 2)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("metered", nil, 1_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := resultFelt(t, out); got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("funded run took the failure branch: %v", got)
	}
	if out.GasUsed != 600 {
		t.Errorf("funded run used %d gas, want 600", out.GasUsed)
	}

	// The failed withdrawal leaves the counter untouched.
	out, err = eng.Invoke("metered", nil, 200)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := resultFelt(t, out); got.Sign() != 0 {
		t.Errorf("starved run took the success branch: %v", got)
	}
	if out.GasLeft != 100 {
		t.Errorf("starved run left %d gas, want 100", out.GasLeft)
	}
}

func TestFunctionCall(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	add := b.Libfunc("felt_add", nil, []string{"felt", "felt"}, []string{"felt"})
	call := b.Libfunc("function_call", []sir.GenericArg{tk.ValueArg("add")},
		[]string{"felt", "felt"}, []string{"felt"})
	dup := b.Libfunc("dup", []sir.GenericArg{tk.TypeArg("felt")},
		[]string{"felt"}, []string{"felt", "felt"})

	fb := b.Func("add", "felt").Param(0, "felt").Param(1, "felt")
	entry := fb.Block()
	fb.Invoke(entry, add, tk.Vals(0, 1), tk.Vals(2))
	fb.Return(entry, 2)
	b = fb.Done()

	fb = b.Func("twice", "felt").Param(0, "felt")
	entry = fb.Block()
	fb.Invoke(entry, dup, tk.Vals(0), tk.Vals(1, 2))
	fb.Invoke(entry, call, tk.Vals(1, 2), tk.Vals(3))
	fb.Return(entry, 3)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("twice", []exec.Arg{exec.FeltArgUint(5)}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := resultFelt(t, out); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("twice(5) = %v, want 10", got)
	}
}

func TestPanicWithPayload(t *testing.T) {
	b := tk.NewProgram().Type("felt", "felt")
	pw := b.Libfunc("panic_with", nil, []string{"felt"}, nil)
	fb := b.Func("boom", "felt").Param(0, "felt")
	entry := fb.Block()
	fb.Invoke(entry, pw, tk.Vals(0), nil)
	eng := compile(t, fb.Done().Build())

	out, err := eng.Invoke("boom", []exec.Arg{exec.FeltArgUint(42)}, 10_000)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !out.Panicked() || out.Panic.Code != rt.PanicExplicit {
		t.Fatalf("outcome = %+v, want explicit panic", out)
	}
	if len(out.Panic.Felts) != 1 || out.Panic.Felts[0].Cmp(big.NewInt(42)) != 0 {
		t.Errorf("panic payload = %v, want [42]", out.Panic.Felts)
	}
}
