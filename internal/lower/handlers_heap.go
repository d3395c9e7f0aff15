package lower

import (
	"fmt"

	"tern/internal/native"
	"tern/internal/types"
)

func (r *Registry) registerHeap() {
	r.Register("array_new", lowerArrayNew)
	r.Register("array_append", lowerArrayAppend)
	r.Register("array_len", lowerArrayLen)
	r.Register("array_get", lowerArrayGet)
	r.Register("array_pop", lowerArrayPop)
	r.Register("dict_new", lowerDictNew)
	r.Register("dict_get", lowerDictGet)
	r.Register("dict_insert", lowerDictInsert)
	r.Register("dict_squash", lowerDictSquash)
}

func (fc *funcLowerer) elemOf(t types.TypeID, kind types.Kind, op string) (types.TypeID, error) {
	tt, ok := fc.res.Types.Lookup(t)
	if !ok || tt.Kind != kind {
		return types.NoTypeID, fmt.Errorf("%s operand %s has the wrong shape", op, fc.res.Types.Label(t))
	}
	return tt.Elem, nil
}

func lowerArrayNew(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	elem, err := fc.elemOf(inv.sig.Outputs[0], types.KindArray, "array_new")
	if err != nil {
		return err
	}
	fc.emit(native.Instr{Kind: native.InstrArrayNew, Array: native.ArrayInstr{
		Elem:  elem,
		Dst:   fc.define(inv, 0),
		Ok:    native.NoReg,
		Arr:   native.NoReg,
		Index: native.NoReg,
		Value: native.NoReg,
	}})
	return nil
}

// lowerArrayAppend mutates the backing region in place; the output is the
// same header handle threaded through to keep the value linear.
func lowerArrayAppend(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	elem, err := fc.elemOf(inv.sig.Inputs[0], types.KindArray, "array_append")
	if err != nil {
		return err
	}
	fc.emit(native.Instr{Kind: native.InstrArrayAppend, Array: native.ArrayInstr{
		Elem:  elem,
		Dst:   native.NoReg,
		Ok:    native.NoReg,
		Arr:   inv.in[0],
		Index: native.NoReg,
		Value: inv.in[1],
	}})
	fc.defineAt(inv, 0, inv.in[0])
	return nil
}

func lowerArrayLen(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	elem, err := fc.elemOf(inv.sig.Inputs[0], types.KindArray, "array_len")
	if err != nil {
		return err
	}
	fc.defineAt(inv, 0, inv.in[0])
	fc.emit(native.Instr{Kind: native.InstrArrayLen, Array: native.ArrayInstr{
		Elem:  elem,
		Dst:   fc.define(inv, 1),
		Ok:    native.NoReg,
		Arr:   inv.in[0],
		Index: native.NoReg,
		Value: native.NoReg,
	}})
	return nil
}

// lowerArrayGet is bounds checked at runtime; an out-of-range index raises
// the index panic rather than branching.
func lowerArrayGet(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	elem, err := fc.elemOf(inv.sig.Inputs[0], types.KindArray, "array_get")
	if err != nil {
		return err
	}
	fc.defineAt(inv, 0, inv.in[0])
	fc.emit(native.Instr{Kind: native.InstrArrayGet, Array: native.ArrayInstr{
		Elem:  elem,
		Dst:   fc.define(inv, 1),
		Ok:    native.NoReg,
		Arr:   inv.in[0],
		Index: inv.in[1],
		Value: native.NoReg,
	}})
	return nil
}

// lowerArrayPop removes the front element and branches: target 0 when an
// element was removed (array, element), target 1 when empty (array).
func lowerArrayPop(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantBranches(inv, 2); err != nil {
		return err
	}
	elem, err := fc.elemOf(inv.sig.Inputs[0], types.KindArray, "array_pop")
	if err != nil {
		return err
	}
	popped := fc.newReg(inv.sig.Outputs[1])
	nonEmpty := fc.newReg(fc.res.Types.Builtins().Bool)
	fc.emit(native.Instr{Kind: native.InstrArrayPop, Array: native.ArrayInstr{
		Elem:  elem,
		Dst:   popped,
		Ok:    nonEmpty,
		Arr:   inv.in[0],
		Index: native.NoReg,
		Value: native.NoReg,
	}})

	some := fc.branchEdge(inv, 0)
	fc.emitTo(some.block, native.Instr{Kind: native.InstrCopy, Copy: native.CopyInstr{
		Dst: fc.edgeDefine(inv, some, 0),
		Src: inv.in[0],
	}})
	fc.emitTo(some.block, native.Instr{Kind: native.InstrCopy, Copy: native.CopyInstr{
		Dst: fc.edgeDefine(inv, some, 1),
		Src: popped,
	}})
	empty := fc.branchEdge(inv, 1)
	fc.emitTo(empty.block, native.Instr{Kind: native.InstrCopy, Copy: native.CopyInstr{
		Dst: fc.edgeDefine(inv, empty, 0),
		Src: inv.in[0],
	}})

	fc.terminate(native.Terminator{Kind: native.TermBrBool, BrBool: native.BrBoolTerm{
		Cond:  nonEmpty,
		True:  some.block,
		False: empty.block,
	}})
	return nil
}

func lowerDictNew(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	val, err := fc.elemOf(inv.sig.Outputs[0], types.KindDict, "dict_new")
	if err != nil {
		return err
	}
	fc.emit(native.Instr{Kind: native.InstrDictNew, Dict: native.DictInstr{
		Value: val,
		Dst:   fc.define(inv, 0),
		Dict:  native.NoReg,
		Key:   native.NoReg,
		Val:   native.NoReg,
	}})
	return nil
}

// lowerDictGet reads the binding for a felt key; a missing key observes
// and installs the zero value of the dictionary's value type.
func lowerDictGet(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	val, err := fc.elemOf(inv.sig.Inputs[0], types.KindDict, "dict_get")
	if err != nil {
		return err
	}
	fc.defineAt(inv, 0, inv.in[0])
	fc.emit(native.Instr{Kind: native.InstrDictGet, Dict: native.DictInstr{
		Value: val,
		Dst:   fc.define(inv, 1),
		Dict:  inv.in[0],
		Key:   inv.in[1],
		Val:   native.NoReg,
	}})
	return nil
}

func lowerDictInsert(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	val, err := fc.elemOf(inv.sig.Inputs[0], types.KindDict, "dict_insert")
	if err != nil {
		return err
	}
	fc.emit(native.Instr{Kind: native.InstrDictInsert, Dict: native.DictInstr{
		Value: val,
		Dst:   native.NoReg,
		Dict:  inv.in[0],
		Key:   inv.in[1],
		Val:   inv.in[2],
	}})
	fc.defineAt(inv, 0, inv.in[0])
	return nil
}

// lowerDictSquash produces the canonical snapshot and seals the source
// handle; further access through the old handle is a runtime panic.
func lowerDictSquash(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	val, err := fc.elemOf(inv.sig.Inputs[0], types.KindDict, "dict_squash")
	if err != nil {
		return err
	}
	fc.emit(native.Instr{Kind: native.InstrDictSquash, Dict: native.DictInstr{
		Value: val,
		Dst:   fc.define(inv, 0),
		Dict:  inv.in[0],
		Key:   native.NoReg,
		Val:   native.NoReg,
	}})
	return nil
}
