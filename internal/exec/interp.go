package exec

import (
	"fmt"
	"math/big"
	"math/bits"

	"tern/internal/native"
	"tern/internal/rt"
	"tern/internal/types"
)

// maxCallDepth bounds the function_call chain. Hitting it indicates a
// compiler/invoker contract problem, not program failure.
const maxCallDepth = 1024

// run executes one function frame to completion. A returned panic is
// program-level failure; a returned error is a broken module.
func (e *Engine) run(fn *native.Func, params []rt.Value, g *gasCounter, depth int) ([]rt.Value, *rt.Panic, error) {
	if depth > maxCallDepth {
		return nil, nil, fmt.Errorf("call depth exceeds %d in %q", maxCallDepth, fn.Name)
	}
	regs := make([]rt.Value, len(fn.RegTypes))
	copy(regs, params)

	b := fn.Entry
	for {
		blk := &fn.Blocks[b]
		for i := range blk.Instrs {
			pan, err := e.step(fn, regs, &blk.Instrs[i], g, depth)
			if err != nil {
				return nil, nil, fmt.Errorf("%s bb%d: %w", fn.Name, b, err)
			}
			if pan != nil {
				return nil, pan, nil
			}
		}

		switch blk.Term.Kind {
		case native.TermGoto:
			b = blk.Term.Goto.Target
		case native.TermBrBool:
			t := &blk.Term.BrBool
			if regs[t.Cond].Bool {
				b = t.True
			} else {
				b = t.False
			}
		case native.TermBrTag:
			t := &blk.Term.BrTag
			v := regs[t.Src]
			if v.Kind != rt.VKEnum || v.Tag < 0 || v.Tag >= len(t.Cases) {
				return nil, nil, fmt.Errorf("%s bb%d: discriminant out of range", fn.Name, b)
			}
			b = t.Cases[v.Tag]
		case native.TermReturn:
			rets := make([]rt.Value, len(blk.Term.Return.Values))
			for i, r := range blk.Term.Return.Values {
				rets[i] = regs[r]
			}
			return rets, nil, nil
		case native.TermPanic:
			t := &blk.Term.Panic
			code := rt.PanicCode(t.Code)
			pan := rt.NewPanic(code, code.String())
			if t.Payload != native.NoReg {
				if v := regs[t.Payload]; v.Kind == rt.VKBig {
					pan.WithFelt(v.Big)
				}
			}
			return nil, pan, nil
		default:
			return nil, nil, fmt.Errorf("%s bb%d: missing terminator", fn.Name, b)
		}
	}
}

func (e *Engine) step(fn *native.Func, regs []rt.Value, ins *native.Instr, g *gasCounter, depth int) (*rt.Panic, error) {
	switch ins.Kind {
	case native.InstrConst:
		c := &ins.Const
		v, err := e.constValue(c.Type, c.Value)
		if err != nil {
			return nil, err
		}
		regs[c.Dst] = v

	case native.InstrCopy:
		regs[ins.Copy.Dst] = regs[ins.Copy.Src]

	case native.InstrFeltBin:
		f := &ins.FeltBin
		a, bv := regs[f.A].Big, regs[f.B].Big
		t := fn.RegTypes[f.Dst]
		switch f.Op {
		case native.FeltAdd:
			regs[f.Dst] = rt.BigVal(t, rt.FeltAdd(a, bv))
		case native.FeltSub:
			regs[f.Dst] = rt.BigVal(t, rt.FeltSub(a, bv))
		case native.FeltMul:
			regs[f.Dst] = rt.BigVal(t, rt.FeltMul(a, bv))
		case native.FeltDiv:
			q, pan := rt.FeltDiv(a, bv)
			if pan != nil {
				return pan, nil
			}
			regs[f.Dst] = rt.BigVal(t, q)
		}

	case native.InstrUintBin:
		return nil, e.uintBin(fn, regs, &ins.UintBin)

	case native.InstrIsZero:
		regs[ins.IsZero.Dst] = rt.BoolVal(regs[ins.IsZero.Src].Big.Sign() == 0)

	case native.InstrStructPack:
		s := &ins.StructPack
		fields := make([]rt.Value, len(s.Fields))
		for i, r := range s.Fields {
			fields[i] = regs[r]
		}
		regs[s.Dst] = rt.StructVal(s.Type, fields)

	case native.InstrStructUnpack:
		s := &ins.StructUnpack
		src := regs[s.Src]
		if src.Kind != rt.VKStruct || len(src.Fields) != len(s.Dsts) {
			return nil, fmt.Errorf("struct unpack of non-struct value")
		}
		for i, r := range s.Dsts {
			regs[r] = src.Fields[i]
		}

	case native.InstrEnumInit:
		en := &ins.EnumInit
		payload := rt.Unit()
		if en.Payload != native.NoReg {
			payload = regs[en.Payload]
		}
		regs[en.Dst] = rt.EnumVal(en.Type, en.Variant, payload)

	case native.InstrEnumPayload:
		en := &ins.EnumPayload
		src := regs[en.Src]
		if src.Kind != rt.VKEnum || src.Tag != en.Variant {
			return nil, fmt.Errorf("payload extraction for variant %d on tag %d", en.Variant, src.Tag)
		}
		regs[en.Dst] = *src.Payload

	case native.InstrArrayNew:
		a := &ins.Array
		h, pan := e.Heap.AllocArray(fn.RegTypes[a.Dst])
		if pan != nil {
			return pan, nil
		}
		regs[a.Dst] = rt.HandleVal(fn.RegTypes[a.Dst], h)

	case native.InstrArrayAppend:
		a := &ins.Array
		if pan := e.Heap.ArrayAppend(regs[a.Arr].H, regs[a.Value]); pan != nil {
			return pan, nil
		}

	case native.InstrArrayLen:
		a := &ins.Array
		n, pan := e.Heap.ArrayLen(regs[a.Arr].H)
		if pan != nil {
			return pan, nil
		}
		regs[a.Dst] = rt.UintVal(fn.RegTypes[a.Dst], n)

	case native.InstrArrayGet:
		a := &ins.Array
		v, pan := e.Heap.ArrayGet(regs[a.Arr].H, regs[a.Index].U64)
		if pan != nil {
			return pan, nil
		}
		regs[a.Dst] = v

	case native.InstrArrayPop:
		a := &ins.Array
		v, ok, pan := e.Heap.ArrayPopFront(regs[a.Arr].H)
		if pan != nil {
			return pan, nil
		}
		if ok {
			regs[a.Dst] = v
		}
		regs[a.Ok] = rt.BoolVal(ok)

	case native.InstrDictNew:
		d := &ins.Dict
		h, pan := e.Heap.AllocDict(fn.RegTypes[d.Dst])
		if pan != nil {
			return pan, nil
		}
		regs[d.Dst] = rt.HandleVal(fn.RegTypes[d.Dst], h)

	case native.InstrDictGet:
		d := &ins.Dict
		zero, err := e.zeroValue(d.Value)
		if err != nil {
			return nil, err
		}
		v, pan := e.Heap.DictGet(regs[d.Dict].H, regs[d.Key].Big, zero)
		if pan != nil {
			return pan, nil
		}
		regs[d.Dst] = v

	case native.InstrDictInsert:
		d := &ins.Dict
		if pan := e.Heap.DictInsert(regs[d.Dict].H, regs[d.Key].Big, regs[d.Val]); pan != nil {
			return pan, nil
		}

	case native.InstrDictSquash:
		d := &ins.Dict
		// Squash is priced per recorded access; the static charge covers
		// only the base cost.
		n, pan := e.Heap.DictAccessCount(regs[d.Dict].H)
		if pan != nil {
			return pan, nil
		}
		if pan := g.charge(e.Module.SquashAccessGas * uint64(n)); pan != nil {
			return pan, nil
		}
		h, pan := e.Heap.DictSquash(regs[d.Dict].H)
		if pan != nil {
			return pan, nil
		}
		regs[d.Dst] = rt.HandleVal(fn.RegTypes[d.Dst], h)

	case native.InstrBoxNew:
		bx := &ins.Box
		h, pan := e.Heap.AllocBox(fn.RegTypes[bx.Dst], regs[bx.Src])
		if pan != nil {
			return pan, nil
		}
		regs[bx.Dst] = rt.HandleVal(fn.RegTypes[bx.Dst], h)

	case native.InstrUnbox:
		bx := &ins.Box
		v, pan := e.Heap.Unbox(regs[bx.Src].H)
		if pan != nil {
			return pan, nil
		}
		regs[bx.Dst] = v

	case native.InstrRetain:
		if v := regs[ins.RC.Src]; v.Kind == rt.VKHandle {
			e.Heap.Retain(v.H)
		}

	case native.InstrRelease:
		if v := regs[ins.RC.Src]; v.Kind == rt.VKHandle {
			e.Heap.Release(v.H)
		}

	case native.InstrGasCharge:
		if pan := g.charge(ins.Gas.Amount); pan != nil {
			return pan, nil
		}

	case native.InstrGasWithdraw:
		regs[ins.Gas.Ok] = rt.BoolVal(g.withdraw(ins.Gas.Amount))

	case native.InstrGasRedeposit:
		g.redeposit(ins.Gas.Amount)

	case native.InstrCall:
		c := &ins.Call
		callee, _, ok := e.Module.Lookup(c.Callee)
		if !ok {
			return nil, fmt.Errorf("call to unknown function %q", c.Callee)
		}
		args := make([]rt.Value, len(c.Args))
		for i, r := range c.Args {
			args[i] = regs[r]
		}
		rets, pan, err := e.run(callee, args, g, depth+1)
		if err != nil {
			return nil, err
		}
		if pan != nil {
			return pan, nil
		}
		if len(rets) != len(c.Dsts) {
			return nil, fmt.Errorf("call to %q returned %d values, expected %d", c.Callee, len(rets), len(c.Dsts))
		}
		for i, r := range c.Dsts {
			regs[r] = rets[i]
		}

	default:
		return nil, fmt.Errorf("unknown instruction kind %d", ins.Kind)
	}
	return nil, nil
}

func (e *Engine) constValue(t types.TypeID, v *big.Int) (rt.Value, error) {
	tt, ok := e.Types.Lookup(t)
	if !ok {
		return rt.Value{}, fmt.Errorf("constant of undeclared type #%d", t)
	}
	switch tt.Kind {
	case types.KindFelt, types.KindNonZero:
		return rt.BigVal(t, rt.FeltMod(v)), nil
	case types.KindBool:
		return rt.BoolVal(v.Sign() != 0), nil
	case types.KindUint:
		if tt.Width == 128 {
			return rt.BigVal(t, new(big.Int).Set(v)), nil
		}
		return rt.UintVal(t, v.Uint64()), nil
	}
	return rt.Value{}, fmt.Errorf("constant of non-scalar type %s", e.Types.Label(t))
}

var two128 = new(big.Int).Lsh(big.NewInt(1), 128)

func (e *Engine) uintBin(fn *native.Func, regs []rt.Value, u *native.UintBinInstr) error {
	t := fn.RegTypes[u.Dst]
	if u.Width == 128 {
		a, b := regs[u.A].Big, regs[u.B].Big
		var raw *big.Int
		switch u.Op {
		case native.UintAdd:
			raw = new(big.Int).Add(a, b)
		case native.UintSub:
			raw = new(big.Int).Sub(a, b)
		case native.UintMul:
			raw = new(big.Int).Mul(a, b)
		}
		carry := raw.Sign() < 0 || raw.Cmp(two128) >= 0
		regs[u.Dst] = rt.BigVal(t, new(big.Int).Mod(raw, two128))
		if u.Carry != native.NoReg {
			regs[u.Carry] = rt.BoolVal(carry)
		}
		return nil
	}

	a, b := regs[u.A].U64, regs[u.B].U64
	var wrapped uint64
	var carry bool
	switch u.Op {
	case native.UintAdd:
		sum, c := bits.Add64(a, b, 0)
		wrapped, carry = sum, c != 0
	case native.UintSub:
		diff, borrow := bits.Sub64(a, b, 0)
		wrapped, carry = diff, borrow != 0
	case native.UintMul:
		hi, lo := bits.Mul64(a, b)
		wrapped, carry = lo, hi != 0
	}
	if u.Width < 64 {
		mask := uint64(1)<<u.Width - 1
		if wrapped&^mask != 0 {
			carry = true
		}
		wrapped &= mask
	}
	regs[u.Dst] = rt.UintVal(t, wrapped)
	if u.Carry != native.NoReg {
		regs[u.Carry] = rt.BoolVal(carry)
	}
	return nil
}

// zeroValue builds the implicit binding observed by a dictionary read of a
// missing key.
func (e *Engine) zeroValue(t types.TypeID) (rt.Value, error) {
	tt, ok := e.Types.Lookup(t)
	if !ok {
		return rt.Value{}, fmt.Errorf("zero of undeclared type #%d", t)
	}
	switch tt.Kind {
	case types.KindUnit:
		return rt.Unit(), nil
	case types.KindBool:
		return rt.BoolVal(false), nil
	case types.KindFelt, types.KindNonZero:
		return rt.BigVal(t, new(big.Int)), nil
	case types.KindUint:
		if tt.Width == 128 {
			return rt.BigVal(t, new(big.Int)), nil
		}
		return rt.UintVal(t, 0), nil
	case types.KindStruct:
		info, _ := e.Types.StructInfo(t)
		fields := make([]rt.Value, len(info.Fields))
		for i := range info.Fields {
			fv, err := e.zeroValue(info.Fields[i].Type)
			if err != nil {
				return rt.Value{}, err
			}
			fields[i] = fv
		}
		return rt.StructVal(t, fields), nil
	case types.KindEnum:
		info, _ := e.Types.EnumInfo(t)
		if len(info.Variants) == 0 {
			return rt.Value{}, fmt.Errorf("zero of empty enum %s", e.Types.Label(t))
		}
		payload, err := e.zeroValue(info.Variants[0].Type)
		if err != nil {
			return rt.Value{}, err
		}
		return rt.EnumVal(t, 0, payload), nil
	}
	return rt.Value{}, fmt.Errorf("type %s has no implicit zero", e.Types.Label(t))
}
