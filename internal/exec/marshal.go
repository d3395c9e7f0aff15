package exec

import (
	"fmt"
	"math/big"

	"tern/internal/rt"
	"tern/internal/types"
)

// marshal converts one caller argument into a runtime value, checking its
// shape against the declared parameter type. Any mismatch is an ABI
// violation, reported as an invocation error rather than a panic.
func (e *Engine) marshal(a *Arg, t types.TypeID) (rt.Value, error) {
	tt, ok := e.Types.Lookup(t)
	if !ok {
		return rt.Value{}, fmt.Errorf("parameter has undeclared type #%d", t)
	}
	switch tt.Kind {
	case types.KindUnit:
		if a.Kind != ArgUnit {
			return rt.Value{}, e.shapeErr(a, t)
		}
		return rt.Unit(), nil
	case types.KindBool:
		if a.Kind != ArgBool {
			return rt.Value{}, e.shapeErr(a, t)
		}
		return rt.BoolVal(a.Bool), nil
	case types.KindUint:
		if a.Kind != ArgUint {
			return rt.Value{}, e.shapeErr(a, t)
		}
		if tt.Width < 64 && a.U64>>tt.Width != 0 {
			return rt.Value{}, fmt.Errorf("value %d does not fit %s", a.U64, e.Types.Label(t))
		}
		if tt.Width == 128 {
			return rt.BigVal(t, new(big.Int).SetUint64(a.U64)), nil
		}
		return rt.UintVal(t, a.U64), nil
	case types.KindFelt, types.KindNonZero:
		if a.Kind != ArgFelt {
			return rt.Value{}, e.shapeErr(a, t)
		}
		v := a.FeltOf()
		if v.Cmp(rt.Prime()) >= 0 {
			return rt.Value{}, fmt.Errorf("felt encoding %s is not reduced", v)
		}
		return rt.BigVal(t, v), nil
	case types.KindStruct:
		if a.Kind != ArgStruct {
			return rt.Value{}, e.shapeErr(a, t)
		}
		info, _ := e.Types.StructInfo(t)
		if len(a.Fields) != len(info.Fields) {
			return rt.Value{}, fmt.Errorf("%s takes %d fields, argument carries %d",
				e.Types.Label(t), len(info.Fields), len(a.Fields))
		}
		fields := make([]rt.Value, len(a.Fields))
		for i := range a.Fields {
			fv, err := e.marshal(&a.Fields[i], info.Fields[i].Type)
			if err != nil {
				return rt.Value{}, err
			}
			fields[i] = fv
		}
		return rt.StructVal(t, fields), nil
	case types.KindEnum:
		if a.Kind != ArgEnum {
			return rt.Value{}, e.shapeErr(a, t)
		}
		info, _ := e.Types.EnumInfo(t)
		if a.Variant < 0 || a.Variant >= len(info.Variants) {
			return rt.Value{}, fmt.Errorf("variant %d out of range for %s", a.Variant, e.Types.Label(t))
		}
		payload, err := e.marshal(a.Payload, info.Variants[a.Variant].Type)
		if err != nil {
			return rt.Value{}, err
		}
		return rt.EnumVal(t, a.Variant, payload), nil
	case types.KindArray:
		if a.Kind != ArgArray {
			return rt.Value{}, e.shapeErr(a, t)
		}
		h, p := e.Heap.AllocArray(t)
		if p != nil {
			return rt.Value{}, fmt.Errorf("array argument: %s", p.Code)
		}
		for i := range a.Elems {
			ev, err := e.marshal(&a.Elems[i], tt.Elem)
			if err != nil {
				return rt.Value{}, err
			}
			if p := e.Heap.ArrayAppend(h, ev); p != nil {
				return rt.Value{}, fmt.Errorf("array argument: %s", p.Code)
			}
		}
		return rt.HandleVal(t, h), nil
	case types.KindDict:
		if a.Kind != ArgDict {
			return rt.Value{}, e.shapeErr(a, t)
		}
		h, p := e.Heap.AllocDict(t)
		if p != nil {
			return rt.Value{}, fmt.Errorf("dict argument: %s", p.Code)
		}
		for i := range a.Entries {
			ent := &a.Entries[i]
			ev, err := e.marshal(&ent.Val, tt.Elem)
			if err != nil {
				return rt.Value{}, err
			}
			if p := e.Heap.DictInsert(h, feltOf(&ent.Key), ev); p != nil {
				return rt.Value{}, fmt.Errorf("dict argument: %s", p.Code)
			}
		}
		return rt.HandleVal(t, h), nil
	case types.KindBox:
		if a.Kind != ArgBox || a.Payload == nil {
			return rt.Value{}, e.shapeErr(a, t)
		}
		inner, err := e.marshal(a.Payload, tt.Elem)
		if err != nil {
			return rt.Value{}, err
		}
		h, p := e.Heap.AllocBox(t, inner)
		if p != nil {
			return rt.Value{}, fmt.Errorf("box argument: %s", p.Code)
		}
		return rt.HandleVal(t, h), nil
	}
	return rt.Value{}, fmt.Errorf("type %s cannot cross the invocation boundary", e.Types.Label(t))
}

func (e *Engine) shapeErr(a *Arg, t types.TypeID) error {
	return fmt.Errorf("argument shape %d does not match declared type %s", a.Kind, e.Types.Label(t))
}

// unmarshal decodes one returned runtime value against its declared result
// type. An enum discriminant outside the declared variant set, or a value
// whose runtime shape disagrees with the layout, is an ABI violation.
func (e *Engine) unmarshal(v rt.Value, t types.TypeID) (Arg, error) {
	tt, ok := e.Types.Lookup(t)
	if !ok {
		return Arg{}, fmt.Errorf("result has undeclared type #%d", t)
	}
	switch tt.Kind {
	case types.KindUnit:
		return UnitArg(), nil
	case types.KindBool:
		if v.Kind != rt.VKBool {
			return Arg{}, e.resultShapeErr(v, t)
		}
		return BoolArg(v.Bool), nil
	case types.KindUint:
		switch v.Kind {
		case rt.VKUint:
			return UintArg(v.U64), nil
		case rt.VKBig:
			if !v.Big.IsUint64() {
				return Arg{}, fmt.Errorf("result %s overflows the decoded width of %s", v.Big, e.Types.Label(t))
			}
			return UintArg(v.Big.Uint64()), nil
		}
		return Arg{}, e.resultShapeErr(v, t)
	case types.KindFelt, types.KindNonZero:
		if v.Kind != rt.VKBig {
			return Arg{}, e.resultShapeErr(v, t)
		}
		return FeltArg(v.Big), nil
	case types.KindStruct:
		info, _ := e.Types.StructInfo(t)
		if v.Kind != rt.VKStruct || len(v.Fields) != len(info.Fields) {
			return Arg{}, e.resultShapeErr(v, t)
		}
		out := Arg{Kind: ArgStruct, Fields: make([]Arg, len(v.Fields))}
		for i := range v.Fields {
			fa, err := e.unmarshal(v.Fields[i], info.Fields[i].Type)
			if err != nil {
				return Arg{}, err
			}
			out.Fields[i] = fa
		}
		return out, nil
	case types.KindEnum:
		info, _ := e.Types.EnumInfo(t)
		if v.Kind != rt.VKEnum {
			return Arg{}, e.resultShapeErr(v, t)
		}
		if v.Tag < 0 || v.Tag >= len(info.Variants) {
			return Arg{}, fmt.Errorf("discriminant %d matches no variant of %s", v.Tag, e.Types.Label(t))
		}
		payload, err := e.unmarshal(*v.Payload, info.Variants[v.Tag].Type)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgEnum, Variant: v.Tag, Payload: &payload}, nil
	case types.KindArray:
		if v.Kind != rt.VKHandle {
			return Arg{}, e.resultShapeErr(v, t)
		}
		n, p := e.Heap.ArrayLen(v.H)
		if p != nil {
			return Arg{}, fmt.Errorf("array result: %s", p.Code)
		}
		out := Arg{Kind: ArgArray, Elems: make([]Arg, 0, n)}
		for i := uint64(0); i < n; i++ {
			ev, p := e.Heap.ArrayGet(v.H, i)
			if p != nil {
				return Arg{}, fmt.Errorf("array result: %s", p.Code)
			}
			ea, err := e.unmarshal(ev, tt.Elem)
			if err != nil {
				return Arg{}, err
			}
			out.Elems = append(out.Elems, ea)
		}
		return out, nil
	case types.KindDict:
		if v.Kind != rt.VKHandle {
			return Arg{}, e.resultShapeErr(v, t)
		}
		items, p := e.Heap.DictItems(v.H)
		if p != nil {
			return Arg{}, fmt.Errorf("dict result: %s", p.Code)
		}
		out := Arg{Kind: ArgDict, Entries: make([]DictEntry, 0, len(items))}
		for _, it := range items {
			va, err := e.unmarshal(it.Val, tt.Elem)
			if err != nil {
				return Arg{}, err
			}
			ent := DictEntry{Val: va}
			putFelt(&ent.Key, it.Key)
			out.Entries = append(out.Entries, ent)
		}
		return out, nil
	case types.KindBox:
		if v.Kind != rt.VKHandle {
			return Arg{}, e.resultShapeErr(v, t)
		}
		inner, p := e.Heap.Unbox(v.H)
		if p != nil {
			return Arg{}, fmt.Errorf("box result: %s", p.Code)
		}
		payload, err := e.unmarshal(inner, tt.Elem)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgBox, Payload: &payload}, nil
	}
	return Arg{}, fmt.Errorf("type %s cannot cross the invocation boundary", e.Types.Label(t))
}

func (e *Engine) resultShapeErr(v rt.Value, t types.TypeID) error {
	return fmt.Errorf("result shape %s does not match declared type %s", v.Kind, e.Types.Label(t))
}
