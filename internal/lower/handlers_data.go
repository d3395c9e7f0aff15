package lower

import (
	"fmt"
	"strconv"

	"tern/internal/native"
	"tern/internal/types"
)

func (r *Registry) registerData() {
	r.Register("struct_pack", lowerStructPack)
	r.Register("struct_unpack", lowerStructUnpack)
	r.Register("enum_init", lowerEnumInit)
	r.Register("enum_match", lowerEnumMatch)
	r.Register("box_new", lowerBoxNew)
	r.Register("unbox", lowerUnbox)
}

func lowerStructPack(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	out := inv.sig.Outputs[0]
	info, ok := fc.res.Types.StructInfo(out)
	if !ok {
		return fmt.Errorf("struct_pack output %s is not a struct", fc.res.Types.Label(out))
	}
	if len(inv.in) != len(info.Fields) {
		return fmt.Errorf("struct_pack of %s takes %d fields, signature declares %d",
			info.Name, len(info.Fields), len(inv.in))
	}
	fc.emit(native.Instr{Kind: native.InstrStructPack, StructPack: native.StructPackInstr{
		Dst:    fc.define(inv, 0),
		Type:   out,
		Fields: inv.in,
	}})
	return nil
}

func lowerStructUnpack(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	src := inv.sig.Inputs[0]
	info, ok := fc.res.Types.StructInfo(src)
	if !ok {
		return fmt.Errorf("struct_unpack input %s is not a struct", fc.res.Types.Label(src))
	}
	if len(inv.st.Outputs) != len(info.Fields) {
		return fmt.Errorf("struct_unpack of %s yields %d fields, statement binds %d",
			info.Name, len(info.Fields), len(inv.st.Outputs))
	}
	dsts := make([]native.Reg, len(inv.st.Outputs))
	for i := range inv.st.Outputs {
		dsts[i] = fc.define(inv, i)
	}
	fc.emit(native.Instr{Kind: native.InstrStructUnpack, StructUnpack: native.StructUnpackInstr{
		Dsts: dsts,
		Src:  inv.in[0],
	}})
	return nil
}

// lowerEnumInit builds an enum value for the variant named by the second
// generic argument. Unit-payload variants take no input.
func lowerEnumInit(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	out := inv.sig.Outputs[0]
	info, ok := fc.res.Types.EnumInfo(out)
	if !ok {
		return fmt.Errorf("enum_init output %s is not an enum", fc.res.Types.Label(out))
	}
	gt, err := fc.genericType(inv, 0)
	if err != nil {
		return err
	}
	if gt != out {
		return fmt.Errorf("enum_init generic names %s, output is %s",
			fc.res.Types.Label(gt), fc.res.Types.Label(out))
	}
	lit, err := fc.genericValue(inv, 1)
	if err != nil {
		return err
	}
	variant, err := strconv.Atoi(lit)
	if err != nil || variant < 0 || variant >= len(info.Variants) {
		return fmt.Errorf("enum_init variant %q out of range for %s", lit, info.Name)
	}
	payload := native.NoReg
	if len(inv.in) == 1 {
		payload = inv.in[0]
	}
	fc.emit(native.Instr{Kind: native.InstrEnumInit, EnumInit: native.EnumInitInstr{
		Dst:     fc.define(inv, 0),
		Type:    out,
		Variant: variant,
		Payload: payload,
	}})
	return nil
}

// lowerEnumMatch dispatches on the discriminant: one branch target per
// variant, in declaration order, each receiving that variant's payload.
// Signature output i is the payload type of variant i.
func lowerEnumMatch(fc *funcLowerer, inv *invocation) error {
	src := inv.sig.Inputs[0]
	info, ok := fc.res.Types.EnumInfo(src)
	if !ok {
		return fmt.Errorf("enum_match input %s is not an enum", fc.res.Types.Label(src))
	}
	if err := fc.wantBranches(inv, len(info.Variants)); err != nil {
		return err
	}
	if len(inv.sig.Outputs) != len(info.Variants) {
		return fmt.Errorf("enum_match over %s declares %d outputs, enum has %d variants",
			info.Name, len(inv.sig.Outputs), len(info.Variants))
	}

	cases := make([]native.BlockID, len(info.Variants))
	for i := range info.Variants {
		e := fc.branchEdge(inv, i)
		cases[i] = e.block
		fc.emitTo(e.block, native.Instr{Kind: native.InstrEnumPayload, EnumPayload: native.EnumPayloadInstr{
			Dst:     fc.edgeDefine(inv, e, i),
			Src:     inv.in[0],
			Variant: i,
		}})
	}
	fc.terminate(native.Terminator{Kind: native.TermBrTag, BrTag: native.BrTagTerm{
		Src:   inv.in[0],
		Cases: cases,
	}})
	return nil
}

func lowerBoxNew(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	fc.emit(native.Instr{Kind: native.InstrBoxNew, Box: native.BoxInstr{
		Dst: fc.define(inv, 0),
		Src: inv.in[0],
	}})
	return nil
}

func lowerUnbox(fc *funcLowerer, inv *invocation) error {
	if err := fc.wantStraightLine(inv); err != nil {
		return err
	}
	if tt, ok := fc.res.Types.Lookup(inv.sig.Inputs[0]); !ok || tt.Kind != types.KindBox {
		return fmt.Errorf("unbox input %s is not a box", fc.res.Types.Label(inv.sig.Inputs[0]))
	}
	fc.emit(native.Instr{Kind: native.InstrUnbox, Box: native.BoxInstr{
		Dst: fc.define(inv, 0),
		Src: inv.in[0],
	}})
	return nil
}
