package native

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"tern/internal/types"
)

// DumpOptions configures module dumping.
type DumpOptions struct {
	// Func restricts the dump to one function; empty dumps all.
	Func string
}

// Dump writes a deterministic human-readable rendering of the lowered
// block graph, for inspection without execution.
func Dump(w io.Writer, m *Module, typesIn *types.Interner, opts DumpOptions) error {
	if w == nil || m == nil {
		return nil
	}

	funcs := make([]*Func, 0, len(m.Funcs))
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if opts.Func != "" && f.Name != opts.Func {
			continue
		}
		funcs = append(funcs, f)
	}
	slices.SortStableFunc(funcs, func(a, b *Func) int {
		return strings.Compare(a.Name, b.Name)
	})

	fmt.Fprintf(w, "funcs=%d\n", len(funcs))
	for _, f := range funcs {
		if err := dumpFunc(w, f, typesIn); err != nil {
			return err
		}
	}
	return nil
}

func dumpFunc(w io.Writer, f *Func, typesIn *types.Interner) error {
	fmt.Fprintf(w, "\nfn %s:\n", f.Name)

	fmt.Fprintf(w, "  regs:\n")
	for i, t := range f.RegTypes {
		role := ""
		if i < f.NumParams {
			role = " param"
		}
		fmt.Fprintf(w, "    r%d: %s%s\n", i, typeStr(typesIn, t), role)
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		fmt.Fprintf(w, "  bb%d:\n", bb.ID)
		for j := range bb.Instrs {
			fmt.Fprintf(w, "    %s\n", formatInstr(&bb.Instrs[j]))
		}
		fmt.Fprintf(w, "    %s\n", formatTerm(&bb.Term))
	}
	return nil
}

func typeStr(typesIn *types.Interner, id types.TypeID) string {
	if typesIn == nil {
		return fmt.Sprintf("type#%d", id)
	}
	return typesIn.Label(id)
}

func regStr(r Reg) string {
	if r == NoReg {
		return "_"
	}
	return fmt.Sprintf("r%d", r)
}

func regList(rs []Reg) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, regStr(r))
	}
	return strings.Join(parts, ", ")
}

func formatInstr(ins *Instr) string {
	switch ins.Kind {
	case InstrConst:
		return fmt.Sprintf("%s = const %s", regStr(ins.Const.Dst), ins.Const.Value)
	case InstrCopy:
		return fmt.Sprintf("%s = copy %s", regStr(ins.Copy.Dst), regStr(ins.Copy.Src))
	case InstrFeltBin:
		return fmt.Sprintf("%s = felt.%s %s, %s",
			regStr(ins.FeltBin.Dst), feltOpStr(ins.FeltBin.Op), regStr(ins.FeltBin.A), regStr(ins.FeltBin.B))
	case InstrUintBin:
		return fmt.Sprintf("%s, %s = u%d.%s %s, %s",
			regStr(ins.UintBin.Dst), regStr(ins.UintBin.Carry), ins.UintBin.Width,
			uintOpStr(ins.UintBin.Op), regStr(ins.UintBin.A), regStr(ins.UintBin.B))
	case InstrIsZero:
		return fmt.Sprintf("%s = is_zero %s", regStr(ins.IsZero.Dst), regStr(ins.IsZero.Src))
	case InstrStructPack:
		return fmt.Sprintf("%s = struct.pack %s", regStr(ins.StructPack.Dst), regList(ins.StructPack.Fields))
	case InstrStructUnpack:
		return fmt.Sprintf("%s = struct.unpack %s", regList(ins.StructUnpack.Dsts), regStr(ins.StructUnpack.Src))
	case InstrEnumInit:
		return fmt.Sprintf("%s = enum.init variant=%d %s",
			regStr(ins.EnumInit.Dst), ins.EnumInit.Variant, regStr(ins.EnumInit.Payload))
	case InstrEnumPayload:
		return fmt.Sprintf("%s = enum.payload variant=%d %s",
			regStr(ins.EnumPayload.Dst), ins.EnumPayload.Variant, regStr(ins.EnumPayload.Src))
	case InstrArrayNew:
		return fmt.Sprintf("%s = array.new", regStr(ins.Array.Dst))
	case InstrArrayAppend:
		return fmt.Sprintf("%s = array.append %s, %s",
			regStr(ins.Array.Dst), regStr(ins.Array.Arr), regStr(ins.Array.Value))
	case InstrArrayLen:
		return fmt.Sprintf("%s = array.len %s", regStr(ins.Array.Dst), regStr(ins.Array.Arr))
	case InstrArrayGet:
		return fmt.Sprintf("%s = array.get %s[%s]",
			regStr(ins.Array.Dst), regStr(ins.Array.Arr), regStr(ins.Array.Index))
	case InstrArrayPop:
		return fmt.Sprintf("%s, %s = array.pop %s",
			regStr(ins.Array.Dst), regStr(ins.Array.Ok), regStr(ins.Array.Arr))
	case InstrDictNew:
		return fmt.Sprintf("%s = dict.new", regStr(ins.Dict.Dst))
	case InstrDictGet:
		return fmt.Sprintf("%s = dict.get %s[%s]",
			regStr(ins.Dict.Dst), regStr(ins.Dict.Dict), regStr(ins.Dict.Key))
	case InstrDictInsert:
		return fmt.Sprintf("dict.insert %s[%s] = %s",
			regStr(ins.Dict.Dict), regStr(ins.Dict.Key), regStr(ins.Dict.Val))
	case InstrDictSquash:
		return fmt.Sprintf("%s = dict.squash %s", regStr(ins.Dict.Dst), regStr(ins.Dict.Dict))
	case InstrBoxNew:
		return fmt.Sprintf("%s = box.new %s", regStr(ins.Box.Dst), regStr(ins.Box.Src))
	case InstrUnbox:
		return fmt.Sprintf("%s = unbox %s", regStr(ins.Box.Dst), regStr(ins.Box.Src))
	case InstrRetain:
		return fmt.Sprintf("rc.retain %s", regStr(ins.RC.Src))
	case InstrRelease:
		return fmt.Sprintf("rc.release %s", regStr(ins.RC.Src))
	case InstrGasCharge:
		return fmt.Sprintf("gas.charge %d", ins.Gas.Amount)
	case InstrGasWithdraw:
		return fmt.Sprintf("%s = gas.withdraw %d", regStr(ins.Gas.Ok), ins.Gas.Amount)
	case InstrGasRedeposit:
		return fmt.Sprintf("gas.redeposit %d", ins.Gas.Amount)
	case InstrCall:
		return fmt.Sprintf("%s = call %s(%s)", regList(ins.Call.Dsts), ins.Call.Callee, regList(ins.Call.Args))
	default:
		return fmt.Sprintf("instr(kind=%d)", ins.Kind)
	}
}

func formatTerm(t *Terminator) string {
	switch t.Kind {
	case TermGoto:
		return fmt.Sprintf("goto bb%d", t.Goto.Target)
	case TermBrBool:
		return fmt.Sprintf("br %s ? bb%d : bb%d", regStr(t.BrBool.Cond), t.BrBool.True, t.BrBool.False)
	case TermBrTag:
		parts := make([]string, 0, len(t.BrTag.Cases))
		for i, target := range t.BrTag.Cases {
			parts = append(parts, fmt.Sprintf("%d->bb%d", i, target))
		}
		return fmt.Sprintf("br_tag %s [%s]", regStr(t.BrTag.Src), strings.Join(parts, " "))
	case TermReturn:
		if len(t.Return.Values) == 0 {
			return "return"
		}
		return fmt.Sprintf("return %s", regList(t.Return.Values))
	case TermPanic:
		if t.Panic.Payload == NoReg {
			return fmt.Sprintf("panic code=%d", t.Panic.Code)
		}
		return fmt.Sprintf("panic code=%d payload=%s", t.Panic.Code, regStr(t.Panic.Payload))
	case TermNone:
		return "<unterminated>"
	default:
		return fmt.Sprintf("term(kind=%d)", t.Kind)
	}
}

func feltOpStr(op FeltOp) string {
	switch op {
	case FeltAdd:
		return "add"
	case FeltSub:
		return "sub"
	case FeltMul:
		return "mul"
	case FeltDiv:
		return "div"
	default:
		return fmt.Sprintf("op%d", op)
	}
}

func uintOpStr(op UintOp) string {
	switch op {
	case UintAdd:
		return "add"
	case UintSub:
		return "sub"
	case UintMul:
		return "mul"
	default:
		return fmt.Sprintf("op%d", op)
	}
}
