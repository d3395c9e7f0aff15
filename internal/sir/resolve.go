package sir

import (
	"fmt"
	"strings"

	"tern/internal/diag"
	"tern/internal/types"
)

// Signature is a libfunc declaration with its type references resolved.
type Signature struct {
	Name     string
	Generics []GenericArg
	Key      string // canonical (name, generics) registry key
	Inputs   []types.TypeID
	Outputs  []types.TypeID
}

// Resolved is a program together with its interned types and resolved
// libfunc signatures. It is read-only after Resolve returns and may be
// shared across concurrent function lowerings.
type Resolved struct {
	Prog       *Program
	Types      *types.Interner
	TypeByName map[string]types.TypeID
	Sigs       []Signature
	FuncByName map[string]FuncID
}

// Resolve interns every declared type in dependency order and resolves
// libfunc signatures. Nominal types (structs, enums) are reserved first so
// that mutually recursive declarations can reference each other; whether a
// recursion is representable is decided later by the layout engine.
func Resolve(prog *Program, bag *diag.Bag) (*Resolved, error) {
	r := &Resolved{
		Prog:       prog,
		Types:      types.NewInterner(),
		TypeByName: make(map[string]types.TypeID, len(prog.Types)),
		FuncByName: make(map[string]FuncID, len(prog.Funcs)),
	}

	declByName := make(map[string]*TypeDecl, len(prog.Types))
	for i := range prog.Types {
		td := &prog.Types[i]
		declByName[td.Name] = td
		switch td.Kind {
		case "struct":
			r.TypeByName[td.Name] = r.Types.ReserveStruct(td.Name)
		case "enum":
			r.TypeByName[td.Name] = r.Types.ReserveEnum(td.Name)
		}
	}

	res := &typeResolver{
		out:      r,
		decls:    declByName,
		done:     make(map[string]types.TypeID, len(prog.Types)),
		visiting: make(map[string]struct{}, 8),
		bag:      bag,
	}
	for i := range prog.Types {
		res.resolve(prog.Types[i].Name)
	}
	if bag.HasErrors() {
		return nil, bag.Err()
	}

	r.Sigs = make([]Signature, len(prog.Libfuncs))
	for i := range prog.Libfuncs {
		lf := &prog.Libfuncs[i]
		sig := Signature{
			Name:     lf.Name,
			Generics: lf.Generics,
			Key:      GenericKey(lf.Name, lf.Generics),
		}
		for _, t := range lf.Inputs {
			sig.Inputs = append(sig.Inputs, res.resolve(t))
		}
		for _, t := range lf.Outputs {
			sig.Outputs = append(sig.Outputs, res.resolve(t))
		}
		r.Sigs[i] = sig
	}

	for i := range prog.Funcs {
		r.FuncByName[prog.Funcs[i].Name] = FuncID(i)
	}

	if bag.HasErrors() {
		return nil, bag.Err()
	}
	return r, nil
}

// TypeOf resolves a declared type name; NoTypeID for unknown names.
func (r *Resolved) TypeOf(name string) types.TypeID {
	return r.TypeByName[name]
}

// Signature returns the resolved signature for a libfunc instance.
func (r *Resolved) Signature(id LibfuncID) (*Signature, bool) {
	if int(id) >= len(r.Sigs) {
		return nil, false
	}
	return &r.Sigs[id], true
}

// GenericKey builds the canonical registry key for an operation name and
// its generic argument list.
func GenericKey(name string, generics []GenericArg) string {
	if len(generics) == 0 {
		return name
	}
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('<')
	for i, g := range generics {
		if i > 0 {
			sb.WriteByte(',')
		}
		if g.Type != "" {
			sb.WriteString(g.Type)
		} else {
			sb.WriteString(g.Value)
		}
	}
	sb.WriteByte('>')
	return sb.String()
}

type typeResolver struct {
	out      *Resolved
	decls    map[string]*TypeDecl
	done     map[string]types.TypeID
	visiting map[string]struct{}
	bag      *diag.Bag
}

func (res *typeResolver) resolve(name string) types.TypeID {
	if name == "" {
		return res.out.Types.Builtins().Unit
	}
	if id, ok := res.done[name]; ok {
		return id
	}
	td, ok := res.decls[name]
	if !ok {
		res.bag.Add(diag.NewError(diag.InputUndeclaredType, diag.NoLoc,
			fmt.Sprintf("reference to undeclared type %q", name)))
		return types.NoTypeID
	}

	in := res.out.Types
	bi := in.Builtins()

	// Nominal types were reserved upfront; publishing them as done before
	// resolving their members lets mutually recursive declarations refer
	// back to the reserved ID. The layout engine decides later whether the
	// recursion is representable.
	switch td.Kind {
	case "struct":
		id := res.out.TypeByName[name]
		res.done[name] = id
		fields := make([]types.Field, 0, len(td.Fields))
		for _, f := range td.Fields {
			fields = append(fields, types.Field{Name: f.Name, Type: res.resolve(f.Type)})
		}
		in.SetStructFields(id, fields)
		return id
	case "enum":
		id := res.out.TypeByName[name]
		res.done[name] = id
		variants := make([]types.Variant, 0, len(td.Variants))
		for _, v := range td.Variants {
			vt := bi.Unit
			if v.Type != "" {
				vt = res.resolve(v.Type)
			}
			variants = append(variants, types.Variant{Name: v.Name, Type: vt})
		}
		in.SetEnumVariants(id, variants)
		return id
	}

	if _, busy := res.visiting[name]; busy {
		// A pure structural cycle with no nominal type in between (e.g.
		// A = box B, B = array A) has no finite declaration order.
		res.bag.Add(diag.NewError(diag.InputTypeCycle, diag.NoLoc,
			fmt.Sprintf("type %q participates in an unresolvable declaration cycle", name)))
		return types.NoTypeID
	}
	res.visiting[name] = struct{}{}
	defer delete(res.visiting, name)

	var id types.TypeID
	switch td.Kind {
	case "felt":
		id = bi.Felt
	case "bool":
		id = bi.Bool
	case "unit":
		id = bi.Unit
	case "u8":
		id = bi.U8
	case "u16":
		id = bi.U16
	case "u32":
		id = bi.U32
	case "u64":
		id = bi.U64
	case "u128":
		id = bi.U128
	case "array":
		id = in.Intern(types.MakeArray(res.resolve(td.Elem)))
	case "dict":
		id = in.Intern(types.MakeDict(res.resolve(td.Elem)))
	case "box":
		id = in.Intern(types.MakeBox(res.resolve(td.Elem)))
	case "nonzero":
		id = in.Intern(types.MakeNonZero(res.resolve(td.Elem)))
	default:
		res.bag.Add(diag.NewError(diag.InputUndeclaredType, diag.NoLoc,
			fmt.Sprintf("type %q has unknown kind %q", name, td.Kind)))
		return types.NoTypeID
	}

	res.done[name] = id
	res.out.TypeByName[name] = id
	return id
}
