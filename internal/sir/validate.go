package sir

import (
	"fmt"

	"tern/internal/diag"
)

// Validate checks internal consistency of a decoded program: declaration
// references resolve, block boundaries are well formed, and every block
// ends in exactly one control transfer. Deeper checks (branch arity
// against live sets, linear use) belong to the block builder.
func Validate(prog *Program, bag *diag.Bag) error {
	typeNames := make(map[string]struct{}, len(prog.Types))
	for i, td := range prog.Types {
		if td.Name == "" {
			bag.Add(diag.NewError(diag.InputUndeclaredType, diag.NoLoc,
				fmt.Sprintf("type declaration %d has empty name", i)))
			continue
		}
		if _, dup := typeNames[td.Name]; dup {
			bag.Add(diag.NewError(diag.InputDuplicateDecl, diag.NoLoc,
				fmt.Sprintf("duplicate type declaration %q", td.Name)))
			continue
		}
		typeNames[td.Name] = struct{}{}
	}

	typeRef := func(name, where string) {
		if name == "" {
			return
		}
		if _, ok := typeNames[name]; !ok {
			bag.Add(diag.NewError(diag.InputUndeclaredType, diag.NoLoc,
				fmt.Sprintf("%s references undeclared type %q", where, name)))
		}
	}

	for _, td := range prog.Types {
		switch td.Kind {
		case "struct":
			for _, f := range td.Fields {
				typeRef(f.Type, fmt.Sprintf("struct %q field %q", td.Name, f.Name))
			}
		case "enum":
			for _, v := range td.Variants {
				typeRef(v.Type, fmt.Sprintf("enum %q variant %q", td.Name, v.Name))
			}
		case "array", "dict", "box", "nonzero":
			typeRef(td.Elem, fmt.Sprintf("%s %q", td.Kind, td.Name))
		}
	}

	for i, lf := range prog.Libfuncs {
		if lf.Name == "" {
			bag.Add(diag.NewError(diag.InputBadSignature, diag.NoLoc,
				fmt.Sprintf("libfunc declaration %d has empty name", i)))
		}
		for _, t := range lf.Inputs {
			typeRef(t, fmt.Sprintf("libfunc %q inputs", lf.Name))
		}
		for _, t := range lf.Outputs {
			typeRef(t, fmt.Sprintf("libfunc %q outputs", lf.Name))
		}
		for _, g := range lf.Generics {
			typeRef(g.Type, fmt.Sprintf("libfunc %q generics", lf.Name))
		}
	}

	funcNames := make(map[string]struct{}, len(prog.Funcs))
	for fi := range prog.Funcs {
		fn := &prog.Funcs[fi]
		if _, dup := funcNames[fn.Name]; dup {
			bag.Add(diag.NewError(diag.InputDuplicateDecl, diag.FuncLoc(fn.Name),
				fmt.Sprintf("duplicate function %q", fn.Name)))
		}
		funcNames[fn.Name] = struct{}{}
		validateFunc(fn, len(prog.Libfuncs), typeRef, bag)
	}

	return bag.Err()
}

func validateFunc(fn *Func, numLibfuncs int, typeRef func(name, where string), bag *diag.Bag) {
	for _, p := range fn.Params {
		typeRef(p.Type, fmt.Sprintf("function %q params", fn.Name))
	}
	for _, t := range fn.Results {
		typeRef(t, fmt.Sprintf("function %q results", fn.Name))
	}

	if int(fn.Entry) >= len(fn.Blocks) {
		bag.Add(diag.NewError(diag.InputBadEntry, diag.FuncLoc(fn.Name),
			fmt.Sprintf("entry block bb%d does not exist", fn.Entry)))
	}

	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		if len(blk.Stmts) == 0 {
			bag.Add(diag.NewError(diag.InputBadTerminator, diag.Loc{Func: fn.Name, Block: bi, Stmt: -1},
				"empty block has no control transfer"))
			continue
		}
		for si := range blk.Stmts {
			st := &blk.Stmts[si]
			loc := diag.At(fn.Name, bi, si)
			last := si == len(blk.Stmts)-1

			if st.Kind == StmtInvoke && int(st.Libfunc) >= numLibfuncs {
				bag.Add(diag.NewError(diag.InputUndeclaredLibfunc, loc,
					fmt.Sprintf("statement references undeclared libfunc #%d", st.Libfunc)))
			}
			if st.Kind == StmtReturn && len(st.Branches) > 0 {
				bag.Add(diag.NewError(diag.InputBadTerminator, loc,
					"return statement cannot carry branch targets"))
			}
			// Whether the final statement actually transfers control is
			// known only to the lowering registry (panic_with terminates
			// without branch targets); the block builder enforces sealing.
			if !last && st.IsTerminator() {
				bag.Add(diag.NewError(diag.InputBadTerminator, loc,
					"control transfer before end of block"))
			}
			for _, br := range st.Branches {
				if int(br.Block) >= len(fn.Blocks) {
					bag.Add(diag.NewError(diag.InputBlockOutOfRange, loc,
						fmt.Sprintf("branch target bb%d does not exist", br.Block)))
				}
			}
		}
	}
}
