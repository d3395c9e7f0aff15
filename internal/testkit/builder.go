// Package testkit builds small IR programs in code and checks structural
// invariants of lowered modules, for tests that should not hand-write the
// serialized form.
package testkit

import "tern/internal/sir"

// ProgramBuilder assembles a program declaration by declaration. The zero
// value is not usable; start with NewProgram.
type ProgramBuilder struct {
	prog sir.Program
	lfs  map[string]sir.LibfuncID
}

func NewProgram() *ProgramBuilder {
	return &ProgramBuilder{lfs: make(map[string]sir.LibfuncID, 16)}
}

// Type declares a primitive type under its own kind name (felt, bool, u64...).
func (b *ProgramBuilder) Type(name, kind string) *ProgramBuilder {
	b.prog.Types = append(b.prog.Types, sir.TypeDecl{Name: name, Kind: kind})
	return b
}

// ElemType declares an array, dict, box or nonzero over elem.
func (b *ProgramBuilder) ElemType(name, kind, elem string) *ProgramBuilder {
	b.prog.Types = append(b.prog.Types, sir.TypeDecl{Name: name, Kind: kind, Elem: elem})
	return b
}

// StructType declares a struct with alternating field name/type pairs.
func (b *ProgramBuilder) StructType(name string, fieldPairs ...string) *ProgramBuilder {
	td := sir.TypeDecl{Name: name, Kind: "struct"}
	for i := 0; i+1 < len(fieldPairs); i += 2 {
		td.Fields = append(td.Fields, sir.FieldDecl{Name: fieldPairs[i], Type: fieldPairs[i+1]})
	}
	b.prog.Types = append(b.prog.Types, td)
	return b
}

// EnumType declares an enum with alternating variant name/payload pairs.
// An empty payload name declares a unit variant.
func (b *ProgramBuilder) EnumType(name string, variantPairs ...string) *ProgramBuilder {
	td := sir.TypeDecl{Name: name, Kind: "enum"}
	for i := 0; i+1 < len(variantPairs); i += 2 {
		td.Variants = append(td.Variants, sir.VariantDecl{Name: variantPairs[i], Type: variantPairs[i+1]})
	}
	b.prog.Types = append(b.prog.Types, td)
	return b
}

// Libfunc declares a library function instance and returns its ID.
// Re-declaring the same key returns the existing ID.
func (b *ProgramBuilder) Libfunc(name string, generics []sir.GenericArg, inputs, outputs []string) sir.LibfuncID {
	key := sir.GenericKey(name, generics)
	if id, ok := b.lfs[key]; ok {
		return id
	}
	id := sir.LibfuncID(len(b.prog.Libfuncs))
	b.prog.Libfuncs = append(b.prog.Libfuncs, sir.LibfuncDecl{
		Name:     name,
		Generics: generics,
		Inputs:   inputs,
		Outputs:  outputs,
	})
	b.lfs[key] = id
	return id
}

// TypeArg and ValueArg build generic arguments.
func TypeArg(name string) sir.GenericArg { return sir.GenericArg{Type: name} }
func ValueArg(v string) sir.GenericArg   { return sir.GenericArg{Value: v} }

// Func opens a function; finish it with its block statements and Build.
func (b *ProgramBuilder) Func(name string, results ...string) *FuncBuilder {
	return &FuncBuilder{
		parent: b,
		fn:     sir.Func{Name: name, Results: results},
	}
}

// Build returns the assembled program.
func (b *ProgramBuilder) Build() *sir.Program {
	p := b.prog
	return &p
}

// FuncBuilder assembles one function's parameters and block graph.
type FuncBuilder struct {
	parent *ProgramBuilder
	fn     sir.Func
}

// Param declares an entry parameter visible under id.
func (fb *FuncBuilder) Param(id sir.ValueID, typ string) *FuncBuilder {
	fb.fn.Params = append(fb.fn.Params, sir.Param{ID: id, Type: typ})
	return fb
}

// Block appends an empty block and returns its ID.
func (fb *FuncBuilder) Block() sir.BlockID {
	fb.fn.Blocks = append(fb.fn.Blocks, sir.Block{})
	return sir.BlockID(len(fb.fn.Blocks) - 1)
}

// Invoke appends a libfunc application to block b.
func (fb *FuncBuilder) Invoke(b sir.BlockID, lf sir.LibfuncID, inputs, outputs []sir.ValueID, branches ...sir.BranchTarget) *FuncBuilder {
	fb.fn.Blocks[b].Stmts = append(fb.fn.Blocks[b].Stmts, sir.Statement{
		Kind:     sir.StmtInvoke,
		Libfunc:  lf,
		Inputs:   inputs,
		Outputs:  outputs,
		Branches: branches,
	})
	return fb
}

// Return appends a return of the listed values to block b.
func (fb *FuncBuilder) Return(b sir.BlockID, values ...sir.ValueID) *FuncBuilder {
	fb.fn.Blocks[b].Stmts = append(fb.fn.Blocks[b].Stmts, sir.Statement{
		Kind:   sir.StmtReturn,
		Inputs: values,
	})
	return fb
}

// To builds a branch target.
func To(b sir.BlockID, args ...sir.ValueID) sir.BranchTarget {
	return sir.BranchTarget{Block: b, Args: args}
}

// Vals is shorthand for a value list.
func Vals(vs ...sir.ValueID) []sir.ValueID { return vs }

// Done closes the function, adding it to the program.
func (fb *FuncBuilder) Done() *ProgramBuilder {
	if len(fb.fn.Blocks) == 0 {
		fb.fn.Blocks = append(fb.fn.Blocks, sir.Block{})
	}
	fb.parent.prog.Funcs = append(fb.parent.prog.Funcs, fb.fn)
	return fb.parent
}
