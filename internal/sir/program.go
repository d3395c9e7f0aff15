// Package sir defines the typed, stack-oriented, linear-value intermediate
// representation consumed by the backend, together with its serialized
// form. The model is immutable once decoded; the gas pass is the only
// writer of the per-statement annotation fields.
package sir

// Program is one compilation unit: declared types, declared library
// function instances, and functions over them.
type Program struct {
	Types    []TypeDecl    `msgpack:"types"`
	Libfuncs []LibfuncDecl `msgpack:"libfuncs"`
	Funcs    []Func        `msgpack:"funcs"`
}

// TypeDecl declares one named type. Composite and heap declarations
// reference other declarations by name; forward references are allowed,
// mutual recursion is legal only through box indirection.
type TypeDecl struct {
	Name     string        `msgpack:"name"`
	Kind     string        `msgpack:"kind"` // felt|bool|u8|u16|u32|u64|u128|unit|struct|enum|array|dict|box|nonzero
	Fields   []FieldDecl   `msgpack:"fields,omitempty"`
	Variants []VariantDecl `msgpack:"variants,omitempty"`
	Elem     string        `msgpack:"elem,omitempty"`
}

// FieldDecl is one ordered struct member.
type FieldDecl struct {
	Name string `msgpack:"name"`
	Type string `msgpack:"type"`
}

// VariantDecl is one enum alternative. An empty Type means a unit payload.
type VariantDecl struct {
	Name string `msgpack:"name"`
	Type string `msgpack:"type,omitempty"`
}

// GenericArg is one generic argument of a libfunc instance: either a type
// reference or a literal value (decimal string, e.g. a felt constant).
type GenericArg struct {
	Type  string `msgpack:"type,omitempty"`
	Value string `msgpack:"value,omitempty"`
}

// LibfuncDecl declares one concrete library-function instance: an
// operation name specialized with generic arguments, plus its declared
// input and output type lists. Statements reference instances by index.
type LibfuncDecl struct {
	Name     string       `msgpack:"name"`
	Generics []GenericArg `msgpack:"generics,omitempty"`
	Inputs   []string     `msgpack:"inputs"`
	Outputs  []string     `msgpack:"outputs"`
}

// Func is a named entry point with its parameters, declared result types
// and block graph. Functions are immutable once constructed.
type Func struct {
	Name    string   `msgpack:"name"`
	Params  []Param  `msgpack:"params"`
	Results []string `msgpack:"results"`
	Blocks  []Block  `msgpack:"blocks"`
	Entry   BlockID  `msgpack:"entry"`
}

// Param binds a function parameter to the ValueID it is visible under in
// the entry block.
type Param struct {
	ID   ValueID `msgpack:"id"`
	Type string  `msgpack:"type"`
}

// Block is an ordered statement sequence. The final statement is the
// block's only control transfer: a return, or an invocation carrying at
// least one branch target. Earlier statements are straight-line.
type Block struct {
	Stmts []Statement `msgpack:"stmts"`
}

// StmtKind discriminates statement forms.
type StmtKind uint8

const (
	// StmtInvoke applies a library function instance.
	StmtInvoke StmtKind = iota
	// StmtReturn leaves the function with the listed values.
	StmtReturn
)

// Statement applies a library function to input values, producing output
// values and, for terminators, successor branch targets.
//
// Gas and RC are annotations written by the gas/metadata pass over the
// already-built block graph; they are zero until that pass runs.
type Statement struct {
	Kind     StmtKind       `msgpack:"kind"`
	Libfunc  LibfuncID      `msgpack:"libfunc"`
	Inputs   []ValueID      `msgpack:"inputs,omitempty"`
	Outputs  []ValueID      `msgpack:"outputs,omitempty"`
	Branches []BranchTarget `msgpack:"branches,omitempty"`

	Gas uint64     `msgpack:"-"`
	RC  []RCAdjust `msgpack:"-"`
}

// BranchTarget is a destination block plus the ordered live values passed
// into it across the edge.
type BranchTarget struct {
	Block BlockID   `msgpack:"block"`
	Args  []ValueID `msgpack:"args,omitempty"`
}

// RCAdjust records a reference-count delta for a heap-typed value,
// consumed during lowering to emit retain/release runtime calls.
type RCAdjust struct {
	Value ValueID
	Delta int
}

// IsTerminator reports whether the statement transfers control: a return
// or a branching invocation.
func (s *Statement) IsTerminator() bool {
	return s.Kind == StmtReturn || len(s.Branches) > 0
}
