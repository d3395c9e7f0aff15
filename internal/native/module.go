package native

import (
	"tern/internal/layout"
	"tern/internal/types"
)

// Block is an ordered instruction sequence with a single terminator.
type Block struct {
	ID     BlockID
	Instrs []Instr
	Term   Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// Func is one lowered function: a frame of typed virtual registers and a
// block graph with a single entry. Parameters occupy registers 0..N-1.
type Func struct {
	Name      string
	NumParams int
	RegTypes  []types.TypeID
	Blocks    []Block
	Entry     BlockID
}

// Descriptor is the marshaling contract of one entry point: the ordered
// parameter and result layouts, plus a static gas upper bound when the
// block graph is loop-free.
type Descriptor struct {
	Symbol      string
	ParamTypes  []types.TypeID
	Params      []layout.TypeLayout
	ResultTypes []types.TypeID
	Results     []layout.TypeLayout
	GasBound    uint64
	HasGasBound bool
}

// Module is the finished compilation artifact: one symbol per function and
// its descriptor, consumed by the execution layer. Read-only after
// lowering completes.
type Module struct {
	Funcs  []*Func
	Descs  []Descriptor
	ByName map[string]int

	// SquashAccessGas is the per-recorded-access price a dictionary squash
	// pays at run time, on top of its static charge. The access count is
	// only known when the squash executes.
	SquashAccessGas uint64
}

// Lookup returns the function and descriptor for a symbol.
func (m *Module) Lookup(symbol string) (*Func, *Descriptor, bool) {
	idx, ok := m.ByName[symbol]
	if !ok || idx >= len(m.Funcs) {
		return nil, nil, false
	}
	return m.Funcs[idx], &m.Descs[idx], true
}
