package gas

import (
	"fmt"
	"strings"

	"tern/internal/diag"
	"tern/internal/layout"
	"tern/internal/sir"
	"tern/internal/types"
)

// Annotate augments every statement of an already-built function in place
// with its gas cost and, for heap-typed values, the reference-count deltas
// consumed during lowering. The traversal order is the block order; no
// separate walk is needed because costs are per-statement.
//
// A statement whose cost is undefined for its operation signals a version
// mismatch between the lowering registry and the cost table and is fatal.
func Annotate(fn *sir.Func, r *sir.Resolved, eng *layout.Engine, model *CostModel, bag *diag.Bag) error {
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		for si := range blk.Stmts {
			st := &blk.Stmts[si]
			loc := diag.At(fn.Name, bi, si)
			if st.Kind == sir.StmtReturn {
				st.Gas = 0
				continue
			}
			sig, ok := r.Signature(st.Libfunc)
			if !ok {
				bag.Add(diag.NewError(diag.GasUndefinedCost, loc,
					fmt.Sprintf("statement references undeclared libfunc #%d", st.Libfunc)))
				continue
			}
			cost, err := statementCost(sig, eng, model)
			if err != nil {
				bag.Add(diag.NewError(diag.GasUndefinedCost, loc, err.Error()))
				continue
			}
			st.Gas = cost
			st.RC = rcDeltas(st, sig, r.Types)
		}
	}
	return bag.Err()
}

func statementCost(sig *sir.Signature, eng *layout.Engine, model *CostModel) (uint64, error) {
	key := costKey(sig.Name)
	base, ok := model.Base[key]
	if !ok {
		return 0, fmt.Errorf("no cost defined for operation %q", sig.Name)
	}
	cost := base

	switch key {
	case "struct_pack", "struct_unpack":
		// Cost scales with the member count of the struct being moved.
		if t := structOperand(sig, eng.Types); t != types.NoTypeID {
			if info, ok := eng.Types.StructInfo(t); ok {
				cost += model.StructPerField * uint64(len(info.Fields))
			}
		}
	case "array_new", "array_append", "array_get", "array_pop":
		if elem := arrayElemOperand(sig, eng.Types); elem != types.NoTypeID {
			sz, err := eng.SizeOf(elem)
			if err != nil {
				return 0, fmt.Errorf("cost of %q needs layout of undeclared element type", sig.Name)
			}
			cost += model.ElemByteWeight * uint64(sz)
		}
	// dict_squash is priced by its base alone here; the per-access share is
	// charged at run time against the dictionary's recorded access counts.
	case "dict_get", "dict_insert":
		cost += model.DictAccessWeight
	}
	return cost, nil
}

// costKey folds the per-width integer operations onto one table row so the
// cost table stays width-agnostic: u8_mul through u128_mul all price as
// "uint_mul".
func costKey(name string) string {
	for _, w := range [...]string{"u8_", "u16_", "u32_", "u64_", "u128_"} {
		if rest, ok := strings.CutPrefix(name, w); ok {
			return "uint_" + rest
		}
	}
	return name
}

// structOperand finds the struct type a pack/unpack moves.
func structOperand(sig *sir.Signature, in *types.Interner) types.TypeID {
	for _, t := range sig.Inputs {
		if tt, ok := in.Lookup(t); ok && tt.Kind == types.KindStruct {
			return t
		}
	}
	for _, t := range sig.Outputs {
		if tt, ok := in.Lookup(t); ok && tt.Kind == types.KindStruct {
			return t
		}
	}
	return types.NoTypeID
}

// arrayElemOperand finds the element type of the array an op touches.
func arrayElemOperand(sig *sir.Signature, in *types.Interner) types.TypeID {
	scan := func(ids []types.TypeID) types.TypeID {
		for _, t := range ids {
			if tt, ok := in.Lookup(t); ok && tt.Kind == types.KindArray {
				return tt.Elem
			}
		}
		return types.NoTypeID
	}
	if t := scan(sig.Inputs); t != types.NoTypeID {
		return t
	}
	return scan(sig.Outputs)
}

// rcDeltas computes reference-count bookkeeping for heap-typed values so
// the runtime can free without a tracing collector: a duplicate retains
// its source, a drop releases its input.
func rcDeltas(st *sir.Statement, sig *sir.Signature, in *types.Interner) []sir.RCAdjust {
	switch sig.Name {
	case "dup":
		if len(st.Inputs) == 1 && len(sig.Inputs) == 1 && in.IsHeap(sig.Inputs[0]) {
			return []sir.RCAdjust{{Value: st.Inputs[0], Delta: +1}}
		}
	case "drop":
		if len(st.Inputs) == 1 && len(sig.Inputs) == 1 && in.IsHeap(sig.Inputs[0]) {
			return []sir.RCAdjust{{Value: st.Inputs[0], Delta: -1}}
		}
	}
	return nil
}
