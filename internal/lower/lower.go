package lower

import (
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"tern/internal/diag"
	"tern/internal/gas"
	"tern/internal/layout"
	"tern/internal/native"
	"tern/internal/sir"
	"tern/internal/types"
)

// Options configures one compilation.
type Options struct {
	Target layout.Target
	Model  *gas.CostModel
	// Workers bounds concurrent function lowerings; 0 means GOMAXPROCS.
	Workers int
	// OnFunc, when set, is called as each function finishes lowering.
	// It may be called from multiple goroutines.
	OnFunc func(name string, failed bool)
}

// Program lowers a resolved program to a native module. Each function is
// an independent lowering task: the registry, the resolved program and the
// layout cache are published once and read-only afterwards, so functions
// compile in parallel. Diagnostics are collected per function and merged
// in declaration order so output is deterministic regardless of
// scheduling.
func Program(res *sir.Resolved, opts Options, bag *diag.Bag) (*native.Module, error) {
	if opts.Model == nil {
		opts.Model = gas.DefaultModel()
	}
	eng := layout.New(opts.Target, res.Types)

	ids := make([]types.TypeID, 0, len(res.TypeByName))
	for _, id := range res.TypeByName {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if err := eng.ResolveAll(ids); err != nil {
		bag.Add(diag.NewError(diag.LayoutRecursiveUnsized, diag.NoLoc, err.Error()))
		return nil, bag.Err()
	}

	registry := NewRegistry()
	funcs := make([]*native.Func, len(res.Prog.Funcs))
	bags := make([]*diag.Bag, len(res.Prog.Funcs))

	var g errgroup.Group
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i := range res.Prog.Funcs {
		i := i
		g.Go(func() error {
			fb := diag.NewBag(64)
			bags[i] = fb
			fn := &res.Prog.Funcs[i]
			defer func() {
				if opts.OnFunc != nil {
					opts.OnFunc(fn.Name, fb.HasErrors())
				}
			}()
			if err := gas.Annotate(fn, res, eng, opts.Model, fb); err != nil {
				return nil
			}
			out, err := newFuncLowerer(res, eng, registry, fn, fb).lower()
			if err != nil {
				return nil
			}
			funcs[i] = out
			return nil
		})
	}
	_ = g.Wait()

	failed := false
	for _, fb := range bags {
		bag.Merge(fb)
		if fb.HasErrors() {
			failed = true
		}
	}
	if failed {
		return nil, bag.Err()
	}

	mod := &native.Module{
		Funcs:           funcs,
		Descs:           make([]native.Descriptor, len(funcs)),
		ByName:          make(map[string]int, len(funcs)),
		SquashAccessGas: opts.Model.DictAccessWeight,
	}
	for i := range res.Prog.Funcs {
		desc, err := describe(&res.Prog.Funcs[i], res, eng)
		if err != nil {
			bag.Add(diag.NewError(diag.LayoutUndeclaredElem, diag.NoLoc, err.Error()))
			return nil, bag.Err()
		}
		mod.Descs[i] = desc
		mod.ByName[desc.Symbol] = i
	}
	return mod, nil
}

// describe builds the marshaling contract of one entry point. The gas
// bound is attached only when the block graph is loop-free.
func describe(fn *sir.Func, res *sir.Resolved, eng *layout.Engine) (native.Descriptor, error) {
	desc := native.Descriptor{Symbol: fn.Name}
	for i, p := range fn.Params {
		t := res.TypeOf(p.Type)
		lay, err := eng.LayoutOf(t)
		if err != nil {
			return desc, fmt.Errorf("parameter %d of %q: %w", i, fn.Name, err)
		}
		desc.ParamTypes = append(desc.ParamTypes, t)
		desc.Params = append(desc.Params, lay)
	}
	for i, rn := range fn.Results {
		t := res.TypeOf(rn)
		lay, err := eng.LayoutOf(t)
		if err != nil {
			return desc, fmt.Errorf("result %d of %q: %w", i, fn.Name, err)
		}
		desc.ResultTypes = append(desc.ResultTypes, t)
		desc.Results = append(desc.Results, lay)
	}
	if bound, ok := gas.PathBound(fn); ok {
		desc.GasBound = bound
		desc.HasGasBound = true
	}
	return desc, nil
}
