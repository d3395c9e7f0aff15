// Package layout resolves the size, alignment and native encoding of every
// declared IR type. Layouts are computed once, cached, and immutable after
// resolution; the engine may be shared read-only across concurrent
// lowerings once ResolveAll has returned.
package layout

import (
	"fmt"

	"tern/internal/types"
)

// TypeLayout is the resolved native layout of a type.
type TypeLayout struct {
	Size  int
	Align int

	// Struct-only:
	FieldOffsets []int
	FieldAligns  []int

	// Enum-only: discriminant encoding and payload placement.
	TagSize       int
	TagAlign      int
	PayloadOffset int

	// Heap reports whether the value is a header over a separately
	// allocated, resizable region (arrays and dicts) or a pointer (box).
	Heap bool
}

// Engine computes memory layout for types.
type Engine struct {
	Target Target
	Types  *types.Interner

	cache *cache
}

// New creates a new layout Engine for the specified target.
func New(target Target, typesIn *types.Interner) *Engine {
	return &Engine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		stack: nil,
		index: make(map[types.TypeID]int, 32),
	}
}

// LayoutOf computes and caches the layout of a type.
func (e *Engine) LayoutOf(t types.TypeID) (TypeLayout, error) {
	layout, err := e.layoutOf(t, newLayoutState())
	if err != nil {
		return layout, err
	}
	return layout, nil
}

func (e *Engine) layoutOf(t types.TypeID, state *layoutState) (TypeLayout, *Error) {
	if e.cache == nil {
		e.cache = newCache()
	}
	if cached, ok := e.cache.get(t); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[t]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		err := &Error{
			Kind:  ErrRecursiveUnsized,
			Type:  t,
			Cycle: cycle,
		}
		e.cache.put(t, &entry{Layout: TypeLayout{Size: 0, Align: 1}, Err: err})
		return TypeLayout{Size: 0, Align: 1}, err
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	layout, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	e.cache.put(t, &entry{Layout: layout, Err: err})
	return layout, err
}

// ResolveAll computes layouts for every listed type, failing on the first
// unresolvable one. After a successful ResolveAll the cache is complete and
// the engine is safe for concurrent readers.
func (e *Engine) ResolveAll(ids []types.TypeID) error {
	for _, id := range ids {
		if _, err := e.LayoutOf(id); err != nil {
			return err
		}
	}
	return nil
}

// SizeOf returns the size of a type in bytes.
func (e *Engine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *Engine) AlignOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// FieldOffset returns the byte offset of a struct field.
func (e *Engine) FieldOffset(structT types.TypeID, fieldIdx int) (int, error) {
	l, err := e.LayoutOf(structT)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.FieldOffsets) {
		return 0, fmt.Errorf("type %s has no field %d", e.Types.Label(structT), fieldIdx)
	}
	return l.FieldOffsets[fieldIdx], nil
}
