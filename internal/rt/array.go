package rt

import (
	"fmt"

	"tern/internal/types"
)

// AllocArray allocates an empty array of the given element type.
func (h *Heap) AllocArray(typeID types.TypeID) (Handle, *Panic) {
	handle, _, p := h.alloc(OKArray, typeID)
	return handle, p
}

// ArrayAppend appends an element, growing the backing region. Mutation is
// visible only through the updated header; the handle stays valid.
func (h *Heap) ArrayAppend(handle Handle, v Value) *Panic {
	obj, p := h.Get(handle)
	if p != nil {
		return p
	}
	if p := h.reserve(1); p != nil {
		return p
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	// Doubling growth keeps appends amortized constant; the runtime owns
	// the region, compiled code only sees the header.
	if len(obj.Arr) == cap(obj.Arr) {
		newCap := cap(obj.Arr) * 2
		if newCap < 4 {
			newCap = 4
		}
		grown := make([]Value, len(obj.Arr), newCap)
		copy(grown, obj.Arr)
		obj.Arr = grown
	}
	obj.Arr = append(obj.Arr, v)
	return nil
}

// ArrayLen reads the header length.
func (h *Heap) ArrayLen(handle Handle) (uint64, *Panic) {
	obj, p := h.Get(handle)
	if p != nil {
		return 0, p
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(len(obj.Arr)), nil
}

// ArrayGet is a bounds-checked element read.
func (h *Heap) ArrayGet(handle Handle, idx uint64) (Value, *Panic) {
	obj, p := h.Get(handle)
	if p != nil {
		return Value{}, p
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if idx >= uint64(len(obj.Arr)) {
		return Value{}, NewPanic(PanicIndexOutOfRange,
			fmt.Sprintf("array index %d out of range [0, %d)", idx, len(obj.Arr)))
	}
	return obj.Arr[idx], nil
}

// ArrayPopFront removes and returns the first element; ok is false on an
// empty array (not a panic — emptiness is an ordinary branch outcome).
func (h *Heap) ArrayPopFront(handle Handle) (Value, bool, *Panic) {
	obj, p := h.Get(handle)
	if p != nil {
		return Value{}, false, p
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(obj.Arr) == 0 {
		return Value{}, false, nil
	}
	v := obj.Arr[0]
	obj.Arr = obj.Arr[1:]
	h.used.Add(-1)
	return v, true, nil
}
