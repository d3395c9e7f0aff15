package rt

import "tern/internal/types"

// AllocBox moves a value behind a heap pointer.
func (h *Heap) AllocBox(typeID types.TypeID, v Value) (Handle, *Panic) {
	handle, obj, p := h.alloc(OKBox, typeID)
	if p != nil {
		return 0, p
	}
	if p := h.reserve(1); p != nil {
		return 0, p
	}
	h.mu.Lock()
	obj.Boxed = v
	h.mu.Unlock()
	return handle, nil
}

// Unbox loads the value behind a box pointer.
func (h *Heap) Unbox(handle Handle) (Value, *Panic) {
	obj, p := h.Get(handle)
	if p != nil {
		return Value{}, p
	}
	if obj.Kind != OKBox {
		return Value{}, NewPanic(PanicInvalidDictAccess, "handle is not a box")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return obj.Boxed, nil
}
