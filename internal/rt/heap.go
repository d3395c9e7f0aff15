package rt

import (
	"sync"
	"sync/atomic"

	"tern/internal/types"
)

// ObjectKind identifies the heap object shape.
type ObjectKind uint8

const (
	OKInvalid ObjectKind = iota
	OKArray
	OKDict
	OKBox
)

// Object is one heap allocation. The reference count is atomic because
// compiled entry points may be invoked concurrently from multiple threads;
// all other mutation happens under the heap lock.
type Object struct {
	Kind   ObjectKind
	TypeID types.TypeID
	Refs   atomic.Int64
	Alive  bool

	Arr []Value // OKArray

	DictEntries map[string]*dictEntry // OKDict, keyed by canonical felt text
	DictOrder   []string              // first-insert order
	Squashed    bool

	Boxed Value // OKBox
}

// DefaultBudget bounds the number of live heap value slots per heap.
const DefaultBudget = 1 << 22

// Heap stores all runtime objects produced by one module's executions.
// Handles are monotonically increasing and never reused within a run.
// Exceeding the slot budget yields an out-of-memory panic value.
type Heap struct {
	mu     sync.Mutex
	next   Handle
	objs   map[Handle]*Object
	Budget int64
	used   atomic.Int64
}

// NewHeap constructs a heap with the default memory budget.
func NewHeap() *Heap {
	return &Heap{
		next:   1,
		objs:   make(map[Handle]*Object, 128),
		Budget: DefaultBudget,
	}
}

func (h *Heap) reserve(slots int64) *Panic {
	budget := h.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	if h.used.Add(slots) > budget {
		h.used.Add(-slots)
		return NewPanic(PanicOutOfMemory, "heap budget exhausted")
	}
	return nil
}

func (h *Heap) alloc(kind ObjectKind, typeID types.TypeID) (Handle, *Object, *Panic) {
	if p := h.reserve(1); p != nil {
		return 0, nil, p
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.objs == nil {
		h.objs = make(map[Handle]*Object, 128)
	}
	if h.next == 0 {
		h.next = 1
	}
	handle := h.next
	h.next++
	obj := &Object{
		Kind:   kind,
		TypeID: typeID,
		Alive:  true,
	}
	obj.Refs.Store(1)
	h.objs[handle] = obj
	return handle, obj, nil
}

// Get returns the live object for a handle.
func (h *Heap) Get(handle Handle) (*Object, *Panic) {
	h.mu.Lock()
	obj, ok := h.objs[handle]
	h.mu.Unlock()
	if !ok || obj == nil || !obj.Alive {
		return nil, NewPanic(PanicInvalidDictAccess, "invalid heap handle")
	}
	return obj, nil
}

// Retain atomically increments the reference count of a heap value.
func (h *Heap) Retain(handle Handle) {
	obj, p := h.Get(handle)
	if p != nil {
		return
	}
	obj.Refs.Add(1)
}

// Release atomically decrements the reference count and frees the object
// when it reaches zero, releasing contained heap values in turn.
func (h *Heap) Release(handle Handle) {
	obj, p := h.Get(handle)
	if p != nil {
		return
	}
	if obj.Refs.Add(-1) > 0 {
		return
	}
	h.free(handle, obj)
}

func (h *Heap) free(handle Handle, obj *Object) {
	h.mu.Lock()
	if !obj.Alive {
		h.mu.Unlock()
		return
	}
	obj.Alive = false
	// Handles are never reused, so a freed entry would otherwise pin the
	// map slot for the lifetime of the heap.
	delete(h.objs, handle)
	h.mu.Unlock()

	switch obj.Kind {
	case OKArray:
		for _, v := range obj.Arr {
			h.releaseContained(v)
		}
		h.used.Add(-int64(len(obj.Arr)) - 1)
		obj.Arr = nil
	case OKDict:
		for _, e := range obj.DictEntries {
			h.releaseContained(e.Val)
		}
		h.used.Add(-int64(len(obj.DictEntries)) - 1)
		obj.DictEntries = nil
		obj.DictOrder = nil
	case OKBox:
		h.releaseContained(obj.Boxed)
		h.used.Add(-2)
		obj.Boxed = Value{}
	default:
		h.used.Add(-1)
	}
}

func (h *Heap) releaseContained(v Value) {
	if v.Kind == VKHandle && v.H != 0 {
		h.Release(v.H)
	}
	for _, f := range v.Fields {
		h.releaseContained(f)
	}
	if v.Payload != nil {
		h.releaseContained(*v.Payload)
	}
}

// Live reports whether a handle refers to a live object. Test helper.
func (h *Heap) Live(handle Handle) bool {
	h.mu.Lock()
	obj, ok := h.objs[handle]
	h.mu.Unlock()
	return ok && obj != nil && obj.Alive
}

// ObjectCount reports the number of tracked handles. Test helper.
func (h *Heap) ObjectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objs)
}
