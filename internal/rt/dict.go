package rt

import (
	"math/big"
	"sort"

	"tern/internal/types"
)

type dictEntry struct {
	Key *big.Int
	Val Value
	// Accesses counts reads and writes of the key, feeding the squash
	// cost model.
	Accesses int
}

// AllocDict allocates an empty felt-keyed dictionary.
func (h *Heap) AllocDict(typeID types.TypeID) (Handle, *Panic) {
	handle, obj, p := h.alloc(OKDict, typeID)
	if p != nil {
		return 0, p
	}
	h.mu.Lock()
	obj.DictEntries = make(map[string]*dictEntry, 8)
	h.mu.Unlock()
	return handle, nil
}

func dictKey(key *big.Int) string {
	return FeltMod(key).Text(16)
}

func (h *Heap) dict(handle Handle) (*Object, *Panic) {
	obj, p := h.Get(handle)
	if p != nil {
		return nil, p
	}
	if obj.Kind != OKDict {
		return nil, NewPanic(PanicInvalidDictAccess, "handle is not a dictionary")
	}
	if obj.Squashed {
		return nil, NewPanic(PanicInvalidDictAccess, "dictionary already squashed")
	}
	return obj, nil
}

// DictGet returns the binding for key, or zero when the key was never
// inserted. A read of a missing key installs the zero binding, so later
// squashing reflects every accessed key.
func (h *Heap) DictGet(handle Handle, key *big.Int, zero Value) (Value, *Panic) {
	obj, p := h.dict(handle)
	if p != nil {
		return Value{}, p
	}
	k := dictKey(key)
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := obj.DictEntries[k]; ok {
		e.Accesses++
		return e.Val, nil
	}
	if p := h.reserve(1); p != nil {
		return Value{}, p
	}
	obj.DictEntries[k] = &dictEntry{Key: FeltMod(key), Val: zero, Accesses: 1}
	obj.DictOrder = append(obj.DictOrder, k)
	return zero, nil
}

// DictInsert writes the binding for key.
func (h *Heap) DictInsert(handle Handle, key *big.Int, v Value) *Panic {
	obj, p := h.dict(handle)
	if p != nil {
		return p
	}
	k := dictKey(key)
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := obj.DictEntries[k]; ok {
		e.Val = v
		e.Accesses++
		return nil
	}
	if p := h.reserve(1); p != nil {
		return p
	}
	obj.DictEntries[k] = &dictEntry{Key: FeltMod(key), Val: v, Accesses: 1}
	obj.DictOrder = append(obj.DictOrder, k)
	return nil
}

// DictRemove deletes the binding for key; removing a missing key is a
// no-op.
func (h *Heap) DictRemove(handle Handle, key *big.Int) *Panic {
	obj, p := h.dict(handle)
	if p != nil {
		return p
	}
	k := dictKey(key)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := obj.DictEntries[k]; !ok {
		return nil
	}
	delete(obj.DictEntries, k)
	for i, ok := range obj.DictOrder {
		if ok == k {
			obj.DictOrder = append(obj.DictOrder[:i], obj.DictOrder[i+1:]...)
			break
		}
	}
	h.used.Add(-1)
	return nil
}

// DictSquash produces a canonical snapshot of the final bindings, ordered
// by key value, and seals the source dictionary against further access.
func (h *Heap) DictSquash(handle Handle) (Handle, *Panic) {
	obj, p := h.dict(handle)
	if p != nil {
		return 0, p
	}

	out, outObj, p := h.alloc(OKDict, obj.TypeID)
	if p != nil {
		return 0, p
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	obj.Squashed = true

	keys := make([]*big.Int, 0, len(obj.DictEntries))
	for _, e := range obj.DictEntries {
		keys = append(keys, e.Key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Cmp(keys[j]) < 0 })

	if p := h.reserve(int64(len(keys))); p != nil {
		return 0, p
	}
	outObj.DictEntries = make(map[string]*dictEntry, len(keys))
	for _, key := range keys {
		k := dictKey(key)
		src := obj.DictEntries[k]
		outObj.DictEntries[k] = &dictEntry{Key: src.Key, Val: src.Val, Accesses: 0}
		outObj.DictOrder = append(outObj.DictOrder, k)
	}
	return out, nil
}

// DictItem is one binding in insertion order, as surfaced to callers.
type DictItem struct {
	Key *big.Int
	Val Value
}

// DictItems returns the live bindings in insertion order. Unlike the
// access operations it works on squashed dictionaries too, so the
// invocation layer can decode squash results.
func (h *Heap) DictItems(handle Handle) ([]DictItem, *Panic) {
	obj, p := h.Get(handle)
	if p != nil {
		return nil, p
	}
	if obj.Kind != OKDict {
		return nil, NewPanic(PanicInvalidDictAccess, "handle is not a dictionary")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	items := make([]DictItem, 0, len(obj.DictOrder))
	for _, k := range obj.DictOrder {
		e := obj.DictEntries[k]
		items = append(items, DictItem{Key: e.Key, Val: e.Val})
	}
	return items, nil
}

// DictAccessCount sums per-key access counts; the gas model charges squash
// proportionally to it.
func (h *Heap) DictAccessCount(handle Handle) (int, *Panic) {
	obj, p := h.Get(handle)
	if p != nil {
		return 0, p
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, e := range obj.DictEntries {
		total += e.Accesses
	}
	return total, nil
}

// DictLen returns the number of live bindings.
func (h *Heap) DictLen(handle Handle) (int, *Panic) {
	obj, p := h.Get(handle)
	if p != nil {
		return 0, p
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(obj.DictEntries), nil
}
