package rt_test

import (
	"math/big"
	"testing"

	"tern/internal/rt"
	"tern/internal/types"
)

func felt(v int64) *big.Int { return big.NewInt(v) }

func TestFeltArithmeticWraps(t *testing.T) {
	pm1 := new(big.Int).Sub(rt.Prime(), big.NewInt(1))
	if got := rt.FeltAdd(pm1, felt(1)); got.Sign() != 0 {
		t.Errorf("(p-1)+1 = %v, want 0", got)
	}
	if got := rt.FeltSub(felt(0), felt(1)); got.Cmp(pm1) != 0 {
		t.Errorf("0-1 = %v, want p-1", got)
	}
	if got := rt.FeltMul(felt(3), felt(4)); got.Cmp(felt(12)) != 0 {
		t.Errorf("3*4 = %v, want 12", got)
	}
}

func TestFeltDivInvertsMul(t *testing.T) {
	a, b := felt(123456789), felt(97)
	prod := rt.FeltMul(a, b)
	q, p := rt.FeltDiv(prod, b)
	if p != nil {
		t.Fatalf("FeltDiv panicked: %v", p)
	}
	if q.Cmp(a) != 0 {
		t.Errorf("(a*b)/b = %v, want %v", q, a)
	}
}

func TestFeltDivByZero(t *testing.T) {
	// The divisor reduces to zero even though the literal is the prime.
	_, p := rt.FeltDiv(felt(7), rt.Prime())
	if p == nil || p.Code != rt.PanicDivByZero {
		t.Fatalf("FeltDiv by p gave %v, want DivByZero panic", p)
	}
}

func TestParseFelt(t *testing.T) {
	v, err := rt.ParseFelt("42")
	if err != nil || v.Cmp(felt(42)) != 0 {
		t.Fatalf("ParseFelt(42) = %v, %v", v, err)
	}
	if _, err := rt.ParseFelt("0x1f"); err == nil {
		t.Error("ParseFelt accepted a non-decimal literal")
	}
}

func TestArrayAppendGrowGet(t *testing.T) {
	h := rt.NewHeap()
	arr, p := h.AllocArray(types.NoTypeID)
	if p != nil {
		t.Fatalf("AllocArray: %v", p)
	}
	for i := uint64(0); i < 10; i++ {
		if p := h.ArrayAppend(arr, rt.UintVal(types.NoTypeID, i)); p != nil {
			t.Fatalf("ArrayAppend(%d): %v", i, p)
		}
	}
	if n, _ := h.ArrayLen(arr); n != 10 {
		t.Errorf("ArrayLen = %d, want 10", n)
	}
	v, p := h.ArrayGet(arr, 9)
	if p != nil || v.U64 != 9 {
		t.Errorf("ArrayGet(9) = %v, %v", v, p)
	}
	if _, p := h.ArrayGet(arr, 10); p == nil || p.Code != rt.PanicIndexOutOfRange {
		t.Errorf("ArrayGet(10) gave %v, want IndexOutOfRange panic", p)
	}
}

func TestArrayPopFront(t *testing.T) {
	h := rt.NewHeap()
	arr, _ := h.AllocArray(types.NoTypeID)
	_ = h.ArrayAppend(arr, rt.UintVal(types.NoTypeID, 1))
	_ = h.ArrayAppend(arr, rt.UintVal(types.NoTypeID, 2))

	v, ok, p := h.ArrayPopFront(arr)
	if p != nil || !ok || v.U64 != 1 {
		t.Fatalf("first pop = %v, %v, %v", v, ok, p)
	}
	if _, ok, _ := h.ArrayPopFront(arr); !ok {
		t.Fatal("second pop reported empty")
	}
	// Emptiness is an ordinary outcome, not a panic.
	if _, ok, p := h.ArrayPopFront(arr); ok || p != nil {
		t.Fatalf("empty pop = %v, %v, want ok=false and no panic", ok, p)
	}
}

func TestDictGetInstallsZeroBinding(t *testing.T) {
	h := rt.NewHeap()
	d, _ := h.AllocDict(types.NoTypeID)
	zero := rt.UintVal(types.NoTypeID, 0)

	v, p := h.DictGet(d, felt(5), zero)
	if p != nil || v.U64 != 0 {
		t.Fatalf("DictGet(missing) = %v, %v", v, p)
	}
	if n, _ := h.DictLen(d); n != 1 {
		t.Errorf("DictLen after read of missing key = %d, want 1", n)
	}
}

func TestDictInsertThenGet(t *testing.T) {
	h := rt.NewHeap()
	d, _ := h.AllocDict(types.NoTypeID)
	if p := h.DictInsert(d, felt(1), rt.UintVal(types.NoTypeID, 10)); p != nil {
		t.Fatalf("DictInsert: %v", p)
	}
	if p := h.DictInsert(d, felt(1), rt.UintVal(types.NoTypeID, 11)); p != nil {
		t.Fatalf("DictInsert overwrite: %v", p)
	}
	v, p := h.DictGet(d, felt(1), rt.Unit())
	if p != nil || v.U64 != 11 {
		t.Errorf("DictGet = %v, %v, want 11", v, p)
	}
	if n, _ := h.DictLen(d); n != 1 {
		t.Errorf("DictLen = %d, want 1", n)
	}
}

func TestDictKeysReduceModPrime(t *testing.T) {
	h := rt.NewHeap()
	d, _ := h.AllocDict(types.NoTypeID)
	_ = h.DictInsert(d, felt(3), rt.UintVal(types.NoTypeID, 30))
	alias := new(big.Int).Add(rt.Prime(), felt(3))
	v, p := h.DictGet(d, alias, rt.Unit())
	if p != nil || v.U64 != 30 {
		t.Errorf("DictGet(p+3) = %v, %v, want binding of key 3", v, p)
	}
}

func TestDictSquash(t *testing.T) {
	h := rt.NewHeap()
	d, _ := h.AllocDict(types.NoTypeID)
	_ = h.DictInsert(d, felt(9), rt.UintVal(types.NoTypeID, 90))
	_ = h.DictInsert(d, felt(2), rt.UintVal(types.NoTypeID, 20))

	sq, p := h.DictSquash(d)
	if p != nil {
		t.Fatalf("DictSquash: %v", p)
	}
	items, p := h.DictItems(sq)
	if p != nil {
		t.Fatalf("DictItems: %v", p)
	}
	if len(items) != 2 || items[0].Key.Cmp(felt(2)) != 0 || items[1].Key.Cmp(felt(9)) != 0 {
		t.Errorf("squashed items = %+v, want keys ordered 2, 9", items)
	}

	// The source is sealed after squashing.
	if _, p := h.DictGet(d, felt(2), rt.Unit()); p == nil || p.Code != rt.PanicInvalidDictAccess {
		t.Errorf("access to squashed source gave %v, want InvalidDictAccess panic", p)
	}
}

func TestDictRemove(t *testing.T) {
	h := rt.NewHeap()
	d, _ := h.AllocDict(types.NoTypeID)
	_ = h.DictInsert(d, felt(1), rt.UintVal(types.NoTypeID, 10))
	_ = h.DictInsert(d, felt(2), rt.UintVal(types.NoTypeID, 20))

	if p := h.DictRemove(d, felt(1)); p != nil {
		t.Fatalf("DictRemove: %v", p)
	}
	if n, _ := h.DictLen(d); n != 1 {
		t.Errorf("DictLen after remove = %d, want 1", n)
	}
	items, _ := h.DictItems(d)
	if len(items) != 1 || items[0].Key.Cmp(felt(2)) != 0 {
		t.Errorf("surviving items = %+v, want only key 2", items)
	}

	// Removing a missing key is an ordinary no-op.
	if p := h.DictRemove(d, felt(7)); p != nil {
		t.Errorf("remove of missing key gave %v, want no panic", p)
	}
	if n, _ := h.DictLen(d); n != 1 {
		t.Errorf("DictLen after no-op remove = %d, want 1", n)
	}
}

func TestDictAccessCount(t *testing.T) {
	h := rt.NewHeap()
	d, _ := h.AllocDict(types.NoTypeID)
	_ = h.DictInsert(d, felt(1), rt.UintVal(types.NoTypeID, 10))
	_, _ = h.DictGet(d, felt(1), rt.Unit())
	_, _ = h.DictGet(d, felt(5), rt.Unit())

	n, p := h.DictAccessCount(d)
	if p != nil || n != 3 {
		t.Fatalf("DictAccessCount = %d, %v, want 3", n, p)
	}

	// The squashed snapshot starts with a clean slate.
	sq, _ := h.DictSquash(d)
	if n, _ := h.DictAccessCount(sq); n != 0 {
		t.Errorf("squashed access count = %d, want 0", n)
	}
}

func TestRetainReleaseFrees(t *testing.T) {
	h := rt.NewHeap()
	arr, _ := h.AllocArray(types.NoTypeID)
	h.Retain(arr)
	h.Release(arr)
	if !h.Live(arr) {
		t.Fatal("object freed while a reference remained")
	}
	h.Release(arr)
	if h.Live(arr) {
		t.Fatal("object still live after last release")
	}
}

func TestReleaseDropsHandleEntry(t *testing.T) {
	h := rt.NewHeap()
	base := h.ObjectCount()
	for i := 0; i < 100; i++ {
		arr, p := h.AllocArray(types.NoTypeID)
		if p != nil {
			t.Fatalf("AllocArray: %v", p)
		}
		h.Release(arr)
	}
	// Freed handles must not accumulate in a long-lived heap.
	if got := h.ObjectCount(); got != base {
		t.Errorf("ObjectCount after churn = %d, want %d", got, base)
	}
}

func TestReleaseCascadesThroughBox(t *testing.T) {
	h := rt.NewHeap()
	arr, _ := h.AllocArray(types.NoTypeID)
	box, p := h.AllocBox(types.NoTypeID, rt.HandleVal(types.NoTypeID, arr))
	if p != nil {
		t.Fatalf("AllocBox: %v", p)
	}
	h.Release(box)
	if h.Live(arr) {
		t.Error("boxed array survived the release of its box")
	}
}

func TestHeapBudgetExhaustion(t *testing.T) {
	h := rt.NewHeap()
	h.Budget = 2
	arr, p := h.AllocArray(types.NoTypeID)
	if p != nil {
		t.Fatalf("AllocArray: %v", p)
	}
	if p := h.ArrayAppend(arr, rt.Unit()); p != nil {
		t.Fatalf("first append: %v", p)
	}
	p = h.ArrayAppend(arr, rt.Unit())
	if p == nil || p.Code != rt.PanicOutOfMemory {
		t.Fatalf("append past budget gave %v, want OutOfMemory panic", p)
	}
}

func TestPanicString(t *testing.T) {
	p := rt.NewPanic(rt.PanicExplicit, "boom").WithFelt(felt(7))
	s := p.String()
	if s == "" || p.Code != rt.PanicExplicit {
		t.Errorf("panic rendered as %q", s)
	}
}
