package types

import "testing"

func TestInternDeduplicates(t *testing.T) {
	in := NewInterner()
	bi := in.Builtins()

	a := in.Intern(MakeArray(bi.Felt))
	b := in.Intern(MakeArray(bi.Felt))
	if a != b {
		t.Errorf("interning the same structural type twice gave %d and %d", a, b)
	}

	c := in.Intern(MakeArray(bi.U64))
	if c == a {
		t.Errorf("Array<felt> and Array<u64> share id %d", a)
	}
}

func TestBuiltinsStable(t *testing.T) {
	in := NewInterner()
	bi := in.Builtins()

	tt := in.MustLookup(bi.Felt)
	if tt.Kind != KindFelt {
		t.Errorf("builtin felt has kind %v", tt.Kind)
	}
	tt = in.MustLookup(bi.U128)
	if tt.Kind != KindUint || tt.Width != 128 {
		t.Errorf("builtin u128 resolved to kind %v width %d", tt.Kind, tt.Width)
	}
}

func TestReserveThenSetStruct(t *testing.T) {
	in := NewInterner()
	bi := in.Builtins()

	id := in.ReserveStruct("Pair")
	in.SetStructFields(id, []Field{
		{Name: "a", Type: bi.Felt},
		{Name: "b", Type: bi.Felt},
	})

	info, ok := in.StructInfo(id)
	if !ok {
		t.Fatal("StructInfo missing after SetStructFields")
	}
	if info.Name != "Pair" || len(info.Fields) != 2 {
		t.Errorf("got struct %q with %d fields", info.Name, len(info.Fields))
	}
}

func TestReserveThenSetEnum(t *testing.T) {
	in := NewInterner()
	bi := in.Builtins()

	id := in.ReserveEnum("Option")
	in.SetEnumVariants(id, []Variant{
		{Name: "None", Type: bi.Unit},
		{Name: "Some", Type: bi.Felt},
	})

	info, ok := in.EnumInfo(id)
	if !ok {
		t.Fatal("EnumInfo missing after SetEnumVariants")
	}
	if len(info.Variants) != 2 || info.Variants[1].Name != "Some" {
		t.Errorf("unexpected variants %+v", info.Variants)
	}
}

func TestIsHeap(t *testing.T) {
	in := NewInterner()
	bi := in.Builtins()

	heap := []TypeID{
		in.Intern(MakeArray(bi.Felt)),
		in.Intern(MakeDict(bi.Felt)),
		in.Intern(MakeBox(bi.Felt)),
	}
	for _, id := range heap {
		if !in.IsHeap(id) {
			t.Errorf("%s should be heap-typed", in.Label(id))
		}
	}
	for _, id := range []TypeID{bi.Felt, bi.Bool, bi.U64, bi.Unit} {
		if in.IsHeap(id) {
			t.Errorf("%s should not be heap-typed", in.Label(id))
		}
	}
}

func TestLabel(t *testing.T) {
	in := NewInterner()
	bi := in.Builtins()

	cases := []struct {
		id   TypeID
		want string
	}{
		{bi.Felt, "felt"},
		{bi.U32, "u32"},
		{bi.Unit, "()"},
		{in.Intern(MakeArray(bi.Felt)), "Array<felt>"},
		{in.Intern(MakeDict(bi.U64)), "Dict<u64>"},
		{in.Intern(MakeNonZero(bi.Felt)), "NonZero<felt>"},
	}
	for _, tc := range cases {
		if got := in.Label(tc.id); got != tc.want {
			t.Errorf("Label(%d) = %q, want %q", tc.id, got, tc.want)
		}
	}
}
