package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Variant is a named enum alternative with a single payload type.
// Variants without payload use the unit type.
type Variant struct {
	Name string
	Type TypeID
}

// EnumInfo describes a declared enum (tagged union) type.
// The variant set is closed and fixed at declaration.
type EnumInfo struct {
	Name     string
	Variants []Variant
}

// ReserveEnum registers an enum type with an empty variant list and
// returns its TypeID; variants are attached via SetEnumVariants.
func (in *Interner) ReserveEnum(name string) TypeID {
	payload, err := safecast.Conv[uint32](len(in.enums))
	if err != nil {
		panic(fmt.Errorf("len(enums) overflow: %w", err))
	}
	in.enums = append(in.enums, EnumInfo{Name: name})
	return in.internRaw(Type{Kind: KindEnum, Payload: payload})
}

// SetEnumVariants attaches the variant list to a reserved enum.
func (in *Interner) SetEnumVariants(id TypeID, variants []Variant) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindEnum || tt.Payload == 0 || int(tt.Payload) >= len(in.enums) {
		panic("types: SetEnumVariants on non-enum TypeID")
	}
	in.enums[tt.Payload].Variants = append([]Variant(nil), variants...)
}

// InternEnum registers an enum type with its variants in one step.
func (in *Interner) InternEnum(name string, variants []Variant) TypeID {
	id := in.ReserveEnum(name)
	in.SetEnumVariants(id, variants)
	return id
}

// EnumInfo returns variant information for an enum TypeID.
func (in *Interner) EnumInfo(id TypeID) (*EnumInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindEnum {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.enums) {
		return nil, false
	}
	return &in.enums[tt.Payload], true
}
