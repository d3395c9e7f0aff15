package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Field is a named struct member.
type Field struct {
	Name string
	Type TypeID
}

// StructInfo describes a declared struct type.
type StructInfo struct {
	Name   string
	Fields []Field
}

// ReserveStruct registers a struct type with an empty member list and
// returns its TypeID. Members are attached later via SetStructFields,
// which allows mutually recursive declarations to obtain IDs first.
// Each call creates a distinct nominal type.
func (in *Interner) ReserveStruct(name string) TypeID {
	payload, err := safecast.Conv[uint32](len(in.structs))
	if err != nil {
		panic(fmt.Errorf("len(structs) overflow: %w", err))
	}
	in.structs = append(in.structs, StructInfo{Name: name})
	return in.internRaw(Type{Kind: KindStruct, Payload: payload})
}

// SetStructFields attaches the ordered member list to a reserved struct.
func (in *Interner) SetStructFields(id TypeID, fields []Field) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct || tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		panic("types: SetStructFields on non-struct TypeID")
	}
	in.structs[tt.Payload].Fields = append([]Field(nil), fields...)
}

// InternStruct registers a struct type with its members in one step.
func (in *Interner) InternStruct(name string, fields []Field) TypeID {
	id := in.ReserveStruct(name)
	in.SetStructFields(id, fields)
	return id
}

// StructInfo returns member information for a struct TypeID.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil, false
	}
	return &in.structs[tt.Payload], true
}
