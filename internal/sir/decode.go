package sir

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"tern/internal/diag"
)

// Decode deserializes a program and rejects structurally malformed input
// before any lowering takes place. Diagnostics land in bag; a non-nil
// error means the program must not be compiled.
func Decode(data []byte, bag *diag.Bag) (*Program, error) {
	var prog Program
	if err := msgpack.Unmarshal(data, &prog); err != nil {
		bag.Add(diag.NewError(diag.InputBadEncoding, diag.NoLoc,
			fmt.Sprintf("malformed program encoding: %v", err)))
		return nil, bag.Err()
	}
	if err := Validate(&prog, bag); err != nil {
		return nil, err
	}
	return &prog, nil
}

// Encode serializes a program. Inverse of Decode; used by test tooling and
// the program builders.
func Encode(prog *Program) ([]byte, error) {
	return msgpack.Marshal(prog)
}
