// Package gas assigns execution costs and reference-count metadata to the
// already-built block graph. Per-operation weights are tuning data loaded
// from a table, not code.
package gas

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// CostModel prices operations. Base carries one weight per operation name;
// the scaling factors add layout-dependent components for heap operations.
type CostModel struct {
	Base map[string]uint64

	// StructPerField prices struct pack/unpack per member.
	StructPerField uint64
	// ElemByteWeight prices array element traffic per byte.
	ElemByteWeight uint64
	// DictAccessWeight prices one dictionary access.
	DictAccessWeight uint64
}

// tableFile is the on-disk TOML shape of a cost table.
type tableFile struct {
	Base   map[string]uint64 `toml:"base"`
	Scaled struct {
		StructPerField   uint64 `toml:"struct_per_field"`
		ElemByteWeight   uint64 `toml:"elem_byte_weight"`
		DictAccessWeight uint64 `toml:"dict_access_weight"`
	} `toml:"scaled"`
}

// DefaultModel returns the built-in cost table. It covers exactly the
// operations the lowering registry knows; the two are versioned together.
func DefaultModel() *CostModel {
	return &CostModel{
		Base: map[string]uint64{
			"felt_const":           100,
			"felt_add":             100,
			"felt_sub":             100,
			"felt_mul":             200,
			"felt_div":             600,
			"felt_is_zero":         100,
			"uint_const":           100,
			"uint_overflowing_add": 200,
			"uint_overflowing_sub": 200,
			"uint_mul":             300,
			"dup":                  50,
			"drop":                 50,
			"rename":               0,
			"jump":                 100,
			"branch_align":         0,
			"struct_pack":          100,
			"struct_unpack":        100,
			"enum_init":            100,
			"enum_match":           200,
			"box_new":              400,
			"unbox":                200,
			"array_new":            500,
			"array_append":         300,
			"array_len":            100,
			"array_get":            300,
			"array_pop":            300,
			"dict_new":             800,
			"dict_get":             600,
			"dict_insert":          600,
			"dict_squash":          1000,
			"function_call":        200,
			"withdraw_gas":         100,
			"redeposit_gas":        100,
			"panic_with":           100,
		},
		StructPerField:   20,
		ElemByteWeight:   2,
		DictAccessWeight: 50,
	}
}

// LoadModel reads a TOML cost table, overlaying it on the defaults so a
// table may override only a subset of weights.
func LoadModel(path string) (*CostModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gas table: %w", err)
	}
	return ParseModel(data)
}

// ParseModel decodes a TOML cost table over the defaults.
func ParseModel(data []byte) (*CostModel, error) {
	var tf tableFile
	if err := toml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse gas table: %w", err)
	}
	m := DefaultModel()
	for op, w := range tf.Base {
		if _, known := m.Base[op]; !known {
			return nil, fmt.Errorf("gas table prices unknown operation %q", op)
		}
		m.Base[op] = w
	}
	if tf.Scaled.StructPerField != 0 {
		m.StructPerField = tf.Scaled.StructPerField
	}
	if tf.Scaled.ElemByteWeight != 0 {
		m.ElemByteWeight = tf.Scaled.ElemByteWeight
	}
	if tf.Scaled.DictAccessWeight != 0 {
		m.DictAccessWeight = tf.Scaled.DictAccessWeight
	}
	return m, nil
}
