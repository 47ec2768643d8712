// Package jsonv normalises JSON-like Go values so that payloads decoded from
// the wire and payloads built in Go compare and encode the same way.
package jsonv

import (
	"encoding/json"
	"fmt"
	"math/big"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Normalize converts v into a structpb.Value. Values structpb cannot take
// directly (structs, typed maps and slices) are passed through encoding/json
// first.
func Normalize(v any) (*structpb.Value, error) {
	if pv, err := structpb.NewValue(v); err == nil {
		return pv, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsonv: %T is not JSON-like: %w", v, err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("jsonv: %w", err)
	}
	return structpb.NewValue(generic)
}

// Canonical returns v as the plain value tree encoding/json would produce
// (nil, bool, float64, string, []any, map[string]any).
func Canonical(v any) (any, error) {
	pv, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return pv.AsInterface(), nil
}

// Equal reports whether a and b encode to the same JSON value. Object key
// order and numeric representation do not matter. Two Go integers, also
// inside []any and map[string]any, are compared exactly; every other number
// goes through float64.
func Equal(a, b any) bool {
	if ia, ok := integer(a); ok {
		if ib, ok := integer(b); ok {
			return ia.Cmp(ib) == 0
		}
	}
	switch x := a.(type) {
	case []any:
		if y, ok := b.([]any); ok {
			if len(x) != len(y) {
				return false
			}
			for i := range x {
				if !Equal(x[i], y[i]) {
					return false
				}
			}
			return true
		}
	case map[string]any:
		if y, ok := b.(map[string]any); ok {
			if len(x) != len(y) {
				return false
			}
			for k, v := range x {
				w, ok := y[k]
				if !ok || !Equal(v, w) {
					return false
				}
			}
			return true
		}
	}
	pa, err := Normalize(a)
	if err != nil {
		return false
	}
	pb, err := Normalize(b)
	if err != nil {
		return false
	}
	return proto.Equal(pa, pb)
}

func integer(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case int:
		return big.NewInt(int64(n)), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	}
	return nil, false
}
