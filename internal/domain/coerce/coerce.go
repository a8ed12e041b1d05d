// Package coerce turns loosely typed document fields into numbers.
//
// Documents arrive from stores that give no schema guarantees, so every
// function here is total: bad input becomes a defined default, never an error.
package coerce

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// Numbers returns the numeric interpretation of every element of v.
// A v that is not a slice or array yields an empty slice. Elements that do
// not parse as a finite number become 0. Length and order are preserved.
func Numbers(v any) []float64 {
	switch s := v.(type) {
	case []float64:
		out := make([]float64, len(s))
		for i, f := range s {
			out[i] = finiteOrZero(f)
		}
		return out
	case []any:
		out := make([]float64, len(s))
		for i, e := range s {
			out[i], _ = Number(e)
		}
		return out
	case nil:
		return []float64{}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []float64{}
	}
	out := make([]float64, rv.Len())
	for i := range out {
		out[i], _ = Number(rv.Index(i).Interface())
	}
	return out
}

// Last returns the last element of the sequence v when it is a finite number.
// ok is false for a missing field, a non-sequence, an empty sequence or a
// last element that is not numeric, so callers can tell absent from zero.
func Last(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, false
	}
	if rv.Len() == 0 {
		return 0, false
	}
	last := rv.Index(rv.Len() - 1).Interface()
	if last == nil {
		return 0, false
	}
	if s, isString := last.(string); isString && strings.TrimSpace(s) == "" {
		return 0, false
	}
	return Number(last)
}

// Number interprets a single value. ok reports whether v was a finite
// number (or numeric text); when it is false the returned value is 0.
// nil, empty strings and booleans are valid and map to 0, 0 and 1/0.
// Text may carry a 0x, 0o or 0b integer prefix. An empty sequence is 0 and
// a one-element sequence is read as its element.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		return parse(string(n))
	case string:
		return parse(n)
	case *float64:
		if n == nil {
			return 0, true
		}
		return finite(*n)
	default:
		return single(v)
	}
}

// single reads a sequence as a scalar: empty is 0, one element is that
// element, anything longer is invalid.
func single(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, false
	}
	switch rv.Len() {
	case 0:
		return 0, true
	case 1:
		e := rv.Index(0).Interface()
		if _, isBool := e.(bool); isBool {
			// [true] reads as the text "true", which is not a number.
			return 0, false
		}
		return Number(e)
	default:
		return 0, false
	}
}

func parse(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	if strings.ContainsRune(s, '_') {
		return 0, false
	}
	if base := radix(s); base != 0 {
		return parseInteger(s[2:], base)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

// radix returns the base named by a 0x, 0o or 0b prefix, or 0.
func radix(s string) int {
	if len(s) < 2 || s[0] != '0' {
		return 0
	}
	switch s[1] {
	case 'x', 'X':
		return 16
	case 'o', 'O':
		return 8
	case 'b', 'B':
		return 2
	}
	return 0
}

// parseInteger parses unsigned digits in base. Values past uint64 are
// rounded to the nearest float64.
func parseInteger(digits string, base int) (float64, bool) {
	n, err := strconv.ParseUint(digits, base, 64)
	if err == nil {
		return float64(n), true
	}
	if !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return 0, false
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func finiteOrZero(f float64) float64 {
	v, _ := finite(f)
	return v
}
