// Package tree defines the settings tree: the in-memory form of a preference
// domain after decoding.
//
// A [Value] is a tagged variant. Every value has exactly one [Kind] and
// consumers switch on Kind instead of inspecting dynamic Go types.
package tree

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

// Supported kinds. The zero Kind is invalid so that a zero Value is never
// mistaken for an empty dict.
const (
	KindInvalid Kind = iota
	KindDict
	KindArray
	KindString
	KindInteger
	KindReal
	KindBool
	KindDate
	KindData
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindDict:    "dict",
	KindArray:   "array",
	KindString:  "string",
	KindInteger: "integer",
	KindReal:    "real",
	KindBool:    "bool",
	KindDate:    "date",
	KindData:    "data",
}

// String returns the kind name as used in property-list element names.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a node of the settings tree.
type Value struct {
	kind Kind

	dict  map[string]Value
	array []Value

	str  string
	num  uint64 // integer bits; signed integers are stored two's complement
	neg  bool   // integer was decoded as signed
	real float64
	flag bool
	date time.Time
	data []byte
}

// Dict returns a dict value holding m. A nil map yields an empty dict.
func Dict(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}

	return Value{kind: KindDict, dict: m}
}

// Array returns an array value holding items in order.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}

	return Value{kind: KindArray, array: items}
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns a signed integer value.
func Int(i int64) Value { return Value{kind: KindInteger, num: uint64(i), neg: true} } //nolint:gosec // two's complement storage

// Uint returns an unsigned integer value. Unsigned storage keeps values above
// math.MaxInt64 intact.
func Uint(u uint64) Value { return Value{kind: KindInteger, num: u} }

// Real returns a floating point value.
func Real(f float64) Value { return Value{kind: KindReal, real: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Date returns a date value.
func Date(t time.Time) Value { return Value{kind: KindDate, date: t} }

// Data returns a binary blob value.
func Data(b []byte) Value {
	if b == nil {
		b = []byte{}
	}

	return Value{kind: KindData, data: b}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// Map returns the entries of a dict, or nil for other kinds.
func (v Value) Map() map[string]Value { return v.dict }

// Items returns the elements of an array, or nil for other kinds.
func (v Value) Items() []Value { return v.array }

// Str returns the string payload.
func (v Value) Str() string { return v.str }

// Float returns the real payload.
func (v Value) Float() float64 { return v.real }

// Truth returns the bool payload.
func (v Value) Truth() bool { return v.flag }

// Time returns the date payload.
func (v Value) Time() time.Time { return v.date }

// Bytes returns the data payload.
func (v Value) Bytes() []byte { return v.data }

// Int64 returns the integer payload and whether it fits in an int64.
func (v Value) Int64() (int64, bool) {
	if v.neg {
		return int64(v.num), true //nolint:gosec // two's complement storage
	}

	if v.num > math.MaxInt64 {
		return 0, false
	}

	return int64(v.num), true
}

// IntegerText returns the decimal form of an integer value.
func (v Value) IntegerText() string {
	if v.neg {
		return strconv.FormatInt(int64(v.num), 10) //nolint:gosec // two's complement storage
	}

	return strconv.FormatUint(v.num, 10)
}

// Len returns the number of dict entries or array elements.
func (v Value) Len() int {
	switch v.kind {
	case KindDict:
		return len(v.dict)
	case KindArray:
		return len(v.array)
	default:
		return 0
	}
}

// SortedKeys returns the keys of a dict in lexicographic byte order, which
// for UTF-8 keys is code-point order.
func (v Value) SortedKeys() []string {
	keys := make([]string, 0, len(v.dict))
	for k := range v.dict {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Equal reports whether a and b hold the same content. Dict entry order is
// irrelevant; array order is significant. Integers compare by numeric value
// and dates by instant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindInvalid:
		return true
	case KindDict:
		if len(a.dict) != len(b.dict) {
			return false
		}

		for k, av := range a.dict {
			bv, ok := b.dict[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}

		return true
	case KindArray:
		if len(a.array) != len(b.array) {
			return false
		}

		for i := range a.array {
			if !Equal(a.array[i], b.array[i]) {
				return false
			}
		}

		return true
	case KindString:
		return a.str == b.str
	case KindInteger:
		return a.IntegerText() == b.IntegerText()
	case KindReal:
		return a.real == b.real || (math.IsNaN(a.real) && math.IsNaN(b.real))
	case KindBool:
		return a.flag == b.flag
	case KindDate:
		return a.date.Equal(b.date)
	case KindData:
		return bytes.Equal(a.data, b.data)
	}

	return false
}
