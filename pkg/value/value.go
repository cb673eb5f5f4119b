// Package value provides the tagged-union payload type exchanged with the host.
package value

import (
	"fmt"
)

// Kind is the explicit discriminant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindDict
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "boolean",
	KindInt:    "integer",
	KindFloat:  "float",
	KindString: "string",
	KindBytes:  "binary",
	KindArray:  "array",
	KindDict:   "dictionary",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a tree-shaped payload. The zero Value is null.
//
// Values are immutable once built: constructors copy the slices and maps they
// are given and accessors return copies, so a Value can be shared between
// goroutines without synchronization.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	bin   []byte
	items []Value
	dict  map[string]Value
}

// TypeMismatchError is returned when a Value does not have the shape an
// operation expected.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Actual)
}

func mismatch(expected string, v Value) error {
	return &TypeMismatchError{Expected: expected, Actual: v.kind.String()}
}

// Null returns the null Value.
func Null() Value { return Value{} }

// NewBool builds a boolean Value.
func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

// NewInt builds an integer Value.
func NewInt(i int64) Value { return Value{kind: KindInt, i: i} }

// NewFloat builds a floating-point Value.
func NewFloat(f float64) Value { return Value{kind: KindFloat, f: f} }

// NewString builds a string Value.
func NewString(s string) Value { return Value{kind: KindString, s: s} }

// NewBytes builds a byte-buffer Value. The buffer is copied.
func NewBytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, bin: cp}
}

// NewArray builds an array Value preserving the order of items.
func NewArray(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, items: cp}
}

// NewDict builds a dictionary Value. The map is copied.
func NewDict(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindDict, dict: cp}
}

// NewStringArray builds an array of string Values.
func NewStringArray(items []string) Value {
	vals := make([]Value, len(items))
	for i, s := range items {
		vals[i] = NewString(s)
	}
	return Value{kind: KindArray, items: vals}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsArray() bool  { return v.kind == KindArray }
func (v Value) IsDict() bool   { return v.kind == KindDict }
func (v Value) IsString() bool { return v.kind == KindString }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, mismatch(KindBool.String(), v)
	}
	return v.b, nil
}

// AsInt returns the integer held by v. Floats are not narrowed.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, mismatch(KindInt.String(), v)
	}
	return v.i, nil
}

// AsFloat returns the number held by v, widening integers.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	}
	return 0, mismatch(KindFloat.String(), v)
}

// AsString returns the string held by v.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", mismatch(KindString.String(), v)
	}
	return v.s, nil
}

// AsBytes returns a copy of the byte buffer held by v.
func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, mismatch(KindBytes.String(), v)
	}
	cp := make([]byte, len(v.bin))
	copy(cp, v.bin)
	return cp, nil
}

// AsArray returns a copy of the items held by v.
func (v Value) AsArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, mismatch(KindArray.String(), v)
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp, nil
}

// AsDict returns a copy of the fields held by v.
func (v Value) AsDict() (map[string]Value, error) {
	if v.kind != KindDict {
		return nil, mismatch(KindDict.String(), v)
	}
	cp := make(map[string]Value, len(v.dict))
	for k, item := range v.dict {
		cp[k] = item
	}
	return cp, nil
}

// AsStringArray expects an array whose items are all strings.
func (v Value) AsStringArray() ([]string, error) {
	if v.kind != KindArray {
		return nil, mismatch("array of strings", v)
	}
	out := make([]string, len(v.items))
	for i, item := range v.items {
		s, err := item.AsString()
		if err != nil {
			return nil, fmt.Errorf("item #%d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

// Len returns the number of items of an array or fields of a dictionary.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindDict:
		return len(v.dict)
	case KindBytes:
		return len(v.bin)
	}
	return 0
}

// Field looks up a dictionary field. It reports false when v is not a
// dictionary or the key is absent.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindDict {
		return Value{}, false
	}
	item, ok := v.dict[key]
	return item, ok
}

// RequiredField looks up a dictionary field that must be present.
func (v Value) RequiredField(key string) (Value, error) {
	if v.kind != KindDict {
		return Value{}, mismatch(KindDict.String(), v)
	}
	item, ok := v.dict[key]
	if !ok {
		return Value{}, fmt.Errorf("missing required field %q", key)
	}
	return item, nil
}

// Equal reports whether a and b are structurally equal. Array comparison is
// order-sensitive; dictionary comparison is not.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindBytes:
		return string(a.bin) == string(b.bin)
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
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
	}
	return false
}
