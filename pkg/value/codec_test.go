package value

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

const codecTestPrefix = "value:codec_test"

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"null", Null()},
		{"bool", NewBool(true)},
		{"zero", NewInt(0)},
		{"negative int", NewInt(-17)},
		{"max safe int", NewInt(MaxSafeInteger)},
		{"min safe int", NewInt(-MaxSafeInteger)},
		{"float", NewFloat(3.25)},
		{"integral float stays float", NewFloat(2)},
		{"string", NewString("héllo")},
		{"bytes", NewBytes([]byte{0, 1, 2, 255})},
		{"empty array", NewArray()},
		{"nested array", NewArray(NewInt(1), NewArray(NewString("a"), Null()))},
		{"empty dict", NewDict(nil)},
		{
			"nested dict",
			NewDict(map[string]Value{
				"function_name": NewString("foo"),
				"arguments":     NewArray(NewString("a"), NewInt(1), NewDict(map[string]Value{"k": NewBytes([]byte("v"))})),
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.v)
			if err != nil {
				t.Fatalf("%s - Marshal failed: %v", codecTestPrefix, err)
			}
			got, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("%s - Unmarshal failed: %v", codecTestPrefix, err)
			}
			if !Equal(got, tt.v) {
				t.Errorf("%s - round trip = %s, want %s", codecTestPrefix, got, tt.v)
			}
			if got.Kind() != tt.v.Kind() {
				t.Errorf("%s - kind = %s, want %s", codecTestPrefix, got.Kind(), tt.v.Kind())
			}
		})
	}
}

func TestMarshal_RejectsUnsafeIntegers(t *testing.T) {
	for _, i := range []int64{MaxSafeInteger + 1, -MaxSafeInteger - 1} {
		_, err := Marshal(NewArray(NewInt(i)))
		var re *RangeError
		if !errors.As(err, &re) {
			t.Errorf("%s - Marshal(%d) error = %v, want RangeError", codecTestPrefix, i, err)
		}
	}
}

func TestUnmarshal_RejectsUnsafeIntegers(t *testing.T) {
	for _, native := range []interface{}{uint64(MaxSafeInteger + 1), int64(-MaxSafeInteger - 1)} {
		data, err := cbor.Marshal(native)
		if err != nil {
			t.Fatalf("%s - cbor.Marshal failed: %v", codecTestPrefix, err)
		}
		_, err = Unmarshal(data)
		var re *RangeError
		if !errors.As(err, &re) {
			t.Errorf("%s - Unmarshal(%v) error = %v, want RangeError", codecTestPrefix, native, err)
		}
	}
}

func TestUnmarshal_RejectsUnsupportedShapes(t *testing.T) {
	tests := []struct {
		name   string
		native interface{}
	}{
		{"integer map keys", map[int]string{1: "a"}},
		{"tagged value", cbor.Tag{Number: 100, Content: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := cbor.Marshal(tt.native)
			if err != nil {
				t.Fatalf("%s - cbor.Marshal failed: %v", codecTestPrefix, err)
			}
			if _, err := Unmarshal(data); err == nil {
				t.Errorf("%s - expected rejection of %s", codecTestPrefix, tt.name)
			}
		})
	}
}

func TestUnmarshal_RejectsCoercibleInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"undefined", []byte{0xf7}},
		{"undefined in array", []byte{0x82, 0x01, 0xf7}},
		{"undefined in map", []byte{0xa1, 0x61, 'a', 0xf7}},
		{"duplicate map key", []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v, err := Unmarshal(tt.data); err == nil {
				t.Errorf("%s - expected rejection of %s, got %s", codecTestPrefix, tt.name, v.String())
			}
		})
	}

	// null and distinct keys still decode
	v, err := Unmarshal([]byte{0xa2, 0x61, 'a', 0xf6, 0x61, 'b', 0x02})
	if err != nil {
		t.Fatalf("%s - Unmarshal failed: %v", codecTestPrefix, err)
	}
	if !Equal(v, NewDict(map[string]Value{"a": Null(), "b": NewInt(2)})) {
		t.Errorf("%s - decoded %s", codecTestPrefix, v.String())
	}
}

func TestUnmarshal_Garbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Errorf("%s - expected error for malformed input", codecTestPrefix)
	}
}
