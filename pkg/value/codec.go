package value

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

const codecLogPrefix = "value:codec"

// MaxSafeInteger is the largest integer the host's numeric encoding represents
// exactly. Integers outside ±MaxSafeInteger are rejected by the codec.
const MaxSafeInteger = 1<<53 - 1

// RangeError reports an integer that cannot cross the boundary exactly.
type RangeError struct {
	Value string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("integer %s is outside the exactly representable range ±%d", e.Value, int64(MaxSafeInteger))
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("%s - failed to build encoder: %v", codecLogPrefix, err))
	}
	// undefined (simple value 23) has no Value counterpart.
	simpleValues, err := cbor.NewSimpleValueRegistryFromDefaults(cbor.WithRejectedSimpleValue(23))
	if err != nil {
		panic(fmt.Sprintf("%s - failed to build simple value registry: %v", codecLogPrefix, err))
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]interface{}(nil)),
		MaxNestedLevels: 256,
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		SimpleValues:    simpleValues,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("%s - failed to build decoder: %v", codecLogPrefix, err))
	}
}

// Marshal encodes v into its transport representation.
func Marshal(v Value) ([]byte, error) {
	native, err := ToNative(v)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", codecLogPrefix, err)
	}
	data, err := encMode.Marshal(native)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode: %w", codecLogPrefix, err)
	}
	return data, nil
}

// Unmarshal decodes a transport representation produced by Marshal.
func Unmarshal(data []byte) (Value, error) {
	var native interface{}
	if err := decMode.Unmarshal(data, &native); err != nil {
		return Value{}, fmt.Errorf("%s - failed to decode: %w", codecLogPrefix, err)
	}
	v, err := FromNative(native)
	if err != nil {
		return Value{}, fmt.Errorf("%s - %w", codecLogPrefix, err)
	}
	return v, nil
}

// ToNative converts v into plain Go values: nil, bool, int64, float64,
// string, []byte, []interface{} and map[string]interface{}.
func ToNative(v Value) (interface{}, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.b, nil
	case KindInt:
		if v.i > MaxSafeInteger || v.i < -MaxSafeInteger {
			return nil, &RangeError{Value: fmt.Sprintf("%d", v.i)}
		}
		return v.i, nil
	case KindFloat:
		return v.f, nil
	case KindString:
		return v.s, nil
	case KindBytes:
		cp := make([]byte, len(v.bin))
		copy(cp, v.bin)
		return cp, nil
	case KindArray:
		out := make([]interface{}, len(v.items))
		for i, item := range v.items {
			n, err := ToNative(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case KindDict:
		out := make(map[string]interface{}, len(v.dict))
		for k, item := range v.dict {
			n, err := ToNative(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value kind %s", v.kind)
}

// FromNative converts plain Go values, as produced by the decoder, into a
// Value. Shapes outside the supported set are rejected, never coerced.
func FromNative(native interface{}) (Value, error) {
	switch n := native.(type) {
	case nil:
		return Null(), nil
	case bool:
		return NewBool(n), nil
	case int:
		return intValue(int64(n))
	case int64:
		return intValue(n)
	case uint64:
		if n > MaxSafeInteger {
			return Value{}, &RangeError{Value: fmt.Sprintf("%d", n)}
		}
		return NewInt(int64(n)), nil
	case float32:
		return NewFloat(float64(n)), nil
	case float64:
		return NewFloat(n), nil
	case string:
		return NewString(n), nil
	case []byte:
		return NewBytes(n), nil
	case []interface{}:
		items := make([]Value, len(n))
		for i, item := range n {
			v, err := FromNative(item)
			if err != nil {
				return Value{}, fmt.Errorf("item #%d: %w", i, err)
			}
			items[i] = v
		}
		return Value{kind: KindArray, items: items}, nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(n))
		for k, item := range n {
			v, err := FromNative(item)
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = v
		}
		return Value{kind: KindDict, dict: fields}, nil
	}
	return Value{}, fmt.Errorf("unsupported transport value of type %T", native)
}

func intValue(i int64) (Value, error) {
	if i > MaxSafeInteger || i < -MaxSafeInteger {
		return Value{}, &RangeError{Value: fmt.Sprintf("%d", i)}
	}
	return NewInt(i), nil
}
