// Package value implements the parameter/variable sum type shared by
// scenario documents, the control protocol, and the configuration hash.
package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Kind discriminates the variants of Value.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindBool
	KindUint
	KindInt
	KindFloat
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a closed sum type: text, boolean, unsigned integer, signed
// integer, floating point, an ordered map, an ordered sequence, or null.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Value struct {
	kind  Kind
	text  string
	boul  bool
	uintv uint64
	intv  int64
	fltv  float64
	obj   *Map
	arr   []Value
}

func Null() Value               { return Value{kind: KindNull} }
func Text(s string) Value       { return Value{kind: KindText, text: s} }
func Bool(b bool) Value         { return Value{kind: KindBool, boul: b} }
func Uint(u uint64) Value       { return Value{kind: KindUint, uintv: u} }
func Int(i int64) Value         { return Value{kind: KindInt, intv: i} }
func Float(f float64) Value     { return Value{kind: KindFloat, fltv: f} }
func Object(m *Map) Value       { return Value{kind: KindObject, obj: m} }
func Array(v []Value) Value     { return Value{kind: KindArray, arr: v} }

func (v Value) Kind() Kind { return v.kind }

// TryString coerces to a string, matching TryFrom<&TestParameter> for String
// in the original implementation: every scalar kind converts, containers do
// not, and Null converts to the empty string.
func (v Value) TryString() (string, error) {
	switch v.kind {
	case KindText:
		return v.text, nil
	case KindBool:
		return strconv.FormatBool(v.boul), nil
	case KindUint:
		return strconv.FormatUint(v.uintv, 10), nil
	case KindInt:
		return strconv.FormatInt(v.intv, 10), nil
	case KindFloat:
		return strconv.FormatFloat(v.fltv, 'g', -1, 64), nil
	case KindNull:
		return "", nil
	default:
		return "", fmt.Errorf("value: cannot convert %s to string", v.kind)
	}
}

// TryObject returns the backing Map for an object value.
func (v Value) TryObject() (*Map, error) {
	if v.kind != KindObject {
		return nil, fmt.Errorf("value: cannot convert %s to object", v.kind)
	}
	return v.obj, nil
}

// TryArray returns the backing slice for an array value.
func (v Value) TryArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, fmt.Errorf("value: cannot convert %s to array", v.kind)
	}
	return v.arr, nil
}

// TryInt32 mirrors TryFrom<&TestParameter> for i32: only the integer kinds
// coerce, freely promoted between signed/unsigned.
func (v Value) TryInt32() (int32, error) {
	switch v.kind {
	case KindUint:
		return int32(v.uintv), nil
	case KindInt:
		return int32(v.intv), nil
	default:
		return 0, errors.New("value: invalid numeric value")
	}
}

// TryBool coerces to a boolean; only the bool kind is accepted.
func (v Value) TryBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("value: cannot convert %s to bool", v.kind)
	}
	return v.boul, nil
}

// Equal reports deep equality between two values.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindText:
		return a.text == b.text
	case KindBool:
		return a.boul == b.boul
	case KindUint:
		return a.uintv == b.uintv
	case KindInt:
		return a.intv == b.intv
	case KindFloat:
		return a.fltv == b.fltv
	case KindNull:
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, k := range a.obj.Keys() {
			av, _ := a.obj.Get(k)
			bv, ok := b.obj.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the value as a bare JSON scalar/array/object, not a
// tagged envelope, so scenario documents stay human-authored.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindText:
		return json.Marshal(v.text)
	case KindBool:
		return json.Marshal(v.boul)
	case KindUint:
		return json.Marshal(v.uintv)
	case KindInt:
		return json.Marshal(v.intv)
	case KindFloat:
		return json.Marshal(v.fltv)
	case KindObject:
		return v.obj.MarshalJSON()
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

// UnmarshalJSON parses total: every JSON scalar/array/object shape has a
// home, matching the TestParameterVisitor in the original implementation.
// Object keys are decoded token-by-token to preserve document order, since
// Go's map[string]interface{} intermediate would discard it.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return numberValue(t), nil
	case json.Delim:
		switch t {
		case '[':
			var out []Value
			for dec.More() {
				ev, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				out = append(out, ev)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Array(out), nil
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("value: expected object key, got %v", keyTok)
				}
				ev, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, ev)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return Object(m), nil
		default:
			return Value{}, fmt.Errorf("value: unexpected delimiter %v", t)
		}
	default:
		return Value{}, fmt.Errorf("value: unsupported JSON token %T", tok)
	}
}

func numberValue(n json.Number) Value {
	if i, err := n.Int64(); err == nil {
		if i >= 0 {
			return Uint(uint64(i))
		}
		return Int(i)
	}
	f, _ := n.Float64()
	return Float(f)
}
