// Package value implements the tagged database value and the leaf-level
// value codec (spec §3 "Tagged database value", §4.A "Value codec").
package value

import (
	"database/sql/driver"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Tag identifies which arm of Value is populated.
type Tag int

const (
	TagNull Tag = iota
	TagInt64
	TagFloat64
	TagText
	TagBlob
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagInt64:
		return "int64"
	case TagFloat64:
		return "float64"
	case TagText:
		return "text"
	case TagBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Value is the only representation crossing the engine boundary: null,
// int64, float64, text or blob (spec §3).
type Value struct {
	Tag   Tag
	Int   int64
	Float float64
	Str   string
	Bytes []byte
}

func Null() Value                 { return Value{Tag: TagNull} }
func Int64(v int64) Value         { return Value{Tag: TagInt64, Int: v} }
func Float64(v float64) Value      { return Value{Tag: TagFloat64, Float: v} }
func Text(v string) Value         { return Value{Tag: TagText, Str: v} }
func Blob(v []byte) Value         { return Value{Tag: TagBlob, Bytes: v} }

// Driver returns the database/sql-compatible representation of v, suitable
// for passing as a bind argument.
func (v Value) Driver() any {
	switch v.Tag {
	case TagNull:
		return nil
	case TagInt64:
		return v.Int
	case TagFloat64:
		return v.Float
	case TagText:
		return v.Str
	case TagBlob:
		return v.Bytes
	default:
		return nil
	}
}

// FromDriver wraps a value as read back from database/sql (one of nil,
// int64, float64, string, []byte per the sqlite3 driver's column typing).
func FromDriver(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Int64(v), nil
	case float64:
		return Float64(v), nil
	case string:
		return Text(v), nil
	case []byte:
		return Blob(v), nil
	case bool:
		if v {
			return Int64(1), nil
		}
		return Int64(0), nil
	default:
		return Value{}, fmt.Errorf("value: unrecognised driver value type %T", raw)
	}
}

// databaseValuer is implemented by leaf types that know how to represent
// themselves directly as a tagged value, bypassing JSON entirely. This is
// the Go analogue of spec §4.A's "advertises a direct database-value
// representation" branch.
type databaseValuer interface {
	DatabaseValue() (Value, error)
}

// Encode converts a single leaf value to a tagged database value following
// the decision tree in spec §4.A.
func Encode(v any) (Value, error) {
	if v == nil {
		return Null(), nil
	}
	if dv, ok := v.(databaseValuer); ok {
		return dv.DatabaseValue()
	}
	rv := reflect.ValueOf(v)
	// Unwrap one level of pointer/interface for nil-checking and dispatch.
	if rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Null(), nil
		}
		return Encode(rv.Elem().Interface())
	}
	switch x := v.(type) {
	case bool:
		if x {
			return Int64(1), nil
		}
		return Int64(0), nil
	case int:
		return Int64(int64(x)), nil
	case int8:
		return Int64(int64(x)), nil
	case int16:
		return Int64(int64(x)), nil
	case int32:
		return Int64(int64(x)), nil
	case int64:
		return Int64(x), nil
	case uint:
		return Int64(int64(x)), nil
	case uint8:
		return Int64(int64(x)), nil
	case uint16:
		return Int64(int64(x)), nil
	case uint32:
		return Int64(int64(x)), nil
	case uint64:
		// Bit-reinterpretation: round-trips UInt64 max <-> int64 -1.
		return Int64(int64(x)), nil
	case float32:
		return Float64(float64(x)), nil
	case float64:
		return Float64(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	case time.Time:
		return Text(x.UTC().Format(time.RFC3339Nano)), nil
	case url.URL:
		// Neither url.URL nor *url.URL implements encoding.TextMarshaler
		// or driver.Valuer (*url.URL only has MarshalBinary), so without
		// this case it falls to the JSON composite fallback, which
		// silently drops the unexported fields of its Userinfo.
		return Text(x.String()), nil
	}
	if tm, ok := v.(encoding.TextMarshaler); ok {
		b, err := tm.MarshalText()
		if err != nil {
			return Value{}, fmt.Errorf("value: encoding %T as text: %w", v, err)
		}
		return Text(string(b)), nil
	}
	if dv, ok := v.(driver.Valuer); ok {
		raw, err := dv.Value()
		if err != nil {
			return Value{}, fmt.Errorf("value: driver.Valuer %T: %w", v, err)
		}
		return FromDriver(raw)
	}
	// Composite fallback: serialise as JSON text (spec §4.A final branch).
	b, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("value: marshalling %T as JSON fallback: %w", v, err)
	}
	return Text(string(b)), nil
}

// EncodeMsgpack serialises v as a compact msgpack blob rather than the
// default JSON-text composite encoding (spec §4.A, `easydb:"msgpack"` opt-in
// for composite leaf values).
func EncodeMsgpack(v any) (Value, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("value: msgpack-encoding %T: %w", v, err)
	}
	return Blob(b), nil
}

// DecodeMsgpack decodes a msgpack-encoded blob back into target's type.
func DecodeMsgpack(v Value, target reflect.Type) (any, error) {
	if v.Tag != TagBlob {
		return nil, fmt.Errorf("value: msgpack decode expects a blob, got %s", v.Tag)
	}
	out := reflect.New(target)
	if err := msgpack.Unmarshal(v.Bytes, out.Interface()); err != nil {
		return nil, fmt.Errorf("value: msgpack-decoding %s: %w", target, err)
	}
	return out.Elem().Interface(), nil
}

// Decode converts a tagged database value back into a Go value assignable
// to target. Numeric narrowing is lossless-only; blob never decodes to
// text and vice versa.
func Decode(v Value, target reflect.Type) (any, error) {
	if target.Kind() == reflect.Ptr {
		elem := target.Elem()
		decoded, err := Decode(v, elem)
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(elem)
		ptr.Elem().Set(reflect.ValueOf(decoded))
		return ptr.Interface(), nil
	}
	switch target.Kind() {
	case reflect.Bool:
		n, err := v.asInt64()
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := v.asInt64()
		if err != nil {
			return nil, err
		}
		return narrowSignedTo(n, target.Kind())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := v.asInt64()
		if err != nil {
			return nil, err
		}
		return narrowUnsignedTo(uint64(n), target.Kind())
	case reflect.Float32, reflect.Float64:
		f, err := v.asFloat64()
		if err != nil {
			return nil, err
		}
		if target.Kind() == reflect.Float32 {
			if float64(float32(f)) != f {
				return nil, fmt.Errorf("value: %v is not losslessly representable as float32", f)
			}
			return float32(f), nil
		}
		return f, nil
	case reflect.String:
		if v.Tag == TagBlob {
			return nil, fmt.Errorf("value: cannot decode blob into string")
		}
		return v.asText()
	case reflect.Slice:
		if target.Elem().Kind() == reflect.Uint8 {
			if v.Tag != TagBlob {
				return nil, fmt.Errorf("value: cannot decode %s into []byte", v.Tag)
			}
			return v.Bytes, nil
		}
	}
	if target == reflect.TypeOf(time.Time{}) {
		s, err := v.asText()
		if err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	if target == reflect.TypeOf(url.URL{}) {
		s, err := v.asText()
		if err != nil {
			return nil, err
		}
		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("value: parsing %q as url.URL: %w", s, err)
		}
		return *u, nil
	}
	if reflect.PointerTo(target).Implements(reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()) {
		s, err := v.asText()
		if err != nil {
			return nil, err
		}
		out := reflect.New(target)
		if err := out.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return nil, fmt.Errorf("value: decoding %q as %s: %w", s, target, err)
		}
		return out.Elem().Interface(), nil
	}
	// Composite fallback: JSON-decode from text.
	s, err := v.asText()
	if err != nil {
		return nil, err
	}
	out := reflect.New(target)
	if err := json.Unmarshal([]byte(s), out.Interface()); err != nil {
		return nil, fmt.Errorf("value: JSON-decoding %s: %w", target, err)
	}
	return out.Elem().Interface(), nil
}

func (v Value) asInt64() (int64, error) {
	switch v.Tag {
	case TagInt64:
		return v.Int, nil
	case TagFloat64:
		if v.Float != math.Trunc(v.Float) {
			return 0, fmt.Errorf("value: %v is not losslessly representable as an integer", v.Float)
		}
		return int64(v.Float), nil
	case TagText:
		var n int64
		if _, err := fmt.Sscanf(v.Str, "%d", &n); err != nil {
			return 0, fmt.Errorf("value: cannot coerce text %q to integer: %w", v.Str, err)
		}
		return n, nil
	case TagNull:
		return 0, nil
	default:
		return 0, fmt.Errorf("value: cannot decode %s as integer", v.Tag)
	}
}

func (v Value) asFloat64() (float64, error) {
	switch v.Tag {
	case TagFloat64:
		return v.Float, nil
	case TagInt64:
		return float64(v.Int), nil
	case TagText:
		var f float64
		if _, err := fmt.Sscanf(v.Str, "%g", &f); err != nil {
			return 0, fmt.Errorf("value: cannot coerce text %q to float: %w", v.Str, err)
		}
		return f, nil
	case TagNull:
		return 0, nil
	default:
		return 0, fmt.Errorf("value: cannot decode %s as float", v.Tag)
	}
}

func (v Value) asText() (string, error) {
	switch v.Tag {
	case TagText:
		return v.Str, nil
	case TagNull:
		return "", nil
	case TagInt64:
		return fmt.Sprintf("%d", v.Int), nil
	case TagFloat64:
		return fmt.Sprintf("%g", v.Float), nil
	default:
		return "", fmt.Errorf("value: cannot decode %s as text", v.Tag)
	}
}

func narrowSignedTo(n int64, kind reflect.Kind) (any, error) {
	switch kind {
	case reflect.Int:
		return int(n), nil
	case reflect.Int8:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return nil, fmt.Errorf("value: %d overflows int8", n)
		}
		return int8(n), nil
	case reflect.Int16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, fmt.Errorf("value: %d overflows int16", n)
		}
		return int16(n), nil
	case reflect.Int32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("value: %d overflows int32", n)
		}
		return int32(n), nil
	default:
		return n, nil
	}
}

func narrowUnsignedTo(n uint64, kind reflect.Kind) (any, error) {
	switch kind {
	case reflect.Uint:
		return uint(n), nil
	case reflect.Uint8:
		if n > math.MaxUint8 {
			return nil, fmt.Errorf("value: %d overflows uint8", n)
		}
		return uint8(n), nil
	case reflect.Uint16:
		if n > math.MaxUint16 {
			return nil, fmt.Errorf("value: %d overflows uint16", n)
		}
		return uint16(n), nil
	case reflect.Uint32:
		if n > math.MaxUint32 {
			return nil, fmt.Errorf("value: %d overflows uint32", n)
		}
		return uint32(n), nil
	default:
		return n, nil
	}
}
