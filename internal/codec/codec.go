// Package codec implements the structured codec adapter (spec §4.B): it
// binds a Go record's top-level fields to named statement parameters, and
// decodes rows read back from the engine into scalars, maps, slices, or
// records.
package codec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/easydb/internal/apperror"
	"github.com/syssam/easydb/internal/value"
)

// ColumnName returns the storage column name for a struct field, honouring
// a `json:"name"` tag first segment (the JSON tag carries the field's
// declared key name, mirroring a Codable-style host's key names) and
// falling back to the Go field name.
func ColumnName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name != "" {
		return name, true
	}
	if f.PkgPath != "" { // unexported
		return "", false
	}
	return f.Name, true
}

// Fields walks record's top-level fields and returns each one encoded to a
// tagged database value, keyed by column name. record must be a struct or
// a pointer to one (spec §4.B: "passing a scalar or array where a keyed
// record is expected is a programmer error").
func Fields(record any) (map[string]value.Value, error) {
	rv := reflect.ValueOf(record)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("codec: nil record")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("codec: expected a struct record, got %s", rv.Kind())
	}
	out := make(map[string]value.Value)
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, ok := ColumnName(f)
		if !ok {
			continue
		}
		fv := rv.Field(i)
		// Optional/absent fields bind null explicitly, never leaving a
		// previously bound value in place (spec §4.B).
		if isAbsent(fv) {
			out[name] = value.Null()
			continue
		}
		var (
			enc value.Value
			err error
		)
		if hasTagToken(f, "msgpack") {
			enc, err = value.EncodeMsgpack(fv.Interface())
		} else {
			enc, err = value.Encode(fv.Interface())
		}
		if err != nil {
			return nil, fmt.Errorf("codec: field %s: %w", f.Name, err)
		}
		out[name] = enc
	}
	return out, nil
}

// hasTagToken reports whether f's easydb struct tag carries token as one of
// its comma-separated entries (e.g. `easydb:"msgpack"` opts a composite
// field into binary encoding instead of the default JSON-text fallback).
func hasTagToken(f reflect.StructField, token string) bool {
	for _, part := range strings.Split(f.Tag.Get("easydb"), ",") {
		if strings.TrimSpace(part) == token {
			return true
		}
	}
	return false
}

func isAbsent(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}

// DecodeScalar decodes a single-column row value into target's type.
func DecodeScalar(col value.Value, target reflect.Type) (any, error) {
	return value.Decode(col, target)
}

// DecodeMap decodes a full row, given parallel columns/values slices, into
// a column-name-to-value map.
func DecodeMap(columns []string, values []value.Value) (map[string]any, error) {
	out := make(map[string]any, len(columns))
	for i, c := range columns {
		if values[i].Tag == value.TagNull {
			out[c] = nil
			continue
		}
		out[c] = values[i].Driver()
	}
	return out, nil
}

// DecodeRecord decodes a full row into a new value of type target (a
// struct type), matching each requested field by column name (spec §4.B:
// "a row-oriented decoder that reads each requested field by column
// name"). Decoding errors name the offending field's column.
func DecodeRecord(columns []string, values []value.Value, target reflect.Type) (any, error) {
	if target.Kind() != reflect.Struct {
		return nil, fmt.Errorf("codec: DecodeRecord target must be a struct, got %s", target.Kind())
	}
	byCol := make(map[string]value.Value, len(columns))
	for i, c := range columns {
		byCol[c] = values[i]
	}
	out := reflect.New(target).Elem()
	for i := 0; i < target.NumField(); i++ {
		f := target.Field(i)
		name, ok := ColumnName(f)
		if !ok {
			continue
		}
		col, ok := byCol[name]
		if !ok {
			continue
		}
		if col.Tag == value.TagNull {
			continue // zero value already present
		}
		var (
			decoded any
			err     error
		)
		if hasTagToken(f, "msgpack") {
			decoded, err = value.DecodeMsgpack(col, f.Type)
		} else {
			decoded, err = value.Decode(col, f.Type)
		}
		if err != nil {
			return nil, &apperror.ReflectionError{
				Subkind: apperror.ReflectionDecodingError,
				Type:    target.Name(),
				Message: fmt.Sprintf("column %q: %v", name, err),
			}
		}
		out.Field(i).Set(reflect.ValueOf(decoded))
	}
	return out.Interface(), nil
}
