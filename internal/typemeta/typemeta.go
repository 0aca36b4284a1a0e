// Package typemeta implements the type metadata collector (spec §4.E): it
// reads a struct tag per top-level field and combines the annotations it
// carries into one CombinedConfig, enforcing the same combination rules a
// builder-chained index descriptor would (teacher's schema/index package).
package typemeta

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/easydb/internal/codec"
)

// IndexKind identifies what kind of index, if any, a field's combined
// config requests.
type IndexKind int

const (
	IndexNone IndexKind = iota
	IndexRegular
	IndexUnique
)

// FieldConfig is one field's CombinedConfig (spec §4.E): the collation a
// field's columns compare under, and whatever index it requests.
type FieldConfig struct {
	Collation string
	Index     IndexKind
	Identity  bool
}

// Collect walks t's top-level fields, reading the `easydb` struct tag on
// each, and returns the combined configuration keyed by storage column
// name. t must be a struct type.
//
// Tag grammar: `easydb:"unique,collation=name,noDefaultUniqueId"` — a
// comma-separated list of annotations; "unique" and "index" both request
// an index (unique wins if both appear), "collation=NAME" pins a
// collation, and "noDefaultUniqueId" suppresses the identity field's
// implicit unique index.
//
// The identity field is the first field tagged `easydb:"id"` (or,
// failing that, a field named "ID"); see IdentityField.
func Collect(t reflect.Type) (map[string]FieldConfig, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("typemeta: record type must be a struct, got %s", t.Kind())
	}

	identityField, hasIdentity := IdentityField(t)

	out := make(map[string]FieldConfig)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, ok := codec.ColumnName(f)
		if !ok {
			continue
		}

		tokens, err := parseTag(f.Tag.Get("easydb"))
		if err != nil {
			return nil, fmt.Errorf("typemeta: field %s: %w", f.Name, err)
		}

		cfg := FieldConfig{Identity: hasIdentity && f.Name == identityField}
		if err := applyTokens(&cfg, tokens); err != nil {
			return nil, fmt.Errorf("typemeta: field %s: %w", f.Name, err)
		}

		if cfg.Identity {
			if tokens.noDefaultUniqueID && cfg.Index == IndexUnique {
				return nil, fmt.Errorf("typemeta: field %s: noDefaultUniqueId combined with unique is an error", f.Name)
			}
			if !tokens.noDefaultUniqueID && cfg.Index == IndexNone {
				cfg.Index = IndexUnique
			}
		} else if tokens.noDefaultUniqueID {
			return nil, fmt.Errorf("typemeta: field %s: noDefaultUniqueId on a non-identity field is an error", f.Name)
		}

		if cfg.Collation == "" {
			cfg.Collation = "string"
		}
		out[name] = cfg
	}
	return out, nil
}

// IdentityField returns the struct field name the type treats as its
// identity column: the first field tagged `easydb:"id"`, or else a field
// literally named "ID".
func IdentityField(t reflect.Type) (string, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if hasToken(f.Tag.Get("easydb"), "id") {
			return f.Name, true
		}
	}
	if _, ok := t.FieldByName("ID"); ok {
		return "ID", true
	}
	return "", false
}

func hasToken(tag, token string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == token {
			return true
		}
	}
	return false
}

type tagTokens struct {
	unique            bool
	index             bool
	collations        []string
	noDefaultUniqueID bool
}

func parseTag(tag string) (tagTokens, error) {
	var tt tagTokens
	if tag == "" {
		return tt, nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case part == "id":
			// Identity marker, handled by IdentityField; not a CombinedConfig annotation.
		case part == "msgpack":
			// Binary-encoding marker, handled by internal/codec; not a CombinedConfig annotation.
		case part == "unique":
			tt.unique = true
		case part == "index":
			tt.index = true
		case part == "noDefaultUniqueId":
			tt.noDefaultUniqueID = true
		case strings.HasPrefix(part, "collation="):
			tt.collations = append(tt.collations, strings.TrimPrefix(part, "collation="))
		default:
			return tt, fmt.Errorf("unrecognised easydb tag annotation %q", part)
		}
	}
	return tt, nil
}

func applyTokens(cfg *FieldConfig, tt tagTokens) error {
	if len(tt.collations) > 1 {
		return fmt.Errorf("multiple collation annotations: %s", strings.Join(tt.collations, ", "))
	}
	if len(tt.collations) == 1 {
		cfg.Collation = tt.collations[0]
	}
	switch {
	case tt.unique:
		cfg.Index = IndexUnique
	case tt.index:
		cfg.Index = IndexRegular
	}
	return nil
}
