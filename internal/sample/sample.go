// Package sample implements the "multifarious" sample-value grid (spec
// §4.C): a small set of distinct values per leaf type, combined into a
// doubling-run bit matrix that guarantees every pair of leaves differs in
// at least one generated record instance.
package sample

import (
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Pair is the sample-zero/sample-one pair registered for one leaf type.
// The two values must encode to observably different tagged values and
// must never collide with any other registered type's pair.
type Pair struct {
	Zero any
	One  any
}

// Registry holds the per-leaf-type sample pairs. A fresh Registry already
// contains the built-in pairs from spec §4.C; callers may Register
// additional leaf types before reflecting over a record.
type Registry struct {
	byType map[reflect.Type]Pair
}

// NewRegistry returns a Registry pre-populated with the built-in sample
// pairs for every natively supported primitive leaf type (spec §3).
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[reflect.Type]Pair)}
	r.Register(reflect.TypeOf(false), false, true)
	r.Register(reflect.TypeOf(int(0)), 0, 1)
	r.Register(reflect.TypeOf(int8(0)), int8(0), int8(1))
	r.Register(reflect.TypeOf(int16(0)), int16(0), int16(1))
	r.Register(reflect.TypeOf(int32(0)), int32(0), int32(1))
	r.Register(reflect.TypeOf(int64(0)), int64(0), int64(1))
	r.Register(reflect.TypeOf(uint(0)), uint(0), uint(1))
	r.Register(reflect.TypeOf(uint8(0)), uint8(0), uint8(1))
	r.Register(reflect.TypeOf(uint16(0)), uint16(0), uint16(1))
	r.Register(reflect.TypeOf(uint32(0)), uint32(0), uint32(1))
	r.Register(reflect.TypeOf(uint64(0)), uint64(0), uint64(1))
	r.Register(reflect.TypeOf(float32(0)), float32(0), float32(1))
	r.Register(reflect.TypeOf(float64(0)), float64(0), float64(1))
	r.Register(reflect.TypeOf(""), "0", "1")
	r.Register(reflect.TypeOf([]byte(nil)), []byte{0x00}, []byte{0x01})
	r.Register(reflect.TypeOf(time.Time{}),
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1971, 1, 1, 0, 0, 0, 0, time.UTC))
	r.Register(reflect.TypeOf(uuid.UUID{}),
		uuid.MustParse("00000000-0000-0000-0000-000000000000"),
		uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	r.Register(reflect.TypeOf(url.URL{}),
		mustURL("https://example.invalid/0"),
		mustURL("https://example.invalid/1"))
	return r
}

func mustURL(s string) url.URL {
	u, err := url.Parse(s)
	if err != nil {
		panic(err)
	}
	return *u
}

// Register adds or overrides the sample pair for typ.
func (r *Registry) Register(typ reflect.Type, zero, one any) {
	r.byType[typ] = Pair{Zero: zero, One: one}
}

// Lookup returns the sample pair for typ, or ok=false if none is
// registered and typ cannot be instantiated directly from the literals
// 0/1 (spec §4.C: "causes reflection to fail... directing the user to
// register a sample pair"). A pointer type uses its pointee's pair, each
// value behind a fresh pointer.
func (r *Registry) Lookup(typ reflect.Type) (Pair, bool) {
	if p, ok := r.byType[typ]; ok {
		return p, true
	}
	one := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		one.SetInt(1)
		return Pair{Zero: reflect.Zero(typ).Interface(), One: one.Interface()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		one.SetUint(1)
		return Pair{Zero: reflect.Zero(typ).Interface(), One: one.Interface()}, true
	case reflect.Float32, reflect.Float64:
		one.SetFloat(1)
		return Pair{Zero: reflect.Zero(typ).Interface(), One: one.Interface()}, true
	case reflect.Ptr:
		p, ok := r.Lookup(typ.Elem())
		if !ok {
			return Pair{}, false
		}
		z, o := reflect.New(typ.Elem()), reflect.New(typ.Elem())
		z.Elem().Set(reflect.ValueOf(p.Zero))
		o.Elem().Set(reflect.ValueOf(p.One))
		return Pair{Zero: z.Interface(), One: o.Interface()}, true
	case reflect.Bool:
		one.SetBool(true)
		return Pair{Zero: reflect.Zero(typ).Interface(), One: one.Interface()}, true
	}
	return Pair{}, false
}

// MissingSampleError reports a leaf type with no registered sample pair.
type MissingSampleError struct{ Type reflect.Type }

func (e *MissingSampleError) Error() string {
	return fmt.Sprintf("sample: no sample pair registered for type %s; register one with Registry.Register", e.Type)
}

// Grid returns an n-row, columns-column bit matrix such that, for every
// pair of distinct columns in [0, columns), some row assigns them
// different bits (spec §4.C doubling-run construction). Rows are ordered
// by increasing run length: row r flips every 2^r columns.
func Grid(columns int) [][]bool {
	if columns <= 0 {
		return nil
	}
	rows := rowCount(columns)
	grid := make([][]bool, rows)
	for r := 0; r < rows; r++ {
		row := make([]bool, columns)
		for c := 0; c < columns; c++ {
			// Columns are 1-indexed internally so that every column's
			// bit-vector across rows is non-zero and pairwise distinct.
			row[c] = ((c + 1) >> uint(r) & 1) == 1
		}
		grid[r] = row
	}
	return grid
}

// rowCount returns ceil(log2(columns+1)), the number of rows needed for
// `columns` pairwise-distinguishable columns.
func rowCount(columns int) int {
	n := 0
	for (1 << uint(n)) < columns+1 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}
