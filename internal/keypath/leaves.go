package keypath

import (
	"fmt"
	"reflect"

	"github.com/syssam/easydb/internal/sample"
)

// leaf identifies one primitive leaf reachable from a record's root type by
// a sequence of struct field indices, descending through nested structs
// and pointer-to-struct fields (but never into slices, maps or arrays —
// subscript paths are not supported, spec §4.D).
type leaf struct {
	fieldIndex []int
	typ        reflect.Type
}

// collectLeaves walks t's exported fields recursively. A field is treated
// as a leaf once the sample registry can supply a pair for its exact type
// (this also covers struct-shaped leaves like time.Time/uuid.UUID/url.URL,
// since those are pre-registered); otherwise struct and pointer-to-struct
// fields are descended into, and anything else that isn't registered is a
// reflection error naming the type (spec §4.C "causes reflection to fail").
func collectLeaves(t reflect.Type, reg *sample.Registry) ([]leaf, error) {
	var out []leaf
	var walk func(reflect.Type, []int) error
	walk = func(typ reflect.Type, prefix []int) error {
		if typ.Kind() != reflect.Struct {
			return fmt.Errorf("keypath: %s is not a struct", typ)
		}
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			if f.PkgPath != "" {
				continue // unexported
			}
			path := append(append([]int{}, prefix...), i)
			ft := f.Type
			if _, ok := reg.Lookup(ft); ok {
				out = append(out, leaf{fieldIndex: path, typ: ft})
				continue
			}
			switch {
			case ft.Kind() == reflect.Struct:
				if err := walk(ft, path); err != nil {
					return err
				}
			case ft.Kind() == reflect.Ptr && ft.Elem().Kind() == reflect.Struct:
				if err := walk(ft.Elem(), path); err != nil {
					return err
				}
			default:
				return &sample.MissingSampleError{Type: ft}
			}
		}
		return nil
	}
	if err := walk(t, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// setLeaf assigns value v at leaf's field-index path within root,
// allocating intermediate pointer fields as needed.
func setLeaf(root reflect.Value, l leaf, v any) {
	cur := root
	for depth, idx := range l.fieldIndex {
		if cur.Kind() == reflect.Ptr {
			if cur.IsNil() {
				cur.Set(reflect.New(cur.Type().Elem()))
			}
			cur = cur.Elem()
		}
		cur = cur.Field(idx)
		if depth == len(l.fieldIndex)-1 {
			cur.Set(reflect.ValueOf(v))
			return
		}
		if cur.Kind() == reflect.Ptr && cur.IsNil() {
			cur.Set(reflect.New(cur.Type().Elem()))
		}
	}
}

// generateInstances builds the sample-value grid's record instances for
// type t (spec §4.C/§4.D step 1-2): one struct value per grid row, with
// every leaf field assigned its sample-zero or sample-one value per the
// doubling-run bit matrix.
func generateInstances(t reflect.Type, reg *sample.Registry) ([]reflect.Value, []leaf, error) {
	leaves, err := collectLeaves(t, reg)
	if err != nil {
		return nil, nil, err
	}
	if len(leaves) == 0 {
		return nil, nil, fmt.Errorf("keypath: %s has no leaf fields", t)
	}
	grid := sample.Grid(len(leaves))
	instances := make([]reflect.Value, len(grid))
	for r, row := range grid {
		inst := reflect.New(t).Elem()
		for c, l := range leaves {
			pair, _ := reg.Lookup(l.typ)
			if row[c] {
				setLeaf(inst, l, pair.One)
			} else {
				setLeaf(inst, l, pair.Zero)
			}
		}
		instances[r] = inst
	}
	return instances, leaves, nil
}
