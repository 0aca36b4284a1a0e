// Package keypath implements the field-path mapper (spec §4.D): it
// inverts a typed field-path accessor closure into a dotted property path
// inside a record type's encoded representation, using the sample-value
// grid (spec §4.C) and fingerprinting, since Go closures cannot be
// introspected back into the struct field they read.
package keypath

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/syssam/easydb/internal/apperror"
	"github.com/syssam/easydb/internal/codec"
	"github.com/syssam/easydb/internal/sample"
)

// FieldPath is a typed, compile-time field selector for record type T
// yielding a value of type V — the Go analogue of a host language key
// path (spec GLOSSARY "Field-path"). It is never a bare string.
type FieldPath[T any, V any] struct {
	name   string
	access func(T) V
}

// Field constructs a FieldPath from an accessor closure. name is used only
// for error messages; it need not match any internal property name.
func Field[T any, V any](name string, access func(T) V) FieldPath[T, V] {
	return FieldPath[T, V]{name: name, access: access}
}

// Name returns the selector's human-readable label.
func (f FieldPath[T, V]) Name() string { return f.name }

func (f FieldPath[T, V]) id() uintptr {
	return reflect.ValueOf(f.access).Pointer()
}

// Mapper resolves FieldPath accessors for one record type T into property
// paths, and caches the result by accessor identity (spec §4.D step 3 of
// lookup).
type Mapper[T any] struct {
	typ         reflect.Type
	instances   []T
	fingerprint map[string]codec.Path
	rootPaths   []codec.Path

	cacheMu sync.RWMutex
	cache   map[uintptr]codec.Path
}

// Build constructs a Mapper for T using reg's sample pairs.
func Build[T any](reg *sample.Registry) (*Mapper[T], error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil || typ.Kind() != reflect.Struct {
		name := "<nil>"
		if typ != nil {
			name = typ.String()
		}
		return nil, &apperror.ReflectionError{
			Subkind: apperror.ReflectionInvalidRecordType,
			Type:    name,
			Message: "record type must be a struct",
		}
	}

	instVals, _, err := generateInstances(typ, reg)
	if err != nil {
		var missing *sample.MissingSampleError
		if errors.As(err, &missing) {
			return nil, &apperror.ReflectionError{
				Subkind: apperror.ReflectionNoSamples,
				Type:    typ.String(),
				Message: err.Error(),
			}
		}
		return nil, err
	}

	instances := make([]T, len(instVals))
	trees := make([]codec.Tree, len(instVals))
	for i, iv := range instVals {
		instances[i] = iv.Interface().(T)
		tree, err := codec.EncodeTree(instances[i])
		if err != nil {
			return nil, fmt.Errorf("keypath: encoding sample instance %d: %w", i, err)
		}
		trees[i] = tree
	}

	basePaths := codec.LeafPaths(trees[0])
	baseSet := make(map[string]bool, len(basePaths))
	for _, p := range basePaths {
		baseSet[p.String()] = true
	}
	for i := 1; i < len(trees); i++ {
		ps := codec.LeafPaths(trees[i])
		if len(ps) != len(basePaths) {
			return nil, fmt.Errorf("keypath: sample instance %d has a different property-path set than instance 0", i)
		}
		for _, p := range ps {
			if !baseSet[p.String()] {
				return nil, fmt.Errorf("keypath: sample instance %d introduced an unexpected property path %q", i, p)
			}
		}
	}

	fingerprint := make(map[string]codec.Path, len(basePaths))
	var rootPaths []codec.Path
	seenRoot := map[string]bool{}
	for _, p := range basePaths {
		tuple := make([]codec.Tree, len(trees))
		for i, tr := range trees {
			v, ok := codec.At(tr, p)
			if !ok {
				return nil, fmt.Errorf("keypath: property path %q missing from sample instance %d", p, i)
			}
			tuple[i] = v
		}
		key := fingerprintKey(tuple)
		fingerprint[key] = p
		if !seenRoot[p[0]] {
			seenRoot[p[0]] = true
			rootPaths = append(rootPaths, codec.Path{p[0]})
		}
	}
	sort.Slice(rootPaths, func(i, j int) bool { return rootPaths[i][0] < rootPaths[j][0] })

	return &Mapper[T]{
		typ:         typ,
		instances:   instances,
		fingerprint: fingerprint,
		rootPaths:   rootPaths,
		cache:       make(map[uintptr]codec.Path),
	}, nil
}

// RootProperties returns the record's top-level column names, in
// deterministic order (spec §4.I step 3: "the desired column set from the
// root properties").
func (m *Mapper[T]) RootProperties() []string {
	out := make([]string, len(m.rootPaths))
	for i, p := range m.rootPaths {
		out[i] = p[0]
	}
	return out
}

// Instances returns the sample instances used to build the fingerprint
// map, for callers (e.g. typemeta) that need representative values.
func (m *Mapper[T]) Instances() []T { return m.instances }

func fingerprintKey(tuple []codec.Tree) string {
	b, err := (codec.Tree{Kind: codec.KindArray, Arr: tuple}).MarshalCanonicalJSON()
	if err != nil {
		// Unreachable: tuple elements are always JSON-Tree values already.
		panic(err)
	}
	return string(b)
}

// Lookup resolves fp to its property path within T's encoded
// representation. Go cannot add a type parameter to a method, so this is
// a free function parameterised over both T and the accessor's value
// type V (spec §4.D lookup algorithm).
func Lookup[T any, V any](m *Mapper[T], fp FieldPath[T, V]) (codec.Path, error) {
	id := fp.id()
	m.cacheMu.RLock()
	if p, ok := m.cache[id]; ok {
		m.cacheMu.RUnlock()
		return p, nil
	}
	m.cacheMu.RUnlock()

	tuple := make([]codec.Tree, len(m.instances))
	for i, inst := range m.instances {
		v := fp.access(inst)
		tr, err := codec.EncodeTree(v)
		if err != nil {
			return nil, fmt.Errorf("keypath: encoding field path %q on sample %d: %w", fp.name, i, err)
		}
		tuple[i] = tr
	}
	key := fingerprintKey(tuple)
	path, ok := m.fingerprint[key]
	if !ok {
		return nil, &apperror.ReflectionError{
			Subkind: apperror.ReflectionKeyPathNotFound,
			Type:    m.typ.String(),
			Message: fmt.Sprintf("field path %q cannot be mapped to a property; subscript paths into arrays/dictionaries are not supported", fp.name),
		}
	}

	m.cacheMu.Lock()
	m.cache[id] = path
	m.cacheMu.Unlock()
	return path, nil
}
