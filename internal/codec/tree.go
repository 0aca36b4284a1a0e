package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// TreeKind identifies which arm of Tree is populated (spec §3 "Encoded tree").
type TreeKind int

const (
	KindNull TreeKind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Tree is an in-memory tagged tree used only during reflection: null |
// bool | number | string | array | object-of-string-to-tree. Two nodes are
// equal iff structurally equal.
type Tree struct {
	Kind TreeKind
	Bool bool
	Num  json.Number
	Str  string
	Arr  []Tree
	Obj  map[string]Tree
}

// EncodeTree JSON-marshals v and parses the result back into a Tree,
// preserving numeric precision via json.Number.
func EncodeTree(v any) (Tree, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Tree{}, fmt.Errorf("codec: marshalling %T: %w", v, err)
	}
	return DecodeTreeJSON(b)
}

// DecodeTreeJSON parses raw JSON bytes into a Tree.
func DecodeTreeJSON(raw []byte) (Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var any0 any
	if err := dec.Decode(&any0); err != nil {
		return Tree{}, fmt.Errorf("codec: parsing JSON: %w", err)
	}
	return fromAny(any0), nil
}

func fromAny(v any) Tree {
	switch x := v.(type) {
	case nil:
		return Tree{Kind: KindNull}
	case bool:
		return Tree{Kind: KindBool, Bool: x}
	case json.Number:
		return Tree{Kind: KindNumber, Num: x}
	case string:
		return Tree{Kind: KindString, Str: x}
	case []any:
		arr := make([]Tree, len(x))
		for i, e := range x {
			arr[i] = fromAny(e)
		}
		return Tree{Kind: KindArray, Arr: arr}
	case map[string]any:
		obj := make(map[string]Tree, len(x))
		for k, e := range x {
			obj[k] = fromAny(e)
		}
		return Tree{Kind: KindObject, Obj: obj}
	default:
		return Tree{Kind: KindNull}
	}
}

// MarshalCanonicalJSON renders t with sorted object keys and unescaped
// slashes, so that serialisation is stable across parse/serialise cycles
// (spec §3 "JSON serialisation uses sorted keys and no escaped slashes").
func (t Tree) MarshalCanonicalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.writeCanonical(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t Tree) writeCanonical(buf *bytes.Buffer) error {
	switch t.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if t.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(t.Num.String())
	case KindString:
		b, err := json.Marshal(t.Str)
		if err != nil {
			return err
		}
		buf.Write(bytes.ReplaceAll(b, []byte(`\/`), []byte(`/`)))
	case KindArray:
		buf.WriteByte('[')
		for i, e := range t.Arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.writeCanonical(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		keys := make([]string, 0, len(t.Obj))
		for k := range t.Obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := t.Obj[k].writeCanonical(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Tree) bool {
	ab, err1 := a.MarshalCanonicalJSON()
	bb, err2 := b.MarshalCanonicalJSON()
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Path is an ordered sequence of string keys locating a leaf (spec §3
// "Property path"). The head element names the top-level column.
type Path []string

func (p Path) String() string {
	var buf bytes.Buffer
	for i, k := range p {
		if i > 0 {
			buf.WriteByte('.')
		}
		buf.WriteString(k)
	}
	return buf.String()
}

// LeafPaths walks t, descending only through object nodes, and returns the
// property path to every leaf (a leaf is anything that is not an object:
// null, bool, number, string, or array — arrays are never descended into,
// since subscript paths are not supported, spec §4.D).
func LeafPaths(t Tree) []Path {
	var out []Path
	var walk func(Tree, Path)
	walk = func(node Tree, prefix Path) {
		if node.Kind != KindObject {
			path := make(Path, len(prefix))
			copy(path, prefix)
			out = append(out, path)
			return
		}
		keys := make([]string, 0, len(node.Obj))
		for k := range node.Obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(node.Obj[k], append(prefix, k))
		}
	}
	walk(t, nil)
	return out
}

// At navigates t through object nodes following path, returning the node
// found there, or ok=false if path does not resolve.
func At(t Tree, path Path) (Tree, bool) {
	node := t
	for _, k := range path {
		if node.Kind != KindObject {
			return Tree{}, false
		}
		next, ok := node.Obj[k]
		if !ok {
			return Tree{}, false
		}
		node = next
	}
	return node, true
}
