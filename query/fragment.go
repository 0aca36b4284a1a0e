// Package query implements the query builder and SQL fragment
// materialisation (spec §4.J): a composable filter/order/limit/update/
// delete builder whose field references are expressed through typed
// field-path selectors, never bare strings.
package query

import "strings"

type fragPartKind int

const (
	fragLiteral fragPartKind = iota
	fragParam
)

type fragPart struct {
	kind  fragPartKind
	text  string
	value any
}

// SQLFragment is a sequence of literal-text and parameter parts, used for
// raw SQL escape hatches (Database.Execute) and custom UPDATE SET
// clauses. It renders to SQL text plus an ordered parameter vector, so
// call sites read as natural SQL with typed holes (spec §4.J).
type SQLFragment struct {
	parts []fragPart
}

// NewFragment returns an empty fragment.
func NewFragment() *SQLFragment { return &SQLFragment{} }

// Literal appends s verbatim.
func (f *SQLFragment) Literal(s string) *SQLFragment {
	f.parts = append(f.parts, fragPart{kind: fragLiteral, text: s})
	return f
}

// Param appends a `?` placeholder bound to v.
func (f *SQLFragment) Param(v any) *SQLFragment {
	f.parts = append(f.parts, fragPart{kind: fragParam, value: v})
	return f
}

// Render produces the fragment's SQL text and parameter vector, in the
// order parts were appended.
func (f *SQLFragment) Render() (string, []any) {
	var b strings.Builder
	var args []any
	for _, p := range f.parts {
		switch p.kind {
		case fragLiteral:
			b.WriteString(p.text)
		case fragParam:
			b.WriteByte('?')
			args = append(args, p.value)
		}
	}
	return b.String(), args
}
