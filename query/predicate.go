package query

import "reflect"

// Op is a filter comparison operator (spec §4.J).
type Op string

const (
	OpEQ        Op = "="
	OpNEQ       Op = "!="
	OpLT        Op = "<"
	OpLTE       Op = "<="
	OpGT        Op = ">"
	OpGTE       Op = ">="
	OpLike      Op = "LIKE"
	OpNotLike   Op = "NOT LIKE"
	OpIsNull    Op = "IS NULL"
	OpIsNotNull Op = "IS NOT NULL"
)

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Nulls is an optional ORDER BY nulls-placement override.
type Nulls string

const (
	NullsDefault Nulls = ""
	NullsFirst   Nulls = "FIRST"
	NullsLast    Nulls = "LAST"
)

type predicate struct {
	column    string
	op        Op
	value     any
	collation string
}

type orderClause struct {
	column    string
	dir       Direction
	nulls     Nulls
	collation string
}

type setClause struct {
	column string
	value  any
}

// isNilValue reports whether v is an untyped nil or a nil pointer,
// interface, slice, or map — the cases that compile an `=` filter down
// to `IS NULL` (spec §4.J: "equality against null compiles to IS NULL,
// not =").
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
