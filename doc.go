/*
Package easydb is a document-oriented, schemaless embedded database
library atop SQLite.

Record types are ordinary Go structs; there is no schema language and no
migration file format. Opening a Database and asking it for a Collection
of a given record type derives that type's table and indices by
reflection, creates the table on first use, and adds any columns a
previous version of the type didn't have:

	db, err := easydb.Open(ctx, "catalog.db", easydb.Options{})
	books, err := easydb.CollectionFor[Book](ctx, db)
	err = books.Insert(ctx, Book{ID: uuid.New(), Name: "Catch-22", Author: "Joseph Heller"})

	qb := books.All()
	query.Filter(qb, BookAuthor, query.OpEQ, "Joseph Heller")
	matches, err := qb.FetchMany(ctx)

Field references in filter/orderBy/update calls go through a typed
field-path value (keypath.Field), never a bare column-name string, so a
typo or a type mismatch between the field and the comparison value fails
to compile rather than failing at query time.
*/
package easydb
