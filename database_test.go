package easydb_test

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/easydb"
	"github.com/syssam/easydb/internal/keypath"
	"github.com/syssam/easydb/query"
)

func openTestDB(t *testing.T) *easydb.Database {
	t.Helper()
	ctx := context.Background()
	db, err := easydb.Open(ctx, "file:"+t.Name()+"?mode=memory&cache=shared", easydb.Options{MaxReadConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- Headline scenario ---

type Book struct {
	ID         uuid.UUID `json:"id" easydb:"id"`
	Name       string    `json:"name" easydb:"unique"`
	Author     string    `json:"author"`
	PriceCents int       `json:"priceCents"`
}

var (
	bookAuthor     = keypath.Field("Author", func(b Book) string { return b.Author })
	bookPriceCents = keypath.Field("PriceCents", func(b Book) int { return b.PriceCents })
)

func TestHeadlineScenario(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	books, err := easydb.CollectionFor[Book](ctx, db)
	require.NoError(t, err)

	require.NoError(t, books.Insert(ctx, Book{
		ID: uuid.New(), Name: "Catch-22", Author: "Joseph Heller", PriceCents: 1050,
	}))

	qb := books.All()
	query.Filter(qb, bookPriceCents, query.OpLT, 1000)
	query.OrderBy(qb, bookAuthor, query.Desc, query.NullsDefault)
	got, err := qb.FetchMany(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	rows, err := db.Pool().DB().QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'Book'")
	require.NoError(t, err)
	defer rows.Close()
	var indices []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		indices = append(indices, name)
	}
	assert.Contains(t, indices, "Book-id-unique")
	assert.Contains(t, indices, "Book-name-unique")
}

// --- Migration scenario ---

type itemV1 struct {
	ID uuid.UUID `json:"id" easydb:"id"`
	A  int       `json:"a"`
}

func (itemV1) TableName() string { return "migration_item" }

type itemV2 struct {
	ID uuid.UUID `json:"id" easydb:"id"`
	A  int       `json:"a"`
	B  *string   `json:"b"`
}

func (itemV2) TableName() string { return "migration_item" }

func TestMigrationScenario(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	v1, err := easydb.CollectionFor[itemV1](ctx, db)
	require.NoError(t, err)
	u1, u2 := uuid.New(), uuid.New()
	require.NoError(t, v1.Insert(ctx, itemV1{ID: u1, A: 4}, itemV1{ID: u2, A: 5}))

	v2, err := easydb.CollectionFor[itemV2](ctx, db)
	require.NoError(t, err)
	u3 := uuid.New()
	yo := "yo"
	require.NoError(t, v2.Insert(ctx, itemV2{ID: u3, A: 6, B: &yo}))

	got, err := v2.All().FetchMany(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	byID := make(map[uuid.UUID]itemV2, len(got))
	for _, g := range got {
		byID[g.ID] = g
	}
	assert.Equal(t, 4, byID[u1].A)
	assert.Nil(t, byID[u1].B)
	assert.Equal(t, 5, byID[u2].A)
	assert.Nil(t, byID[u2].B)
	assert.Equal(t, 6, byID[u3].A)
	require.NotNil(t, byID[u3].B)
	assert.Equal(t, "yo", *byID[u3].B)
}

// --- Transaction rollback scenario ---

type counterRow struct {
	ID string `json:"id" easydb:"id"`
	N  int    `json:"n"`
}

func TestTransactionRollbackScenario(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	counters, err := easydb.CollectionFor[counterRow](ctx, db)
	require.NoError(t, err)

	err = db.Write(ctx, func(ctx context.Context) error {
		if err := counters.Insert(ctx, counterRow{ID: "1", N: 1}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)
	got, err := counters.All().FetchMany(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	err = db.Write(ctx, func(ctx context.Context) error {
		if err := counters.Insert(ctx, counterRow{ID: "1", N: 1}); err != nil {
			return err
		}
		innerErr := db.Write(ctx, func(ctx context.Context) error {
			if err := counters.Insert(ctx, counterRow{ID: "2", N: 2}); err != nil {
				return err
			}
			return assert.AnError
		})
		assert.Error(t, innerErr)
		return counters.Insert(ctx, counterRow{ID: "3", N: 3})
	})
	require.NoError(t, err)

	got, err = counters.All().FetchMany(ctx)
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, g := range got {
		ids[i] = g.ID
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"1", "3"}, ids)
}

// --- Unicode collation scenario ---

type note struct {
	ID   string `json:"id" easydb:"id"`
	Text string `json:"text"`
}

var noteText = keypath.Field("Text", func(n note) string { return n.Text })

func TestUnicodeCollationScenario(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	notes, err := easydb.CollectionFor[note](ctx, db)
	require.NoError(t, err)

	precomposed := "caf" + "é"
	decomposed := "caf" + "e" + "́"
	require.NoError(t, notes.Insert(ctx, note{ID: "1", Text: precomposed}))

	defaultMatch := notes.All()
	query.Filter(defaultMatch, noteText, query.OpEQ, decomposed)
	got, err := defaultMatch.FetchMany(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	binaryMatch := notes.All()
	query.Filter(binaryMatch, noteText, query.OpEQ, decomposed, "binary")
	got, err = binaryMatch.FetchMany(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// --- Custom collation scenario ---

type label struct {
	ID    string `json:"id" easydb:"id"`
	Value string `json:"value"`
}

var labelValue = keypath.Field("Value", func(l label) string { return l.Value })

func meFirstCollation(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "me first!":
		return -1
	case b == "me first!":
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func TestCustomCollationScenario(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.RegisterCollation("meFirst", meFirstCollation))

	labels, err := easydb.CollectionFor[label](ctx, db)
	require.NoError(t, err)
	require.NoError(t, labels.Insert(ctx,
		label{ID: "1", Value: "x"},
		label{ID: "2", Value: "me first!"},
		label{ID: "3", Value: "a"},
	))

	qb := labels.All()
	query.OrderBy(qb, labelValue, query.Asc, query.NullsDefault, "meFirst")
	got, err := qb.FetchMany(ctx)
	require.NoError(t, err)
	values := make([]string, len(got))
	for i, g := range got {
		values[i] = g.Value
	}
	assert.Equal(t, []string{"me first!", "a", "x"}, values)
}

// A custom collation used on an indexed field must also install onto the
// pool's pinned write connection: migration's CREATE INDEX runs there, not
// on a freshly opened read connection.
type taggedLabel struct {
	ID    string `json:"id" easydb:"id"`
	Value string `json:"value" easydb:"unique,collation=meFirst"`
}

func TestCustomCollationScenario_UsableOnIndexedColumn(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.RegisterCollation("meFirst", meFirstCollation))

	labels, err := easydb.CollectionFor[taggedLabel](ctx, db)
	require.NoError(t, err)

	rows, err := db.Pool().DB().QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'taggedLabel'")
	require.NoError(t, err)
	defer rows.Close()
	var indices []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		indices = append(indices, name)
	}
	assert.Contains(t, indices, "taggedLabel-value-unique")

	require.NoError(t, labels.Insert(ctx, taggedLabel{ID: "1", Value: "x"}))
}

// --- fetchOne laziness scenario ---

type entry struct {
	ID   string `json:"id" easydb:"id"`
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

func TestFetchOneLazinessScenario(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	entries, err := easydb.CollectionFor[entry](ctx, db)
	require.NoError(t, err)

	require.NoError(t, entries.Insert(ctx, entry{ID: "1", Seq: 1, Text: "OK"}))
	// Inserted directly, bypassing the codec: a non-numeric value in a
	// non-optional int field, so decoding row 2 fails (spec §4.J
	// fetchOne scenario).
	_, err = db.Pool().DB().ExecContext(ctx,
		"INSERT INTO entry (id, seq, text) VALUES (?, ?, ?)", "2", "not-a-number", "second")
	require.NoError(t, err)

	_, err = entries.All().FetchMany(ctx)
	assert.Error(t, err)

	qb := entries.All()
	query.OrderBy(qb, keypath.Field("ID", func(e entry) string { return e.ID }), query.Asc, query.NullsDefault)
	got, err := qb.FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK", got.Text)
}
