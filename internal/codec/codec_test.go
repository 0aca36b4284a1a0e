package codec_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/easydb/internal/codec"
	"github.com/syssam/easydb/internal/testutil"
	"github.com/syssam/easydb/internal/value"
)

type book struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Author     string  `json:"author"`
	PriceCents int     `json:"priceCents"`
	Subtitle   *string `json:"subtitle"`
}

func TestFields_EncodesTopLevelColumns(t *testing.T) {
	b := book{ID: "U1", Name: "Catch-22", Author: "Joseph Heller", PriceCents: 1050}
	fields, err := codec.Fields(b)
	require.NoError(t, err)

	assert.Equal(t, value.Text("U1"), fields["id"])
	assert.Equal(t, value.Text("Catch-22"), fields["name"])
	assert.Equal(t, value.Int64(1050), fields["priceCents"])
	assert.Equal(t, value.TagNull, fields["subtitle"].Tag, "absent pointer field binds explicit null")
}

func TestDecodeRecord_RoundTrips(t *testing.T) {
	original := book{ID: "U2", Name: "Dune", Author: "Frank Herbert", PriceCents: 899}
	fields, err := codec.Fields(original)
	require.NoError(t, err)

	columns := []string{"id", "name", "author", "priceCents", "subtitle"}
	values := make([]value.Value, len(columns))
	for i, c := range columns {
		values[i] = fields[c]
	}

	decoded, err := codec.DecodeRecord(columns, values, reflect.TypeOf(book{}))
	require.NoError(t, err)
	got := decoded.(book)
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.Name, got.Name)
	assert.Equal(t, original.Author, got.Author)
	assert.Equal(t, original.PriceCents, got.PriceCents)
	assert.Nil(t, got.Subtitle)
}

func TestColumnName_JSONTagWins(t *testing.T) {
	typ := reflect.TypeOf(book{})
	f, _ := typ.FieldByName("PriceCents")
	name, ok := codec.ColumnName(f)
	assert.True(t, ok)
	assert.Equal(t, "priceCents", name)
}

func TestColumnName_JSONDashSkipsField(t *testing.T) {
	type hasIgnored struct {
		Keep    string `json:"keep"`
		Ignored string `json:"-"`
	}
	typ := reflect.TypeOf(hasIgnored{})
	f, _ := typ.FieldByName("Ignored")
	_, ok := codec.ColumnName(f)
	assert.False(t, ok)
}

func TestFields_RejectsNonStruct(t *testing.T) {
	_, err := codec.Fields([]int{1, 2, 3})
	assert.Error(t, err)
}

type tags struct {
	ID   string   `json:"id"`
	Text []string `json:"text" easydb:"msgpack"`
}

func TestFields_MsgpackTagEncodesAsBlob(t *testing.T) {
	rec := tags{ID: "T1", Text: []string{"a", "b"}}
	fields, err := codec.Fields(rec)
	require.NoError(t, err)
	assert.Equal(t, value.TagBlob, fields["text"].Tag, "msgpack-tagged composite field encodes as a blob, not JSON text")
}

func TestDecodeRecord_MsgpackTagRoundTrips(t *testing.T) {
	original := tags{ID: "T2", Text: []string{"x", "y", "z"}}
	fields, err := codec.Fields(original)
	require.NoError(t, err)

	columns := []string{"id", "text"}
	values := []value.Value{fields["id"], fields["text"]}

	decoded, err := codec.DecodeRecord(columns, values, reflect.TypeOf(tags{}))
	require.NoError(t, err)
	testutil.AssertRoundTrip(t, original, decoded.(tags))
}
