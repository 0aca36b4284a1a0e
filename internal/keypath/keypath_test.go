package keypath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/easydb/internal/keypath"
	"github.com/syssam/easydb/internal/sample"
)

type address struct {
	City string `json:"city"`
	Zip  string `json:"zip"`
}

type person struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Age     int     `json:"age"`
	Address address `json:"address"`
}

type withSlice struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

func TestLookup_ResolvesTopLevelAndNestedFields(t *testing.T) {
	m, err := keypath.Build[person](sample.NewRegistry())
	require.NoError(t, err)

	name := keypath.Field("name", func(p person) string { return p.Name })
	path, err := keypath.Lookup(m, name)
	require.NoError(t, err)
	assert.Equal(t, "name", path.String())

	city := keypath.Field("address.city", func(p person) string { return p.Address.City })
	path, err = keypath.Lookup(m, city)
	require.NoError(t, err)
	assert.Equal(t, "address.city", path.String())

	age := keypath.Field("age", func(p person) int { return p.Age })
	path, err = keypath.Lookup(m, age)
	require.NoError(t, err)
	assert.Equal(t, "age", path.String())
}

func TestLookup_DistinctFieldsNeverCollide(t *testing.T) {
	m, err := keypath.Build[person](sample.NewRegistry())
	require.NoError(t, err)

	idPath, err := keypath.Lookup(m, keypath.Field("id", func(p person) string { return p.ID }))
	require.NoError(t, err)
	zipPath, err := keypath.Lookup(m, keypath.Field("address.zip", func(p person) string { return p.Address.Zip }))
	require.NoError(t, err)

	assert.NotEqual(t, idPath.String(), zipPath.String())
}

func TestLookup_CachesByAccessorIdentity(t *testing.T) {
	m, err := keypath.Build[person](sample.NewRegistry())
	require.NoError(t, err)

	fp := keypath.Field("name", func(p person) string { return p.Name })
	p1, err := keypath.Lookup(m, fp)
	require.NoError(t, err)
	p2, err := keypath.Lookup(m, fp)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestLookup_NonFieldAccessorFails(t *testing.T) {
	m, err := keypath.Build[person](sample.NewRegistry())
	require.NoError(t, err)

	constant := keypath.Field("constant", func(p person) string { return "always-the-same" })
	_, err = keypath.Lookup(m, constant)
	assert.Error(t, err)
}

func TestBuild_RootPropertiesAreSortedColumnNames(t *testing.T) {
	m, err := keypath.Build[person](sample.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"address", "age", "id", "name"}, m.RootProperties())
}

func TestBuild_UnsupportedSliceFieldFails(t *testing.T) {
	_, err := keypath.Build[withSlice](sample.NewRegistry())
	assert.Error(t, err, "subscript paths into arrays are not supported by the mapper")
}
