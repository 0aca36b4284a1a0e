package typemeta_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/easydb/internal/typemeta"
)

type plainUser struct {
	ID    string `json:"id" easydb:"id"`
	Name  string `json:"name"`
	Email string `json:"email" easydb:"unique,index,collation=caseInsensitive"`
	Bio   string `json:"bio" easydb:"index"`
}

func TestCollect_DefaultsIdentityToImplicitUnique(t *testing.T) {
	cfg, err := typemeta.Collect(reflect.TypeOf(plainUser{}))
	require.NoError(t, err)
	assert.Equal(t, typemeta.IndexUnique, cfg["id"].Index)
	assert.True(t, cfg["id"].Identity)
}

func TestCollect_UniqueWinsOverIndex(t *testing.T) {
	cfg, err := typemeta.Collect(reflect.TypeOf(plainUser{}))
	require.NoError(t, err)
	assert.Equal(t, typemeta.IndexUnique, cfg["email"].Index)
	assert.Equal(t, "caseInsensitive", cfg["email"].Collation)
}

func TestCollect_PlainIndexWithDefaultCollation(t *testing.T) {
	cfg, err := typemeta.Collect(reflect.TypeOf(plainUser{}))
	require.NoError(t, err)
	assert.Equal(t, typemeta.IndexRegular, cfg["bio"].Index)
	assert.Equal(t, "string", cfg["bio"].Collation)
}

func TestCollect_PlainFieldGetsDefaultCollationAndNoIndex(t *testing.T) {
	cfg, err := typemeta.Collect(reflect.TypeOf(plainUser{}))
	require.NoError(t, err)
	assert.Equal(t, typemeta.IndexNone, cfg["name"].Index)
	assert.Equal(t, "string", cfg["name"].Collation)
}

type duplicateCollation struct {
	ID    string `json:"id" easydb:"id"`
	Value string `json:"value" easydb:"collation=binary,collation=string"`
}

func TestCollect_DuplicateCollationIsAnError(t *testing.T) {
	_, err := typemeta.Collect(reflect.TypeOf(duplicateCollation{}))
	assert.Error(t, err)
}

type noDefaultUniqueIdentity struct {
	ID   string `json:"id" easydb:"id,noDefaultUniqueId"`
	Name string `json:"name"`
}

func TestCollect_NoDefaultUniqueIdSuppressesImplicitUnique(t *testing.T) {
	cfg, err := typemeta.Collect(reflect.TypeOf(noDefaultUniqueIdentity{}))
	require.NoError(t, err)
	assert.Equal(t, typemeta.IndexNone, cfg["id"].Index)
}

type noDefaultUniqueIdWithUnique struct {
	ID string `json:"id" easydb:"id,noDefaultUniqueId,unique"`
}

func TestCollect_NoDefaultUniqueIdWithUniqueIsAnError(t *testing.T) {
	_, err := typemeta.Collect(reflect.TypeOf(noDefaultUniqueIdWithUnique{}))
	assert.ErrorContains(t, err, "noDefaultUniqueId combined with unique")
}

type noDefaultUniqueIdOnNonIdentity struct {
	ID    string `json:"id" easydb:"id"`
	Other string `json:"other" easydb:"noDefaultUniqueId"`
}

func TestCollect_NoDefaultUniqueIdOnNonIdentityIsAnError(t *testing.T) {
	_, err := typemeta.Collect(reflect.TypeOf(noDefaultUniqueIdOnNonIdentity{}))
	assert.ErrorContains(t, err, "non-identity field")
}

type noIdentity struct {
	Name string `json:"name"`
}

func TestIdentityField_NoneWithoutTagOrFieldNamedID(t *testing.T) {
	_, ok := typemeta.IdentityField(reflect.TypeOf(noIdentity{}))
	assert.False(t, ok)
}

type conventionalID struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestIdentityField_ConventionalIDFieldIsIdentity(t *testing.T) {
	name, ok := typemeta.IdentityField(reflect.TypeOf(conventionalID{}))
	require.True(t, ok)
	assert.Equal(t, "ID", name)

	cfg, err := typemeta.Collect(reflect.TypeOf(conventionalID{}))
	require.NoError(t, err)
	assert.True(t, cfg["id"].Identity)
	assert.Equal(t, typemeta.IndexUnique, cfg["id"].Index)
}

func TestCollect_UnrecognisedAnnotationIsAnError(t *testing.T) {
	type bad struct {
		ID    string `json:"id" easydb:"id"`
		Other string `json:"other" easydb:"bogus"`
	}
	_, err := typemeta.Collect(reflect.TypeOf(bad{}))
	assert.ErrorContains(t, err, "unrecognised")
}
