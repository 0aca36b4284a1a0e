package sqlitedriver_test

import (
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/easydb/internal/sqlitedriver"
)

func TestResultCode_ExtractsCodeAndMessage(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrBusy}
	code, msg, ok := sqlitedriver.ResultCode(err)
	assert.True(t, ok)
	assert.Equal(t, int(sqlite3.ErrBusy), code)
	assert.NotEmpty(t, msg)
}

func TestResultCode_WrappedError(t *testing.T) {
	err := fmt.Errorf("preparing statement: %w", sqlite3.Error{Code: sqlite3.ErrError})
	_, _, ok := sqlitedriver.ResultCode(err)
	assert.True(t, ok)
}

func TestResultCode_NonEngineErrorFails(t *testing.T) {
	_, _, ok := sqlitedriver.ResultCode(fmt.Errorf("boom"))
	assert.False(t, ok)
}

func TestIsUniqueConstraint(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	assert.True(t, sqlitedriver.IsUniqueConstraint(err))

	other := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}
	assert.False(t, sqlitedriver.IsUniqueConstraint(other))
}

func TestIsReadOnly(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrReadonly}
	assert.True(t, sqlitedriver.IsReadOnly(err))
	assert.False(t, sqlitedriver.IsReadOnly(sqlite3.Error{Code: sqlite3.ErrBusy}))
}

func TestIsInterrupt(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrInterrupt}
	assert.True(t, sqlitedriver.IsInterrupt(err))
}
