package common

import (
	"cbs/src/types"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourtLockKeys(t *testing.T) {
	// Lock acquisition order must be deterministic regardless of how the
	// caller collected the court ids, or two transactions holding partial
	// sets could wait on each other forever.
	assert.Equal(t, []uint{2, 5, 9}, courtLockKeys([]uint{9, 2, 5}))
	assert.Equal(t, []uint{2, 5, 9}, courtLockKeys([]uint{5, 9, 2, 5, 9}))
	assert.Equal(t, []uint{3}, courtLockKeys([]uint{0, 3, 0}))
	assert.Empty(t, courtLockKeys(nil))
}

func TestLockCourtsNoopOnSqlite(t *testing.T) {
	conn := setupTestDB(t)
	// sqlite has a single writer, there is nothing to acquire.
	require.NoError(t, lockCourts(conn, 1, 2, 3))
}

func TestLockContentionClassification(t *testing.T) {
	t.Run("postgres serialization failures are retryable", func(t *testing.T) {
		for _, code := range []string{"40001", "40P01", "55P03"} {
			err := asDomainError(fmt.Errorf("tx failed: %w", &pgconn.PgError{Code: code, Message: "deadlock detected"}))
			assert.Equal(t, types.ERR_CONCURRENCY, types.KindOf(err), code)
			assert.True(t, types.Retryable(err), code)
		}
	})

	t.Run("sqlite busy is retryable", func(t *testing.T) {
		err := asDomainError(errors.New("database is locked"))
		assert.Equal(t, types.ERR_CONCURRENCY, types.KindOf(err))
		assert.True(t, types.Retryable(err))
	})

	t.Run("engine errors pass through", func(t *testing.T) {
		orig := types.NewConflictError("slot unavailable")
		assert.Same(t, orig, asDomainError(orig))
		assert.False(t, types.Retryable(orig))
	})

	t.Run("other failures stay unclassified", func(t *testing.T) {
		orig := errors.New("connection refused")
		assert.Same(t, orig, asDomainError(orig))
		assert.Equal(t, types.ErrorKind(""), types.KindOf(asDomainError(orig)))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, asDomainError(nil))
	})
}
