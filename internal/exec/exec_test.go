package exec_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapolap/internal/exec"
	"github.com/leapstack-labs/leapolap/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T) (*exec.Executor, sqlmock.Sqlmock) {
	t.Helper()
	a, mock := testutil.NewMockAdapter(t)
	return exec.New(a, testutil.NewTestLogger(t)), mock
}

func TestExecutor_Execute(t *testing.T) {
	e, mock := newExecutor(t)
	q := e.NewQuery()
	q.AddSelect(`"store"."store_state"`, "c0")
	q.AddSelect(`"store"."store_sqft"`, "c1")
	q.AddFrom("store", "store")

	mock.ExpectQuery(q.SQL()).WillReturnRows(
		sqlmock.NewRows([]string{"c0", "c1"}).
			AddRow([]byte("CA"), int64(20319)).
			AddRow("OR", nil),
	).RowsWillBeClosed()

	rows, err := e.Execute(context.Background(), q, "level members")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1"}, rows.Columns())

	require.True(t, rows.Next())
	assert.Equal(t, "CA", rows.Value(0))
	n, err := rows.Int64(1)
	require.NoError(t, err)
	assert.Equal(t, int64(20319), n)

	require.True(t, rows.Next())
	assert.Equal(t, "OR", rows.String(0))
	assert.Equal(t, "", rows.String(1))
	_, err = rows.Int64(1)
	assert.Error(t, err)

	assert.False(t, rows.Next())
	assert.NoError(t, rows.Err())
	assert.Equal(t, 2, rows.RowCount())

	require.NoError(t, rows.Close())
	require.NoError(t, rows.Close(), "close is idempotent")
	assert.False(t, rows.Next())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_Errors(t *testing.T) {
	t.Run("driver error", func(t *testing.T) {
		e, mock := newExecutor(t)
		mock.ExpectQuery("SELECT 1").WillReturnError(assert.AnError)

		_, err := e.ExecuteSQL(context.Background(), "SELECT 1", "probe")
		var execErr *exec.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "probe", execErr.Purpose)
		assert.Equal(t, "SELECT 1", execErr.SQL)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("canceled", func(t *testing.T) {
		e, mock := newExecutor(t)
		mock.ExpectQuery("SELECT 1").WillReturnError(context.Canceled)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.ExecuteSQL(ctx, "SELECT 1", "probe")
		assert.ErrorIs(t, err, exec.ErrCanceled)
	})

	t.Run("canceled mid iteration", func(t *testing.T) {
		e, mock := newExecutor(t)
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"c0"}).AddRow(1).AddRow(2))
		ctx, cancel := context.WithCancel(context.Background())

		rows, err := e.ExecuteSQL(ctx, "SELECT 1", "probe")
		require.NoError(t, err)
		require.True(t, rows.Next())
		cancel()
		assert.False(t, rows.Next())
		assert.ErrorIs(t, rows.Err(), exec.ErrCanceled)
		assert.NoError(t, rows.Close())
	})

	t.Run("row error", func(t *testing.T) {
		e, mock := newExecutor(t)
		mock.ExpectQuery("SELECT 1").WillReturnRows(
			sqlmock.NewRows([]string{"c0"}).AddRow(1).AddRow(2).RowError(1, assert.AnError),
		)
		rows, err := e.ExecuteSQL(context.Background(), "SELECT 1", "probe")
		require.NoError(t, err)
		defer rows.Close()

		for rows.Next() {
		}
		assert.ErrorIs(t, rows.Err(), assert.AnError)
		assert.Equal(t, 1, rows.RowCount())
	})

	t.Run("unsupported query", func(t *testing.T) {
		e, _ := newExecutor(t)
		q := e.NewQuery()
		q.AddSelect("1", "c0")
		q.MarkUnsupported("tuple IN not available")

		_, err := e.Execute(context.Background(), q, "probe")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tuple IN not available")
		assert.False(t, errors.Is(err, exec.ErrCanceled))
	})
}
