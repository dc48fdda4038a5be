package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapolap/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *Adapter {
	t.Helper()
	a := New(nil)
	require.NoError(t, a.Connect(context.Background(), adapter.Config{Path: ":memory:"}))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAdapter_NotConnected(t *testing.T) {
	a := New(nil)
	ctx := context.Background()

	assert.ErrorIs(t, a.Exec(ctx, "SELECT 1"), adapter.ErrNotConnected)
	_, err := a.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.ErrorIs(t, a.LoadCSV(ctx, "t", "x.csv"), adapter.ErrNotConnected)
}

func TestAdapter_QueryAndMetadata(t *testing.T) {
	a := connect(t)
	ctx := context.Background()

	require.NoError(t, a.Exec(ctx, `CREATE TABLE store (store_id INTEGER, store_state VARCHAR)`))
	require.NoError(t, a.Exec(ctx, `INSERT INTO store VALUES (1, 'CA'), (2, NULL)`))

	rows, err := a.Query(ctx, `SELECT store_state FROM store ORDER BY store_state NULLS LAST`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var states []any
	for rows.Next() {
		var s any
		require.NoError(t, rows.Scan(&s))
		states = append(states, s)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []any{"CA", nil}, states)

	meta, err := a.GetTableMetadata(ctx, "store")
	require.NoError(t, err)
	assert.Equal(t, "main", meta.Schema)
	assert.True(t, meta.HasColumn("store_state"))
}

func TestAdapter_LoadCSV(t *testing.T) {
	a := connect(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "stores.csv")
	require.NoError(t, os.WriteFile(path, []byte("store_id,store_state\n1,CA\n2,WA\n"), 0o600))
	require.NoError(t, a.LoadCSV(ctx, "stores", path))

	rows, err := a.Query(ctx, "SELECT COUNT(*) FROM stores")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	assert.Equal(t, 2, n)
}

func TestConnect_WithSettings(t *testing.T) {
	a := New(nil)
	err := a.Connect(context.Background(), adapter.Config{
		Params: map[string]any{"settings": map[string]any{"threads": "2"}},
	})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	rows, err := a.Query(context.Background(), "SELECT current_setting('threads')")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var threads int64
	require.NoError(t, rows.Scan(&threads))
	assert.Equal(t, int64(2), threads)
}

func TestAdapter_Registered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("duckdb"))
	a, err := adapter.NewAdapter(adapter.Config{Type: "duckdb"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", a.Dialect().Name)
}
