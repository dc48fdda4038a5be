package sqlite

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
	require.NoError(t, a.Connect(context.Background(), adapter.Config{}))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAdapter_GetTableMetadata(t *testing.T) {
	a := connect(t)
	ctx := context.Background()

	require.NoError(t, a.Exec(ctx, `CREATE TABLE store (store_id INTEGER PRIMARY KEY, store_state TEXT NOT NULL)`))

	meta, err := a.GetTableMetadata(ctx, "store")
	require.NoError(t, err)
	require.Len(t, meta.Columns, 2)
	assert.True(t, meta.Columns[0].PrimaryKey)
	assert.False(t, meta.Columns[1].Nullable)
	assert.Equal(t, 2, meta.Columns[1].Position)

	_, err = a.GetTableMetadata(ctx, "missing")
	assert.Error(t, err)
}

func TestAdapter_LoadCSV(t *testing.T) {
	a := connect(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "stores.csv")
	require.NoError(t, os.WriteFile(path, []byte("store_id,store_state\n1,CA\n2,\n"), 0o600))
	require.NoError(t, a.LoadCSV(ctx, "stores", path))

	rows, err := a.Query(ctx, `SELECT store_state FROM stores ORDER BY store_id`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var got []any
	for rows.Next() {
		var v any
		require.NoError(t, rows.Scan(&v))
		got = append(got, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []any{"CA", nil}, got)
}

func TestAdapter_NotConnected(t *testing.T) {
	a := New(nil)
	_, err := a.GetTableMetadata(context.Background(), "store")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestAdapter_Registered(t *testing.T) {
	a, err := adapter.NewAdapter(adapter.Config{Type: "sqlite"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", a.Dialect().Name)
}
