package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// migrations are idempotent
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	_, err := store.Record(context.Background(), EventInvalidate, "[Store]", "", "")
	require.ErrorContains(t, err, "database not opened")
	require.Error(t, store.Migrate(context.Background()))
	require.NoError(t, store.Close())
}

func TestSQLiteStore_RecordAndSince(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seq, err := store.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	first, err := store.Record(ctx, EventInvalidate, "[Store]", "", "nightly load")
	require.NoError(t, err)
	second, err := store.Record(ctx, EventRemove, "[Store]", "[Store].[USA].[WA]", "store closed")
	require.NoError(t, err)
	_, err = store.Record(ctx, EventInvalidate, "", "", "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Less(t, first.Seq, second.Seq)

	events, err := store.Since(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, EventRemove, events[1].Kind)
	assert.Equal(t, "[Store].[USA].[WA]", events[1].Member)
	assert.Empty(t, events[2].Hierarchy)

	tests := []struct {
		name  string
		after int64
		limit int
		want  int
	}{
		{"after first", first.Seq, 0, 2},
		{"limited", 0, 2, 2},
		{"nothing new", events[2].Seq, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Since(ctx, tt.after, tt.limit)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	latest, err := store.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, events[2].Seq, latest)
}

func TestSQLiteStore_Prune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, err := store.Record(ctx, EventInvalidate, "[Time]", "", "")
	require.NoError(t, err)

	n, err := store.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
