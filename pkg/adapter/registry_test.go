package adapter

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "fake_db",
		Available: []string{"duckdb", "postgres"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "fake_db")
	assert.Contains(t, msg, "leapolap.yaml")
}

func TestRegistry(t *testing.T) {
	Register("test_adapter_internal", func(_ *slog.Logger) Adapter { return nil })

	assert.True(t, IsRegistered("test_adapter_internal"))
	assert.Contains(t, ListAdapters(), "test_adapter_internal")

	factory, ok := Get("test_adapter_internal")
	require.True(t, ok)
	assert.NotNil(t, factory)

	_, ok = Get("nonexistent")
	assert.False(t, ok)
}

func TestNewAdapter(t *testing.T) {
	t.Run("empty type", func(t *testing.T) {
		_, err := NewAdapter(Config{}, nil)
		assert.ErrorIs(t, err, ErrTypeRequired)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewAdapter(Config{Type: "unknown_adapter"}, nil)
		var unknownErr *UnknownAdapterError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "unknown_adapter", unknownErr.Type)
	})
}
