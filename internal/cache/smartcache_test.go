package cache_test

import (
	"testing"
	"time"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSmartCache(t *testing.T) {
	tests := []struct {
		name    string
		cfg     cache.PolicyConfig
		wantErr string
	}{
		{name: "default", cfg: cache.PolicyConfig{}},
		{name: "unbounded", cfg: cache.PolicyConfig{Policy: cache.PolicyUnbounded}},
		{name: "lru", cfg: cache.PolicyConfig{Policy: cache.PolicyLRU, Size: 2}},
		{name: "lru without size", cfg: cache.PolicyConfig{Policy: cache.PolicyLRU}, wantErr: "lru cache"},
		{name: "ttl", cfg: cache.PolicyConfig{Policy: cache.PolicyTTL, TTL: time.Minute}},
		{name: "ttl without ttl", cfg: cache.PolicyConfig{Policy: cache.PolicyTTL}, wantErr: "ttl must be positive"},
		{name: "unknown", cfg: cache.PolicyConfig{Policy: "fifo"}, wantErr: `unknown cache policy "fifo"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := cache.NewSmartCache[string, int](tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			_, replaced := c.Put("a", 1)
			assert.False(t, replaced)
			old, replaced := c.Put("a", 2)
			assert.True(t, replaced)
			assert.Equal(t, 1, old)

			v, ok := c.Get("a")
			require.True(t, ok)
			assert.Equal(t, 2, v)
			assert.Equal(t, []string{"a"}, c.Keys())

			_, ok = c.Remove("a")
			assert.True(t, ok)
			assert.Zero(t, c.Len())
		})
	}
}

func TestSmartCache_LRUEvicts(t *testing.T) {
	c, err := cache.NewSmartCache[string, int](cache.PolicyConfig{Policy: cache.PolicyLRU, Size: 2})
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	assert.ElementsMatch(t, []string{"a", "c"}, c.Keys())

	c.Clear()
	assert.Zero(t, c.Len())
}
