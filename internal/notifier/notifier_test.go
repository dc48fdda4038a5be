package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Subscribe_Unsubscribe(t *testing.T) {
	n := New()

	ch := n.Subscribe()
	require.NotNil(t, ch)

	n.mu.RLock()
	assert.Len(t, n.listeners, 1)
	n.mu.RUnlock()

	n.Unsubscribe(ch)

	n.mu.RLock()
	assert.Len(t, n.listeners, 0)
	n.mu.RUnlock()

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel is closed")
}

func TestNotifier_Publish(t *testing.T) {
	n := New()

	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	sent := n.Publish(Change{Kind: "flush", Hierarchy: "[Store]"})
	assert.Equal(t, uint64(1), sent.Seq)
	assert.False(t, sent.At.IsZero())

	for _, ch := range []chan Change{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, sent, got)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("listener did not receive change")
		}
	}
	assert.Equal(t, sent, n.Last())
}

func TestNotifier_SlowListenerGetsNewest(t *testing.T) {
	n := New()

	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		n.Publish(Change{Kind: "flush"})
		n.Publish(Change{Kind: "remove", Member: "[Store].[Mexico]"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked on full channel")
	}

	got := <-ch
	assert.Equal(t, uint64(2), got.Seq)
	assert.Equal(t, "remove", got.Kind)
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New()

	var wg sync.WaitGroup
	const numGoroutines = 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe()
			n.Publish(Change{Kind: "flush"})
			n.Unsubscribe(ch)
		}()
	}

	wg.Wait()

	n.mu.RLock()
	assert.Len(t, n.listeners, 0)
	n.mu.RUnlock()
	assert.Equal(t, uint64(numGoroutines), n.Last().Seq)
}
