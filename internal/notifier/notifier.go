// Package notifier fans cache change notices out to subscribers such as
// server-sent event streams.
package notifier

import (
	"sync"
	"time"
)

// Change describes one event that invalidated cached members.
type Change struct {
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	Hierarchy string    `json:"hierarchy,omitempty"`
	Member    string    `json:"member,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier publishes changes to every subscribed listener. A listener
// that falls behind only sees the newest change.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Change]struct{}
	seq       uint64
	last      Change
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Change]struct{}),
	}
}

// Subscribe returns a channel that receives published changes.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan Change {
	ch := make(chan Change, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Change) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Publish stamps c with the next sequence number and the current time
// and sends it to all listeners without blocking.
func (n *Notifier) Publish(c Change) Change {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.seq++
	c.Seq = n.seq
	if c.At.IsZero() {
		c.At = time.Now()
	}
	n.last = c

	for ch := range n.listeners {
		select {
		case ch <- c:
		default:
			// Replace the pending change with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c:
			default:
			}
		}
	}
	return c
}

// Last returns the most recent change, or the zero Change.
func (n *Notifier) Last() Change {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.last
}
