package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Policy names an eviction strategy.
type Policy string

const (
	PolicyUnbounded Policy = "unbounded"
	PolicyLRU       Policy = "lru"
	PolicyTTL       Policy = "ttl"
)

// PolicyConfig configures a SmartCache.
type PolicyConfig struct {
	Policy Policy
	// Size bounds the number of entries for lru and ttl. Zero means
	// unbounded for ttl and is invalid for lru.
	Size int
	TTL  time.Duration
}

// SmartCache is one cache partition. Implementations are not safe for
// concurrent use on their own; the owning Helper serializes access.
type SmartCache[K comparable, V any] interface {
	Get(k K) (V, bool)
	// Put stores v and returns the value it replaced.
	Put(k K, v V) (V, bool)
	Remove(k K) (V, bool)
	Clear()
	Len() int
	Keys() []K
}

// NewSmartCache builds a partition for cfg. An empty policy is unbounded.
func NewSmartCache[K comparable, V any](cfg PolicyConfig) (SmartCache[K, V], error) {
	switch cfg.Policy {
	case "", PolicyUnbounded:
		return &mapCache[K, V]{m: make(map[K]V)}, nil
	case PolicyLRU:
		l, err := simplelru.NewLRU[K, V](cfg.Size, nil)
		if err != nil {
			return nil, fmt.Errorf("lru cache: %w", err)
		}
		return &lruCache[K, V]{l: l}, nil
	case PolicyTTL:
		if cfg.TTL <= 0 {
			return nil, fmt.Errorf("ttl cache: ttl must be positive, got %s", cfg.TTL)
		}
		return &ttlCache[K, V]{l: expirable.NewLRU[K, V](cfg.Size, nil, cfg.TTL)}, nil
	default:
		return nil, fmt.Errorf("unknown cache policy %q", cfg.Policy)
	}
}

type mapCache[K comparable, V any] struct {
	m map[K]V
}

func (c *mapCache[K, V]) Get(k K) (V, bool) {
	v, ok := c.m[k]
	return v, ok
}

func (c *mapCache[K, V]) Put(k K, v V) (V, bool) {
	old, ok := c.m[k]
	c.m[k] = v
	return old, ok
}

func (c *mapCache[K, V]) Remove(k K) (V, bool) {
	old, ok := c.m[k]
	delete(c.m, k)
	return old, ok
}

func (c *mapCache[K, V]) Clear()   { clear(c.m) }
func (c *mapCache[K, V]) Len() int { return len(c.m) }

func (c *mapCache[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}
	return keys
}

type lruCache[K comparable, V any] struct {
	l *simplelru.LRU[K, V]
}

func (c *lruCache[K, V]) Get(k K) (V, bool) { return c.l.Get(k) }

func (c *lruCache[K, V]) Put(k K, v V) (V, bool) {
	old, ok := c.l.Peek(k)
	c.l.Add(k, v)
	return old, ok
}

func (c *lruCache[K, V]) Remove(k K) (V, bool) {
	old, ok := c.l.Peek(k)
	c.l.Remove(k)
	return old, ok
}

func (c *lruCache[K, V]) Clear()    { c.l.Purge() }
func (c *lruCache[K, V]) Len() int  { return c.l.Len() }
func (c *lruCache[K, V]) Keys() []K { return c.l.Keys() }

type ttlCache[K comparable, V any] struct {
	l *expirable.LRU[K, V]
}

func (c *ttlCache[K, V]) Get(k K) (V, bool) { return c.l.Get(k) }

func (c *ttlCache[K, V]) Put(k K, v V) (V, bool) {
	old, ok := c.l.Peek(k)
	c.l.Add(k, v)
	return old, ok
}

func (c *ttlCache[K, V]) Remove(k K) (V, bool) {
	old, ok := c.l.Peek(k)
	c.l.Remove(k)
	return old, ok
}

func (c *ttlCache[K, V]) Clear()    { c.l.Purge() }
func (c *ttlCache[K, V]) Len() int  { return c.l.Len() }
func (c *ttlCache[K, V]) Keys() []K { return c.l.Keys() }
