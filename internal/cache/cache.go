package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultMaxSize         = 1000
	DefaultExpiry          = 5 * time.Minute
	DefaultCleanupInterval = 1 * time.Minute
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is a size-bounded LRU with per-entry expiry. Expired entries are
// dropped lazily on Get and by a background sweep.
type Cache[K comparable, V any] struct {
	mu              sync.Mutex
	items           map[K]*list.Element
	order           *list.List // front = most recently used
	maxSize         int
	defaultExpiry   time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closed          bool
	now             func() time.Time
}

// New creates a cache with default settings
func New[K comparable, V any]() *Cache[K, V] {
	return NewWithConfig[K, V](DefaultMaxSize, DefaultExpiry, DefaultCleanupInterval)
}

// NewWithConfig creates a cache and starts its cleanup goroutine. A
// non-positive cleanupInterval disables the sweep.
func NewWithConfig[K comparable, V any](maxSize int, defaultExpiry, cleanupInterval time.Duration) *Cache[K, V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache[K, V]{
		items:           make(map[K]*list.Element),
		order:           list.New(),
		maxSize:         maxSize,
		defaultExpiry:   defaultExpiry,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop()
	}

	return c
}

// Set stores value under key with the default expiry
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithExpiry(key, value, c.defaultExpiry)
}

func (c *Cache[K, V]) SetWithExpiry(key K, value V, expiry time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(expiry)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	for len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	el := c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el
}

// Get returns the value and marks it as recently used
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if e.expired(c.now()) {
		c.removeElement(el)
		return zero, false
	}

	c.order.MoveToFront(el)
	return e.value, true
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Size counts stored entries, including expired ones not yet swept
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

type Stats struct {
	Size          int
	MaxSize       int
	DefaultExpiry time.Duration
	ExpiredItems  int
}

func (c *Cache[K, V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := 0
	for _, el := range c.items {
		if el.Value.(*entry[K, V]).expired(now) {
			expired++
		}
	}

	return Stats{
		Size:          len(c.items),
		MaxSize:       c.maxSize,
		DefaultExpiry: c.defaultExpiry,
		ExpiredItems:  expired,
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *Cache[K, V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.stopCleanup)
		c.closed = true
	}
}

func (c *Cache[K, V]) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache[K, V]) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, el := range c.items {
		if el.Value.(*entry[K, V]).expired(now) {
			c.removeElement(el)
		}
	}
}

// evictOldest drops the least recently used entry. Caller holds mu.
func (c *Cache[K, V]) evictOldest() {
	if el := c.order.Back(); el != nil {
		c.removeElement(el)
	}
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}
