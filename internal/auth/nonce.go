// ABOUTME: Thread-safe TTL cache of login nonces already spent
// ABOUTME: Size-limited: only expired nonces are evicted, a full cache refuses new ones

package auth

import (
	"container/list"
	"sync"
	"time"
)

type nonceEntry struct {
	seenAt  time.Time
	element *list.Element
}

// NonceCache remembers nonces for ttl so a signed login cannot be replayed
// within its freshness window. A live nonce is never evicted early: when
// maxSize live nonces are held, Spend refuses new ones until some expire.
type NonceCache struct {
	mu      sync.Mutex
	seen    map[string]*nonceEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewNonceCache starts a cache and its sweeper goroutine. Call Close to stop it.
func NewNonceCache(ttl time.Duration, maxSize int) *NonceCache {
	c := &NonceCache{
		seen:    make(map[string]*nonceEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Spend marks key as used. It returns ErrNonceReused if key was already
// spent and has not yet expired, and ErrNonceCacheFull if the cache holds
// maxSize live nonces. Check and mark happen under one lock.
func (c *NonceCache) Spend(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if entry, ok := c.seen[key]; ok {
		if now.Sub(entry.seenAt) < c.ttl {
			return ErrNonceReused
		}
		entry.seenAt = now
		c.order.MoveToBack(entry.element)
		return nil
	}

	if len(c.seen) >= c.maxSize {
		c.expireLocked(now)
		if len(c.seen) >= c.maxSize {
			return ErrNonceCacheFull
		}
	}
	c.seen[key] = &nonceEntry{seenAt: now, element: c.order.PushBack(key)}
	return nil
}

// Len returns the number of remembered nonces.
func (c *NonceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *NonceCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.done:
			return
		}
	}
}

func (c *NonceCache) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(time.Now())
}

// expireLocked drops entries older than ttl. Entries are in insertion order,
// so it stops at the first live one.
func (c *NonceCache) expireLocked(now time.Time) {
	for e := c.order.Front(); e != nil; {
		key := e.Value.(string)
		if now.Sub(c.seen[key].seenAt) < c.ttl {
			return
		}
		next := e.Next()
		c.order.Remove(e)
		delete(c.seen, key)
		e = next
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (c *NonceCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
