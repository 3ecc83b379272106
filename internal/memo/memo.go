package memo

import (
	"container/list"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"metastats/domain/core"
)

// Cache memoizes completed analysis results by fingerprint. Re-submitting an
// identical request returns the stored result; concurrent identical requests
// are coalesced so the computation runs once.
type Cache struct {
	mu      sync.RWMutex
	entries map[core.Fingerprint]*entry
	order   *list.List
	flight  singleflight.Group
	cap     int

	hits   int64
	misses int64
}

type entry struct {
	value interface{}
	elem  *list.Element
}

// DefaultCapacity bounds how many run results stay resident.
const DefaultCapacity = 128

// New creates a cache holding at most capacity entries. Non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries: make(map[core.Fingerprint]*entry),
		order:   list.New(),
		cap:     capacity,
	}
}

// Get returns a stored result without computing anything.
func (c *Cache) Get(fp core.Fingerprint) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fp]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Do returns the cached result for fp, computing and storing it on a miss.
// The bool reports whether the result came from cache. Errors are never
// cached; a failed computation leaves the entry absent.
func (c *Cache) Do(fp core.Fingerprint, compute func() (interface{}, error)) (interface{}, bool, error) {
	if v, ok := c.Get(fp); ok {
		atomic.AddInt64(&c.hits, 1)
		return v, true, nil
	}

	v, err, shared := c.flight.Do(fp.String(), func() (interface{}, error) {
		// Another caller may have stored it between our miss and the
		// flight acquiring the key.
		if v, ok := c.Get(fp); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.put(fp, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		atomic.AddInt64(&c.hits, 1)
		return v, true, nil
	}
	atomic.AddInt64(&c.misses, 1)
	return v, false, nil
}

func (c *Cache) put(fp core.Fingerprint, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[fp]; ok {
		e.value = v
		c.order.MoveToBack(e.elem)
		return
	}
	e := &entry{value: v}
	e.elem = c.order.PushBack(fp)
	c.entries[fp] = e
	for len(c.entries) > c.cap {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(core.Fingerprint))
	}
}

// Purge drops every entry. Called when a new table upload makes all stored
// results stale.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[core.Fingerprint]*entry)
	c.order.Init()
}

// Stats reports hit/miss counters and the current entry count.
func (c *Cache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	size = len(c.entries)
	c.mu.RUnlock()
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), size
}
