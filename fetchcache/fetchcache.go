// Package fetchcache rate-limits repository fetches: a mapping from URL
// to last-fetch time, guarded by a mutex, with a TTL window controlling
// when a fresh fetch is required. The TTL is injectable for test
// stability; Default provides the usual process-global instance.
package fetchcache

import (
	"sync"
	"time"
)

// DefaultTTL is the window within which a repeated fetch of the same URL
// is skipped.
const DefaultTTL = 60 * time.Second

// Cache tracks the last-fetch time for each URL. The zero value is not
// usable; construct with New.
type Cache struct {
	mu    sync.Mutex
	last  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

// New returns a Cache with the given TTL. A zero ttl falls back to
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		last:  make(map[string]time.Time),
		ttl:   ttl,
		clock: time.Now,
	}
}

// Default is the process-global cache instance.
var Default = New(DefaultTTL)

// NeedsFetch reports whether url requires a fresh fetch: no entry exists
// yet, or the elapsed time since the last recorded fetch falls outside
// [0, ttl). A negative delta (the system clock moved backward) also forces
// a refetch.
func (c *Cache) NeedsFetch(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.last[url]
	if !ok {
		return true
	}

	delta := c.clock().Sub(last)
	return delta < 0 || delta >= c.ttl
}

// MarkFetched records that url was fetched at the current time.
func (c *Cache) MarkFetched(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[url] = c.clock()
}

// LastFetchTime returns the last recorded fetch time for url, and whether
// one was ever recorded.
func (c *Cache) LastFetchTime(url string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.last[url]
	return t, ok
}
