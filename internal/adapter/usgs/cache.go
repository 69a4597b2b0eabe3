package usgs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mbjoseph/floodfreq/internal/domain"
	"github.com/mbjoseph/floodfreq/internal/observability"
)

// CachedSource wraps a SeriesSource with an in-memory LRU cache keyed by
// site and period, bounding repeated NWIS traffic across refresh cycles.
type CachedSource struct {
	inner   domain.SeriesSource
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a series source.
func NewCachedSource(inner domain.SeriesSource, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) FetchDailySeries(ctx context.Context, siteNo string, start, end time.Time) ([]domain.Observation, error) {
	// An open-ended period resolves to "now" inside the client, so its
	// result would go stale; bypass the cache for those fetches.
	if end.IsZero() {
		return c.inner.FetchDailySeries(ctx, siteNo, start, end)
	}

	key := fmt.Sprintf("%s|%s|%s", siteNo, start.Format(dateLayout), end.Format(dateLayout))
	if series, ok := c.cache.get(key); ok {
		c.metrics.SeriesCache.WithLabelValues("hit").Inc()
		return series, nil
	}
	c.metrics.SeriesCache.WithLabelValues("miss").Inc()

	series, err := c.inner.FetchDailySeries(ctx, siteNo, start, end)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty fetches so a transient gap can be retried.
	if len(series) > 0 {
		c.cache.put(key, series)
	}
	return series, nil
}

// lruCache is a simple thread-safe LRU cache for discharge series.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.Observation
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.Observation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
