package mapbox

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
	"github.com/couchcryptid/mapbox-geocoder/internal/observability"
	"github.com/jonboulle/clockwork"
)

const cacheTier = "memory"

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache whose entries
// expire after a fixed TTL.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, address string) ([]domain.Placemark, error) {
	return c.lookup(methodForward, "fwd:"+address, func() ([]domain.Placemark, error) {
		return c.inner.ForwardGeocode(ctx, address)
	})
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, coord domain.Coordinate) ([]domain.Placemark, error) {
	return c.lookup(methodReverse, "rev:"+coord.String(), func() ([]domain.Placemark, error) {
		return c.inner.ReverseGeocode(ctx, coord)
	})
}

func (c *CachedGeocoder) lookup(method, key string, fetch func() ([]domain.Placemark, error)) ([]domain.Placemark, error) {
	if placemarks, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(cacheTier, method, "hit").Inc()
		return placemarks, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(cacheTier, method, "miss").Inc()

	placemarks, err := fetch()
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so "not found" answers can be retried.
	if len(placemarks) > 0 {
		c.cache.put(key, placemarks)
	}
	return placemarks, nil
}

// lruCache is a thread-safe LRU cache of placemark lists.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     []domain.Placemark
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.Placemark, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.unlink(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.Placemark) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.pushFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *lruCache) pushFront(e *entry) {
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

func (c *lruCache) unlink(e *entry) {
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
	e.prev, e.next = nil, nil
}

func (c *lruCache) evictOldest() {
	if c.tail == nil {
		return
	}
	oldest := c.tail
	delete(c.entries, oldest.key)
	c.unlink(oldest)
}
