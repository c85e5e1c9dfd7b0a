package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache is an implementation of Cache that stores values in process memory,
// it is used when no redis endpoint is configured
type InMemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex

	// number of items that triggers the next sweep of expired items
	sweepThreshold int
}

const minSweepThreshold = 64

var _ Cache = (*InMemoryCache)(nil)

type cacheItem struct {
	data       []byte
	expiration time.Time
}

// expired returns true if the item has an expiry that is in the past
func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data:           make(map[string]cacheItem),
		sweepThreshold: minSweepThreshold,
	}
}

// Set sets the value for the given key in the cache with the given expiration.
func (c *InMemoryCache) Set(ctx context.Context, key string, data []byte, expiration time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()

	var expiry time.Time
	if expiration != NoExpiration {
		expiry = now.Add(expiration)
	}

	c.data[key] = cacheItem{
		data:       data,
		expiration: expiry,
	}

	if len(c.data) >= c.sweepThreshold {
		c.removeExpired(now)
		c.sweepThreshold = max(2*len(c.data), minSweepThreshold)
	}

	return nil
}

// removeExpired deletes every expired item, callers must hold the write lock
func (c *InMemoryCache) removeExpired(now time.Time) {
	for key, item := range c.data {
		if item.expired(now) {
			delete(c.data, key)
		}
	}
}

// Get gets the value for the given key in the cache.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item, ok := c.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	if item.expired(time.Now()) {
		delete(c.data, key)
		return nil, ErrNotFound
	}

	return item.data, nil
}

// Len returns the number of items held, including expired items
// that haven't been removed yet
func (c *InMemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.data)
}

// GetAll returns all unexpired items in the cache.
func (c *InMemoryCache) GetAll(ctx context.Context) map[string][]byte {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	result := make(map[string][]byte, len(c.data))
	for key, item := range c.data {
		if item.expired(now) {
			continue
		}
		result[key] = item.data
	}

	return result
}

// Delete deletes the value for the given key in the cache.
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

func (c *InMemoryCache) Healthcheck(ctx context.Context) error {
	return nil
}
