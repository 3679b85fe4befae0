// Package cache stores recent weather snapshots keyed by location.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/brettg0396/skyface-go/internal/domain"
)

// Cache stores snapshots with a TTL.
// Get returns (snapshot, true, nil) on a hit and (zero, false, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (domain.WeatherSnapshot, bool, error)
	Set(ctx context.Context, key string, value domain.WeatherSnapshot, ttl time.Duration) error
}

// InMemory is a process-local Cache. Expired entries are removed on access.
type InMemory struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

type entry struct {
	value     domain.WeatherSnapshot
	expiresAt time.Time
}

// NewInMemory creates an empty in-memory cache.
func NewInMemory() *InMemory {
	return &InMemory{data: make(map[string]entry), now: time.Now}
}

// Get implements Cache.
func (c *InMemory) Get(ctx context.Context, key string) (domain.WeatherSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.WeatherSnapshot{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return domain.WeatherSnapshot{}, false, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.data, key)
		return domain.WeatherSnapshot{}, false, nil
	}
	return e.value, true, nil
}

// Set implements Cache.
func (c *InMemory) Set(ctx context.Context, key string, value domain.WeatherSnapshot, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}
