package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/brettg0396/skyface-go/internal/domain"
)

const keyPrefix = "skyface:"

// Memcached implements Cache on a memcached cluster.
type Memcached struct {
	client *memcache.Client
}

// NewMemcached creates a Memcached cache. addrs is a comma-separated server
// list; empty means localhost:11211. A zero timeout keeps the client default.
func NewMemcached(addrs string, timeout time.Duration) *Memcached {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &Memcached{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Get implements Cache.
func (c *Memcached) Get(ctx context.Context, key string) (domain.WeatherSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.WeatherSnapshot{}, false, err
	}
	item, err := c.client.Get(keyPrefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return domain.WeatherSnapshot{}, false, nil
	}
	if err != nil {
		return domain.WeatherSnapshot{}, false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	var snapshot domain.WeatherSnapshot
	if err := json.Unmarshal(item.Value, &snapshot); err != nil {
		return domain.WeatherSnapshot{}, false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return snapshot, true, nil
}

// Set implements Cache.
func (c *Memcached) Set(ctx context.Context, key string, value domain.WeatherSnapshot, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.client.Set(&memcache.Item{
		Key:        keyPrefix + key,
		Value:      raw,
		Expiration: expiration(ttl),
	})
}

// expiration converts ttl to memcached seconds. Values past 30 days would be
// read as a unix timestamp, so they fall back to an hour.
func expiration(ttl time.Duration) int32 {
	const maxRelative = 30 * 24 * 60 * 60
	sec := int32(ttl.Seconds())
	if sec <= 0 || sec > maxRelative {
		return 3600
	}
	return sec
}

// Ping checks that memcached is reachable.
func (c *Memcached) Ping() error {
	return c.client.Ping()
}

// Close closes idle connections.
func (c *Memcached) Close() error {
	return c.client.Close()
}
