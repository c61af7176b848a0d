package memcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"solar_leads/internal/adapters/observability"
	"solar_leads/internal/domain"
)

type entry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

// Cache is a mutex-guarded in-process TTL cache. Expired entries are evicted
// lazily on the next lookup. The clock is injectable so tests can drive
// expiry deterministically.
type Cache struct {
	mu    sync.Mutex
	m     map[string]entry
	clock domain.Clock
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func New(clock domain.Clock) *Cache {
	if clock == nil {
		clock = systemClock{}
	}
	return &Cache{m: make(map[string]entry), clock: clock}
}

func (c *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	e, ok := c.m[key]
	if ok && !e.expires.IsZero() && !c.clock.Now().Before(e.expires) {
		delete(c.m, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		observability.ObserveCache("memory", "miss")
		return false, nil
	}
	observability.ObserveCache("memory", "hit")
	return true, json.Unmarshal(e.data, dst)
}

func (c *Cache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := entry{data: b}
	if ttl > 0 {
		e.expires = c.clock.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()
	observability.ObserveCache("memory", "set")
	return nil
}

func (c *Cache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	observability.ObserveCache("memory", "del")
	return nil
}
