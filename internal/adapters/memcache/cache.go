package memcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"offer_console/internal/adapters/observability"
	"offer_console/internal/domain"
)

type entry struct {
	data    []byte
	expires time.Time
}

// Cache is an in-process domain.Cache used when no Redis is configured.
// Values are stored JSON-encoded so callers never share memory with the cache.
type Cache struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

var _ domain.Cache = (*Cache)(nil)

// New bounds the cache to size entries; maxTTL caps every entry's lifetime.
func New(size int, maxTTL time.Duration) *Cache {
	if size <= 0 {
		size = 128
	}
	return &Cache{lru: expirable.NewLRU[string, entry](size, nil, maxTTL), now: time.Now}
}

func (c *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	e, ok := c.lru.Get(key)
	if ok && !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.lru.Remove(key)
		ok = false
	}
	if !ok {
		observability.ObserveCache("memory", "miss")
		return false, nil
	}
	observability.ObserveCache("memory", "hit")
	return true, json.Unmarshal(e.data, dst)
}

func (c *Cache) Set(_ context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := entry{data: b}
	if ttlSec > 0 {
		e.expires = c.now().Add(time.Duration(ttlSec) * time.Second)
	}
	c.lru.Add(key, e)
	observability.ObserveCache("memory", "set")
	return nil
}

func (c *Cache) Del(_ context.Context, key string) error {
	c.lru.Remove(key)
	observability.ObserveCache("memory", "del")
	return nil
}

func (c *Cache) Len() int { return c.lru.Len() }
