// Copyright 2025 XynergyOS
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xynergy_gateway_cache_hits_total",
			Help: "Total cache hits by tier",
		},
		[]string{"tier"},
	)
	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xynergy_gateway_cache_misses_total",
			Help: "Total cache misses",
		},
	)
	cacheDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xynergy_gateway_cache_degraded_total",
			Help: "Total backing-store errors swallowed in degraded mode",
		},
	)
)

var cacheMetricsOnce sync.Once

func registerCacheMetrics() {
	cacheMetricsOnce.Do(func() {
		_ = prometheus.Register(cacheHits)
		_ = prometheus.Register(cacheMisses)
		_ = prometheus.Register(cacheDegraded)
	})
}

// memoryTTLCap bounds the L1 lifetime of an entry so a process-local copy
// cannot serve stale data long after the shared tier was invalidated by
// another instance.
const memoryTTLCap = 60 * time.Second

// Cache is the tiered response cache: an in-process L1 in front of an
// optional shared L2 (Redis). The cache is an optimization, never a
// correctness dependency: every backing-store error is swallowed and the
// caller path behaves exactly as on a cold cache.
type Cache struct {
	memory *MemoryStore
	remote Store
	logger *log.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Option configures the Cache.
type Option func(*Cache)

// WithRemoteStore sets the shared L2 store (typically Redis).
// Without it the cache runs process-local only.
func WithRemoteStore(store Store) Option {
	return func(c *Cache) {
		c.remote = store
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *log.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// New creates a tiered cache.
func New(opts ...Option) *Cache {
	registerCacheMetrics()
	c := &Cache{
		memory: NewMemoryStore(),
		logger: log.New(os.Stdout, "[CACHE] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key. A backing-store error is treated
// as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, found, err := c.memory.Get(ctx, key); err == nil && found {
		c.hits.Add(1)
		cacheHits.WithLabelValues("memory").Inc()
		return value, true
	}

	if c.remote != nil {
		value, found, err := c.remote.Get(ctx, key)
		if err != nil {
			cacheDegraded.Inc()
			c.logger.Printf("Degraded: remote get failed, treating as miss: %v", err)
		} else if found {
			c.hits.Add(1)
			cacheHits.WithLabelValues("remote").Inc()
			return value, true
		}
	}

	c.misses.Add(1)
	cacheMisses.Inc()
	return nil, false
}

// Set stores value in every tier, best-effort. Write failures are swallowed.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) {
	if ttl <= 0 {
		return
	}

	memTTL := ttl
	if c.remote != nil && memTTL > memoryTTLCap {
		memTTL = memoryTTLCap
	}
	_ = c.memory.Set(ctx, key, value, memTTL, tags)

	if c.remote != nil {
		if err := c.remote.Set(ctx, key, value, ttl, tags); err != nil {
			cacheDegraded.Inc()
			c.logger.Printf("Degraded: remote set failed, entry is process-local only: %v", err)
		}
	}
}

// InvalidateTag removes every key associated with tag across tiers and
// returns the number of keys removed from the authoritative tier.
func (c *Cache) InvalidateTag(ctx context.Context, tag string) int {
	memCount, _ := c.memory.InvalidateTag(ctx, tag)

	if c.remote == nil {
		return memCount
	}

	remoteCount, err := c.remote.InvalidateTag(ctx, tag)
	if err != nil {
		cacheDegraded.Inc()
		c.logger.Printf("Degraded: remote invalidation for tag %q failed: %v", tag, err)
		return memCount
	}
	return remoteCount
}

// GetOrCompute returns the cached value for key, or invokes compute on a
// miss, stores the result best-effort and returns it. compute is invoked at
// most once per call; concurrent misses may each compute independently
// (accepted inefficiency, no single-flight).
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, tags []string, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, found := c.Get(ctx, key); found {
		return value, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	c.Set(ctx, key, value, ttl, tags)
	return value, nil
}

// Stats reports cumulative hit/miss counts for status endpoints.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Stats returns cumulative counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}
