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
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client), mr
}

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute, nil))

	value, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), value)

	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 30*time.Second, nil))

	_, found, _ := store.Get(ctx, "k1")
	require.True(t, found)

	current = current.Add(31 * time.Second)
	_, found, _ = store.Get(ctx, "k1")
	assert.False(t, found, "entry should expire after its TTL")
	assert.Equal(t, 0, store.Len(), "expired entry should be reaped")
}

func TestMemoryStoreTagInvalidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute, []string{"service:crm"}))
	require.NoError(t, store.Set(ctx, "k2", []byte("v2"), time.Minute, []string{"service:crm"}))
	require.NoError(t, store.Set(ctx, "k3", []byte("v3"), time.Minute, []string{"service:billing"}))

	removed, err := store.InvalidateTag(ctx, "service:crm")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, _ := store.Get(ctx, "k1")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "k2")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "k3")
	assert.True(t, found, "entries under other tags must survive")

	removed, err = store.InvalidateTag(ctx, "service:crm")
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "second invalidation finds nothing")
}

func TestMemoryStoreSetReplacesTags(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute, []string{"service:crm"}))
	require.NoError(t, store.Set(ctx, "k1", []byte("v2"), time.Minute, []string{"service:billing"}))

	removed, err := store.InvalidateTag(ctx, "service:crm")
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "re-set key must leave its old tag")

	value, found, _ := store.Get(ctx, "k1")
	require.True(t, found)
	assert.Equal(t, []byte("v2"), value)
}

func TestRedisStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute, []string{"service:crm"}))

	value, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), value)

	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 30*time.Second, nil))

	mr.FastForward(31 * time.Second)

	_, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found, "entry should expire after its TTL")
}

func TestRedisStoreTagInvalidation(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute, []string{"service:crm"}))
	require.NoError(t, store.Set(ctx, "k2", []byte("v2"), time.Minute, []string{"service:crm"}))
	require.NoError(t, store.Set(ctx, "k3", []byte("v3"), time.Minute, []string{"service:billing"}))

	removed, err := store.InvalidateTag(ctx, "service:crm")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, _ := store.Get(ctx, "k1")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "k3")
	assert.True(t, found)
}

func TestTieredCacheSetGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)
	c := New(WithRemoteStore(store))

	c.Set(ctx, "k1", []byte("v1"), time.Minute, []string{"service:crm"})

	value, found := c.Get(ctx, "k1")
	require.True(t, found)
	assert.Equal(t, []byte("v1"), value)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestTieredCacheRemoteHit(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)
	c := New(WithRemoteStore(store))

	// Written by another instance: present only in the shared tier.
	require.NoError(t, store.Set(ctx, "k1", []byte("shared"), time.Minute, nil))

	value, found := c.Get(ctx, "k1")
	require.True(t, found)
	assert.Equal(t, []byte("shared"), value)
}

func TestTieredCacheInvalidateTagClearsBothTiers(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)
	c := New(WithRemoteStore(store))

	c.Set(ctx, "k1", []byte("v1"), time.Minute, []string{"service:crm"})
	c.Set(ctx, "k2", []byte("v2"), time.Minute, []string{"service:crm"})

	removed := c.InvalidateTag(ctx, "service:crm")
	assert.Equal(t, 2, removed)

	_, found := c.Get(ctx, "k1")
	assert.False(t, found)
	_, found = c.Get(ctx, "k2")
	assert.False(t, found)
}

func TestTieredCacheDegradedMode(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	c := New(WithRemoteStore(store))

	c.Set(ctx, "warm", []byte("v1"), time.Minute, nil)

	// Redis goes away. Every operation must behave like a cold cache,
	// never surface an error.
	mr.Close()

	_, found := c.Get(ctx, "cold")
	assert.False(t, found)

	c.Set(ctx, "k2", []byte("v2"), time.Minute, nil)
	assert.Equal(t, 0, c.InvalidateTag(ctx, "service:crm"))

	// The memory tier still serves what it holds.
	value, found := c.Get(ctx, "warm")
	require.True(t, found)
	assert.Equal(t, []byte("v1"), value)

	computed, err := c.GetOrCompute(ctx, "computed", time.Minute, nil, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), computed)
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	c := New()

	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte("result"), nil
	}

	value, err := c.GetOrCompute(ctx, "k1", time.Minute, nil, compute)
	require.NoError(t, err)
	assert.Equal(t, []byte("result"), value)
	assert.Equal(t, 1, calls)

	value, err = c.GetOrCompute(ctx, "k1", time.Minute, nil, compute)
	require.NoError(t, err)
	assert.Equal(t, []byte("result"), value)
	assert.Equal(t, 1, calls, "second call must be served from cache")
}

func TestGetOrComputeError(t *testing.T) {
	ctx := context.Background()
	c := New()

	wantErr := errors.New("upstream exploded")
	_, err := c.GetOrCompute(ctx, "k1", time.Minute, nil, func(context.Context) ([]byte, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	// A failed compute must not poison the cache.
	_, found := c.Get(ctx, "k1")
	assert.False(t, found)
}

func TestCacheStats(t *testing.T) {
	ctx := context.Background()
	c := New()

	c.Get(ctx, "missing")
	c.Set(ctx, "k1", []byte("v1"), time.Minute, nil)
	c.Get(ctx, "k1")
	c.Get(ctx, "k1")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestSetZeroTTLIsNoop(t *testing.T) {
	ctx := context.Background()
	c := New()

	c.Set(ctx, "k1", []byte("v1"), 0, nil)
	_, found := c.Get(ctx, "k1")
	assert.False(t, found)
}
