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
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// tagSetTTL bounds how long a tag's key set survives in Redis after its
// last write. It must comfortably exceed any entry TTL so invalidation
// still finds the keys.
const tagSetTTL = 24 * time.Hour

// RedisStore is the shared L2 tier backed by a Redis-compatible server.
// Tag membership is tracked in Redis sets under "xytag:<tag>".
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a Redis URL
// (format: redis://host:port or redis://host:port/db).
// The connection is verified with a bounded ping.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client (used by tests).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements Store. The value write and tag indexing are pipelined.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, value, ttl)
	for _, tag := range tags {
		tagKey := tagSetKey(tag)
		pipe.SAdd(ctx, tagKey, key)
		pipe.Expire(ctx, tagKey, tagSetTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// InvalidateTag implements Store. It deletes every member of the tag set
// plus the set itself and returns the number of value keys removed.
func (s *RedisStore) InvalidateTag(ctx context.Context, tag string) (int, error) {
	tagKey := tagSetKey(tag)

	keys, err := s.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis smembers %q: %w", tagKey, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del for tag %q: %w", tag, err)
	}
	if err := s.client.Del(ctx, tagKey).Err(); err != nil {
		return int(removed), fmt.Errorf("redis del tag set %q: %w", tagKey, err)
	}
	return int(removed), nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func tagSetKey(tag string) string {
	return "xytag:" + tag
}
