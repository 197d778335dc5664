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
	"time"
)

// Store is a key/value backing store with TTL and tag-based invalidation.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or found=false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key with the given TTL and associates it with
	// the given tags for grouped invalidation.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error

	// InvalidateTag removes every key associated with tag and returns the
	// number of keys removed.
	InvalidateTag(ctx context.Context, tag string) (int, error)
}
