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
	"sync"
	"time"
)

// memoryEntry is a single in-process cache entry.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	tags      []string
}

// MemoryStore is an in-process Store. It serves as the L1 tier in front of
// Redis and as the only tier in self-hosted deployments without Redis.
// Expired entries are reaped lazily on access.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	tagIndex map[string]map[string]struct{}

	// now is swappable for tests
	now func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]memoryEntry),
		tagIndex: make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		s.removeLocked(key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace any previous tag associations for this key.
	if prev, ok := s.entries[key]; ok {
		s.unindexLocked(key, prev.tags)
	}

	s.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
		tags:      append([]string(nil), tags...),
	}
	for _, tag := range tags {
		set, ok := s.tagIndex[tag]
		if !ok {
			set = make(map[string]struct{})
			s.tagIndex[tag] = set
		}
		set[key] = struct{}{}
	}
	return nil
}

// InvalidateTag implements Store.
func (s *MemoryStore) InvalidateTag(ctx context.Context, tag string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.tagIndex[tag]
	if !ok {
		return 0, nil
	}

	count := 0
	for key := range set {
		if _, exists := s.entries[key]; exists {
			s.removeLocked(key)
			count++
		}
	}
	delete(s.tagIndex, tag)
	return count, nil
}

// Len returns the number of live entries (expired entries may be counted
// until their next access).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// removeLocked deletes a key and its tag index entries. Caller holds s.mu.
func (s *MemoryStore) removeLocked(key string) {
	entry, ok := s.entries[key]
	if !ok {
		return
	}
	s.unindexLocked(key, entry.tags)
	delete(s.entries, key)
}

// unindexLocked removes key from the index of each tag. Caller holds s.mu.
func (s *MemoryStore) unindexLocked(key string, tags []string) {
	for _, tag := range tags {
		if set, ok := s.tagIndex[tag]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(s.tagIndex, tag)
			}
		}
	}
}
