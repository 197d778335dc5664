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

package tenant

import (
	"context"
	"sync"
)

// GrantStore is the read-only view of tenant membership and permission
// grants. The enforcer only evaluates match logic; it never writes.
type GrantStore interface {
	// HasTenantRole reports whether the user holds any role within the
	// tenant.
	HasTenantRole(ctx context.Context, tenantID, userID string) (bool, error)

	// TenantPublic reports whether the tenant is marked publicly active,
	// granting read access to any authenticated user.
	TenantPublic(ctx context.Context, tenantID string) (bool, error)

	// Permissions returns the permission grants held by the user within
	// the tenant.
	Permissions(ctx context.Context, tenantID, userID string) ([]string, error)
}

// MemoryGrantStore is an in-memory GrantStore for self-hosted deployments
// and tests. Zero-value maps are created lazily on first write.
type MemoryGrantStore struct {
	mu            sync.RWMutex
	roles         map[string]map[string]string // tenant -> user -> role
	publicTenants map[string]bool
	grants        map[string]map[string][]string // tenant -> user -> permissions
}

// NewMemoryGrantStore creates an empty store.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{
		roles:         make(map[string]map[string]string),
		publicTenants: make(map[string]bool),
		grants:        make(map[string]map[string][]string),
	}
}

// AddMember records a role for the user within the tenant.
func (s *MemoryGrantStore) AddMember(tenantID, userID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[tenantID] == nil {
		s.roles[tenantID] = make(map[string]string)
	}
	s.roles[tenantID][userID] = role
}

// SetPublic marks the tenant as publicly active.
func (s *MemoryGrantStore) SetPublic(tenantID string, public bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicTenants[tenantID] = public
}

// Grant records permission strings for the user within the tenant.
func (s *MemoryGrantStore) Grant(tenantID, userID string, permissions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[tenantID] == nil {
		s.grants[tenantID] = make(map[string][]string)
	}
	s.grants[tenantID][userID] = append(s.grants[tenantID][userID], permissions...)
}

// HasTenantRole implements GrantStore.
func (s *MemoryGrantStore) HasTenantRole(ctx context.Context, tenantID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[tenantID][userID]
	return ok, nil
}

// TenantPublic implements GrantStore.
func (s *MemoryGrantStore) TenantPublic(ctx context.Context, tenantID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publicTenants[tenantID], nil
}

// Permissions implements GrantStore.
func (s *MemoryGrantStore) Permissions(ctx context.Context, tenantID, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perms := s.grants[tenantID][userID]
	out := make([]string, len(perms))
	copy(out, perms)
	return out, nil
}
