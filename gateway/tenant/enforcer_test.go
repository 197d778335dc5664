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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xynergyos/platform/shared/types"
)

func TestResolveTenant(t *testing.T) {
	member := &Identity{UserID: "u1", ActiveTenant: "acme"}

	tests := []struct {
		name          string
		headerTenant  string
		identity      *Identity
		defaultTenant string
		want          string
	}{
		{"header wins", "beta", member, "default", "beta"},
		{"active tenant next", "", member, "default", "acme"},
		{"default last", "", &Identity{UserID: "u1"}, "default", "default"},
		{"nil identity falls through", "", nil, "default", "default"},
		{"header wins even without identity", "beta", nil, "default", "beta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTenant(tt.headerTenant, tt.identity, tt.defaultTenant)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnforceTenantRequiresAuthentication(t *testing.T) {
	e := NewEnforcer(NewMemoryGrantStore())

	_, err := e.EnforceTenant(context.Background(), nil, "acme")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeAuthenticationRequired))

	_, err = e.EnforceTenant(context.Background(), &Identity{}, "acme")
	assert.True(t, types.IsCode(err, types.ErrCodeAuthenticationRequired))
}

func TestEnforceTenantRequiresTenantID(t *testing.T) {
	e := NewEnforcer(NewMemoryGrantStore())

	_, err := e.EnforceTenant(context.Background(), &Identity{UserID: "u1"}, "")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeTenantIDRequired))
}

func TestEnforceTenantMembership(t *testing.T) {
	store := NewMemoryGrantStore()
	store.AddMember("acme", "u1", "admin")
	e := NewEnforcer(store)

	tc, err := e.EnforceTenant(context.Background(), &Identity{UserID: "u1"}, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", tc.TenantID)
	assert.False(t, tc.SuperAdmin)

	_, err = e.EnforceTenant(context.Background(), &Identity{UserID: "u2"}, "acme")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeTenantAccessDenied))
}

func TestEnforceTenantPublicTenant(t *testing.T) {
	store := NewMemoryGrantStore()
	store.SetPublic("community", true)
	e := NewEnforcer(store)

	tc, err := e.EnforceTenant(context.Background(), &Identity{UserID: "stranger"}, "community")
	require.NoError(t, err)
	assert.Equal(t, "community", tc.TenantID)
}

func TestEnforceTenantSuperAdminBypass(t *testing.T) {
	// Empty store: the super-admin must get in anyway.
	e := NewEnforcer(NewMemoryGrantStore())

	tc, err := e.EnforceTenant(context.Background(), &Identity{UserID: "root", SuperAdmin: true}, "any-tenant")
	require.NoError(t, err)
	assert.True(t, tc.SuperAdmin)
	assert.Equal(t, "any-tenant", tc.TenantID)
}

func TestCheckPermissionAnyOf(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGrantStore()
	store.Grant("acme", "u1", "crm.contacts.read")
	e := NewEnforcer(store)

	id := &Identity{UserID: "u1"}
	tc := &Context{TenantID: "acme"}

	// One of the required permissions matches.
	err := e.CheckPermission(ctx, tc, id, []string{"crm.contacts.read", "crm.contacts.write"}, false)
	assert.NoError(t, err)

	// None match.
	err = e.CheckPermission(ctx, tc, id, []string{"billing.invoices.read"}, false)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodePermissionDenied))
}

func TestCheckPermissionRequireAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGrantStore()
	store.Grant("acme", "u1", "crm.*")
	e := NewEnforcer(store)

	id := &Identity{UserID: "u1"}
	tc := &Context{TenantID: "acme"}

	err := e.CheckPermission(ctx, tc, id, []string{"crm.contacts.read", "crm.deals.write"}, true)
	assert.NoError(t, err)

	err = e.CheckPermission(ctx, tc, id, []string{"crm.contacts.read", "billing.invoices.read"}, true)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodePermissionDenied))
	// The denial names what is missing, never what the user holds.
	assert.Contains(t, err.Error(), "billing.invoices.read")
	assert.NotContains(t, err.Error(), "crm.*")
}

func TestCheckPermissionSuperAdminBypass(t *testing.T) {
	e := NewEnforcer(NewMemoryGrantStore())

	err := e.CheckPermission(context.Background(),
		&Context{TenantID: "acme", SuperAdmin: true},
		&Identity{UserID: "root", SuperAdmin: true},
		[]string{"anything.at.all"}, true)
	assert.NoError(t, err)
}

func TestCheckPermissionEmptyRequirement(t *testing.T) {
	e := NewEnforcer(NewMemoryGrantStore())

	err := e.CheckPermission(context.Background(),
		&Context{TenantID: "acme"},
		&Identity{UserID: "u1"},
		nil, false)
	assert.NoError(t, err)
}
