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

import "context"

// Identity is the authenticated caller as established by the gateway's
// auth middleware. A nil *Identity means the request is unauthenticated.
type Identity struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email,omitempty"`
	SuperAdmin   bool   `json:"super_admin"`
	ActiveTenant string `json:"active_tenant,omitempty"`
}

// Context is the per-request tenant scope produced by EnforceTenant.
// It is attached to the request context and discarded at request end.
type Context struct {
	TenantID   string
	SuperAdmin bool
}

type contextKey int

const (
	identityKey contextKey = iota
	tenantKey
)

// WithIdentity attaches the authenticated identity to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom extracts the authenticated identity, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// WithTenant attaches the enforced tenant scope to ctx.
func WithTenant(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, tenantKey, tc)
}

// TenantFrom extracts the enforced tenant scope, if any.
func TenantFrom(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(tenantKey).(*Context)
	return tc, ok && tc != nil
}

// ResolveTenant picks the tenant for a request. Priority order, first
// match wins: explicit header override, the caller's active tenant,
// then the platform default.
func ResolveTenant(headerTenant string, identity *Identity, defaultTenant string) string {
	if headerTenant != "" {
		return headerTenant
	}
	if identity != nil && identity.ActiveTenant != "" {
		return identity.ActiveTenant
	}
	return defaultTenant
}
