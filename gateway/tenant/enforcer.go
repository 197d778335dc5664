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
	"fmt"
	"strings"

	"xynergyos/platform/shared/logger"
	"xynergyos/platform/shared/types"
)

// Enforcer evaluates tenant access and permission checks against a
// GrantStore. Decisions are recorded to the audit queue best-effort;
// audit failures never affect the request.
type Enforcer struct {
	store GrantStore
	audit *AuditQueue
	log   *logger.Logger
}

// EnforcerOption configures the Enforcer.
type EnforcerOption func(*Enforcer)

// WithAuditQueue attaches an audit sink for access decisions.
func WithAuditQueue(aq *AuditQueue) EnforcerOption {
	return func(e *Enforcer) {
		e.audit = aq
	}
}

// NewEnforcer creates an Enforcer backed by store.
func NewEnforcer(store GrantStore, opts ...EnforcerOption) *Enforcer {
	e := &Enforcer{
		store: store,
		log:   logger.New("tenant-enforcer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnforceTenant verifies that identity may act within tenantID and returns
// the request's tenant scope. Super-admins bypass the membership lookup;
// the bypass is audited distinctly. Other callers need either a recorded
// role within the tenant or a publicly active tenant.
func (e *Enforcer) EnforceTenant(ctx context.Context, identity *Identity, tenantID string) (*Context, error) {
	if identity == nil || identity.UserID == "" {
		return nil, types.NewError(types.ErrCodeAuthenticationRequired, "authentication required")
	}
	if tenantID == "" {
		return nil, types.NewError(types.ErrCodeTenantIDRequired, "tenant id required")
	}

	if identity.SuperAdmin {
		e.record(AuditSuperAdminBypass, tenantID, identity.UserID, true, map[string]interface{}{
			"check": "tenant_access",
		})
		e.log.Info(tenantID, "", "Super-admin tenant access", map[string]interface{}{
			"user_id": identity.UserID,
		})
		return &Context{TenantID: tenantID, SuperAdmin: true}, nil
	}

	hasRole, err := e.store.HasTenantRole(ctx, tenantID, identity.UserID)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInternal, "tenant access lookup failed", err)
	}
	if !hasRole {
		public, err := e.store.TenantPublic(ctx, tenantID)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeInternal, "tenant access lookup failed", err)
		}
		if !public {
			e.record(AuditTenantAccess, tenantID, identity.UserID, false, nil)
			return nil, types.NewError(types.ErrCodeTenantAccessDenied,
				fmt.Sprintf("no access to tenant %s", tenantID))
		}
	}

	e.record(AuditTenantAccess, tenantID, identity.UserID, true, nil)
	return &Context{TenantID: tenantID, SuperAdmin: false}, nil
}

// CheckPermission verifies that identity holds the required permissions
// within the already-enforced tenant scope. With requireAll false (the
// default posture) any single match grants; with requireAll true every
// required permission must match some held grant. Denials name the
// missing permissions, never the grants the user does hold.
func (e *Enforcer) CheckPermission(ctx context.Context, tc *Context, identity *Identity, required []string, requireAll bool) error {
	if identity == nil || identity.UserID == "" {
		return types.NewError(types.ErrCodeAuthenticationRequired, "authentication required")
	}
	if tc == nil {
		return types.NewError(types.ErrCodeTenantIDRequired, "tenant not enforced")
	}
	if len(required) == 0 {
		return nil
	}

	if tc.SuperAdmin {
		e.record(AuditSuperAdminBypass, tc.TenantID, identity.UserID, true, map[string]interface{}{
			"check":    "permission",
			"required": strings.Join(required, ","),
		})
		return nil
	}

	grants, err := e.store.Permissions(ctx, tc.TenantID, identity.UserID)
	if err != nil {
		return types.WrapError(types.ErrCodeInternal, "permission lookup failed", err)
	}

	missing := missingPermissions(grants, required)
	var granted bool
	if requireAll {
		granted = len(missing) == 0
	} else {
		granted = len(missing) < len(required)
	}

	e.record(AuditPermissionCheck, tc.TenantID, identity.UserID, granted, map[string]interface{}{
		"required":    strings.Join(required, ","),
		"require_all": requireAll,
	})

	if !granted {
		if requireAll {
			return types.NewError(types.ErrCodePermissionDenied,
				fmt.Sprintf("missing permissions: %s", strings.Join(missing, ", ")))
		}
		return types.NewError(types.ErrCodePermissionDenied,
			fmt.Sprintf("requires one of: %s", strings.Join(required, ", ")))
	}
	return nil
}

func (e *Enforcer) record(eventType, tenantID, userID string, granted bool, details map[string]interface{}) {
	if e.audit == nil {
		return
	}
	e.audit.Record(AuditEntry{
		Type:     eventType,
		TenantID: tenantID,
		UserID:   userID,
		Granted:  granted,
		Details:  details,
	})
}
