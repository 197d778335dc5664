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

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"xynergyos/platform/gateway/circuitbreaker"
	"xynergyos/platform/gateway/config"
	"xynergyos/platform/gateway/tenant"
	"xynergyos/platform/shared/types"
)

// TenantHeader carries an explicit tenant override on a request.
const TenantHeader = "X-Tenant-Id"

// requestIDHeader echoes the request correlation id back to callers.
const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

func contextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// requestIDFrom returns the correlation id attached by authMiddleware.
func requestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// breakerConfigFrom translates configured breaker thresholds into the
// runtime breaker configuration.
func breakerConfigFrom(bc config.BreakerConfig) circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold: bc.FailureThreshold,
		RecoveryTimeout:  time.Duration(bc.RecoveryTimeoutMs) * time.Millisecond,
		CallTimeout:      time.Duration(bc.CallTimeoutMs) * time.Millisecond,
	}
}

// authMiddleware validates the Bearer token, if present, and attaches the
// resulting identity to the request context. A missing token passes
// through unauthenticated so tenant enforcement can return the precise
// AUTHENTICATION_REQUIRED error; a malformed or forged token is rejected
// here.
func (a *App) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := contextWithRequestID(r.Context(), requestID)

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		identity, err := a.parseIdentity(tokenString)
		if err != nil {
			a.log.Warn("", requestID, "Rejected invalid token", map[string]interface{}{
				"error": err.Error(),
			})
			writeError(w, types.NewError(types.ErrCodeAuthenticationRequired, "invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithIdentity(ctx, identity)))
	})
}

// parseIdentity validates the JWT signature and extracts the caller.
func (a *App) parseIdentity(tokenString string) (*tenant.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID := claimString(claims, "user_id")
	if userID == "" {
		return nil, errors.New("token missing user_id claim")
	}

	superAdmin := false
	if v, ok := claims["super_admin"].(bool); ok {
		superAdmin = v
	}

	return &tenant.Identity{
		UserID:       userID,
		Email:        claimString(claims, "email"),
		SuperAdmin:   superAdmin,
		ActiveTenant: claimString(claims, "active_tenant"),
	}, nil
}

// tenantMiddleware resolves the request's tenant (header override, then
// the caller's active tenant, then the platform default) and enforces
// access before any routing happens.
func (a *App) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := tenant.IdentityFrom(r.Context())

		tenantID := tenant.ResolveTenant(r.Header.Get(TenantHeader), identity, a.cfg.DefaultTenant)
		tc, err := a.enforcer.EnforceTenant(r.Context(), identity, tenantID)
		if err != nil {
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), tc)))
	})
}

// requirePermission gates a route on a single permission.
func (a *App) requirePermission(permission string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := a.checkPermissions(r, []string{permission}, false); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkPermissions runs the permission check against the request's
// enforced tenant scope.
func (a *App) checkPermissions(r *http.Request, required []string, requireAll bool) error {
	identity, _ := tenant.IdentityFrom(r.Context())
	tc, _ := tenant.TenantFrom(r.Context())
	return a.enforcer.CheckPermission(r.Context(), tc, identity, required, requireAll)
}

// metricsMiddleware records request counts and latency per route
// template.
func (a *App) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		statusClass := strconv.Itoa(recorder.status/100) + "xx"
		promRequestsTotal.WithLabelValues(route, statusClass).Inc()
		promRequestDuration.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// writeError renders a normalized error envelope. Unrecognized errors
// become opaque 500s so internals never leak to callers.
func writeError(w http.ResponseWriter, err error) {
	var appErr *types.Error
	if !errors.As(err, &appErr) {
		appErr = types.WrapError(types.ErrCodeInternal, "internal error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":           string(appErr.Code),
			"message":        appErr.Message,
			"correlation_id": appErr.CorrelationID,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
