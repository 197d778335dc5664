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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"xynergyos/platform/gateway/router"
	"xynergyos/platform/gateway/tenant"
	"xynergyos/platform/llm"
	"xynergyos/platform/shared/types"
)

// maxRequestBody bounds inbound payloads forwarded to backends.
const maxRequestBody = 10 << 20

var startTime = time.Now()

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "gateway",
		"uptime_seconds": int64(time.Since(startTime).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// statsHandler reports operational counters for dashboards. It is
// distinct from /prometheus, which serves the scrape format.
func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"cache":             a.cache.Stats(),
		"service_breakers":  a.services.Breakers().Snapshots(),
		"provider_breakers": a.llm.Breakers().Snapshots(),
	}
	if a.audit != nil {
		stats["audit"] = a.audit.Stats()
	}
	writeJSON(w, http.StatusOK, stats)
}

// routeHandler proxies a request to a registered backend service. The
// caller needs the per-service call permission; GET responses are cached
// under the service's invalidation tag.
func (a *App) routeHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serviceName := vars["service"]
	endpoint := "/" + vars["endpoint"]

	if err := a.checkPermissions(r, []string{fmt.Sprintf("services.%s.call", serviceName)}, false); err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, types.WrapError(types.ErrCodeInvalidRequest, "failed to read request body", err))
		return
	}

	headers := map[string]string{
		requestIDHeader: requestIDFrom(r.Context()),
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		headers["Content-Type"] = ct
	}
	if tc, ok := tenant.TenantFrom(r.Context()); ok {
		headers[TenantHeader] = tc.TenantID
	}

	resp, err := a.services.CallService(r.Context(), serviceName, endpoint, router.CallOptions{
		Method:   r.Method,
		Body:     body,
		Headers:  headers,
		UseCache: r.Method == http.MethodGet,
		CacheTTL: a.serviceTTL[serviceName],
	})
	if err != nil {
		a.logRouteError(r, serviceName, err)
		writeError(w, err)
		return
	}

	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func (a *App) logRouteError(r *http.Request, serviceName string, err error) {
	tenantID := ""
	if tc, ok := tenant.TenantFrom(r.Context()); ok {
		tenantID = tc.TenantID
	}
	var appErr *types.Error
	if errors.As(err, &appErr) && appErr.Expected() {
		a.log.Info(tenantID, requestIDFrom(r.Context()), "Routed call rejected", map[string]interface{}{
			"service": serviceName,
			"code":    string(appErr.Code),
		})
		return
	}
	a.log.Error(tenantID, requestIDFrom(r.Context()), "Routed call failed", map[string]interface{}{
		"service": serviceName,
		"error":   err.Error(),
	})
}

// completeHandler routes an AI completion through the provider router.
func (a *App) completeHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.checkPermissions(r, []string{"llm.complete"}, false); err != nil {
		writeError(w, err)
		return
	}

	var req llm.CompletionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, types.WrapError(types.ErrCodeInvalidRequest, "invalid completion request", err))
		return
	}
	if req.Prompt == "" {
		writeError(w, types.NewError(types.ErrCodeInvalidRequest, "prompt is required"))
		return
	}

	resp, err := a.llm.RouteCompletion(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) breakersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"services":  a.services.Breakers().Snapshots(),
		"providers": a.llm.Breakers().Snapshots(),
	})
}

// breakerResetHandler force-closes a breaker by target name, checking
// service breakers first and provider breakers second.
func (a *App) breakerResetHandler(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["target"]

	reset := a.services.Breakers().Reset(target)
	if !reset {
		reset = a.llm.Breakers().Reset(target)
	}
	if !reset {
		writeError(w, types.NewError(types.ErrCodeUnknownService, fmt.Sprintf("no breaker for target '%s'", target)))
		return
	}

	a.log.Info("", requestIDFrom(r.Context()), "Breaker reset", map[string]interface{}{
		"target": target,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"target": target, "reset": true})
}

func (a *App) invalidateCacheHandler(w http.ResponseWriter, r *http.Request) {
	serviceName := mux.Vars(r)["service"]
	invalidated := a.services.InvalidateServiceCache(r.Context(), serviceName)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     serviceName,
		"invalidated": invalidated,
	})
}

func (a *App) invalidateLLMCacheHandler(w http.ResponseWriter, r *http.Request) {
	invalidated := a.llm.InvalidateResponses(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invalidated": invalidated,
	})
}

func (a *App) providersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": a.llm.Statuses(),
	})
}
