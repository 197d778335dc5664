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

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"xynergyos/platform/gateway/cache"
	"xynergyos/platform/gateway/circuitbreaker"
	"xynergyos/platform/shared/logger"
	"xynergyos/platform/shared/types"
)

var routerRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "xynergy_gateway_router_requests_total",
		Help: "Routed service calls by service and outcome",
	},
	[]string{"service", "outcome"},
)

var routerMetricsOnce sync.Once

// Service is a routable backend registered with the router.
type Service struct {
	Name    string
	BaseURL string
	// Timeout bounds a single upstream call. Zero means the breaker's
	// default call timeout applies alone.
	Timeout time.Duration
	// Breaker overrides the default breaker configuration for this
	// service.
	Breaker circuitbreaker.Config
}

// CallOptions shape a single routed call.
type CallOptions struct {
	Method   string
	Body     []byte
	Headers  map[string]string
	UseCache bool
	CacheTTL time.Duration
	// Fallback, when set, is returned instead of an error whenever the
	// upstream call cannot produce a response (circuit open, timeout,
	// upstream failure).
	Fallback *Response
}

// Response is the normalized result of a routed call.
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body"`
}

// ServiceRouter routes gateway requests to registered backends through a
// per-service circuit breaker, with optional response caching. Each
// service has its own breaker and its own cache namespace, so one
// misbehaving backend never affects calls to another.
type ServiceRouter struct {
	mu       sync.RWMutex
	services map[string]Service

	breakers *circuitbreaker.Manager
	cache    *cache.Cache
	client   *http.Client
	log      *logger.Logger
}

// RouterOption configures the ServiceRouter.
type RouterOption func(*ServiceRouter)

// WithCache sets the response cache.
func WithCache(c *cache.Cache) RouterOption {
	return func(r *ServiceRouter) {
		r.cache = c
	}
}

// WithBreakerManager sets the circuit breaker manager.
func WithBreakerManager(m *circuitbreaker.Manager) RouterOption {
	return func(r *ServiceRouter) {
		r.breakers = m
	}
}

// WithHTTPClient sets the upstream HTTP client.
func WithHTTPClient(client *http.Client) RouterOption {
	return func(r *ServiceRouter) {
		r.client = client
	}
}

// NewServiceRouter creates a router with no registered services.
func NewServiceRouter(opts ...RouterOption) *ServiceRouter {
	routerMetricsOnce.Do(func() {
		_ = prometheus.Register(routerRequests)
	})

	r := &ServiceRouter{
		services: make(map[string]Service),
		breakers: circuitbreaker.NewManager(circuitbreaker.Config{}),
		cache:    cache.New(),
		client:   &http.Client{},
		log:      logger.New("service-router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterService adds or replaces a routable backend.
func (r *ServiceRouter) RegisterService(svc Service) {
	r.mu.Lock()
	r.services[svc.Name] = svc
	r.mu.Unlock()

	cfg := svc.Breaker
	if svc.Timeout > 0 {
		cfg.CallTimeout = svc.Timeout
	}
	r.breakers.Configure(svc.Name, cfg)
	r.breakers.Get(svc.Name)
}

// Services returns the registered service names, for status endpoints.
func (r *ServiceRouter) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}

// CallService routes one request to a registered backend.
//
// With caching requested, a cache hit returns immediately and neither the
// breaker nor the network is touched. On a miss the call goes through the
// service's breaker with a bounded timeout; a successful 2xx response is
// stored under the service's cache tag. Responses with non-2xx status are
// returned to the caller unmodified, but 5xx additionally counts as a
// breaker failure and surfaces as UPSTREAM_FAILURE.
func (r *ServiceRouter) CallService(ctx context.Context, serviceName, endpoint string, opts CallOptions) (*Response, error) {
	r.mu.RLock()
	svc, ok := r.services[serviceName]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrCodeUnknownService,
			fmt.Sprintf("unknown service %q", serviceName))
	}

	if opts.Method == "" {
		opts.Method = http.MethodGet
	}

	var key string
	if opts.UseCache {
		key = cacheKey(serviceName, endpoint, opts)
		if cached, found := r.cache.Get(ctx, key); found {
			var resp Response
			if err := json.Unmarshal(cached, &resp); err == nil {
				routerRequests.WithLabelValues(serviceName, "cache_hit").Inc()
				return &resp, nil
			}
			// Undecodable entry: fall through as a miss.
		}
	}

	resp, err := circuitbreaker.Do(ctx, r.breakers.Get(serviceName), func(callCtx context.Context) (*Response, error) {
		return r.callUpstream(callCtx, svc, endpoint, opts)
	})
	if err != nil {
		if opts.Fallback != nil {
			routerRequests.WithLabelValues(serviceName, "fallback").Inc()
			r.log.Warn("", "", "Returning fallback for failed service call", map[string]interface{}{
				"service":  serviceName,
				"endpoint": endpoint,
				"error":    err.Error(),
			})
			return opts.Fallback, nil
		}
		routerRequests.WithLabelValues(serviceName, "error").Inc()
		return nil, err
	}

	if opts.UseCache && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if encoded, encErr := json.Marshal(resp); encErr == nil {
			r.cache.Set(ctx, key, encoded, opts.CacheTTL, []string{ServiceTag(serviceName)})
		}
	}

	routerRequests.WithLabelValues(serviceName, "success").Inc()
	return resp, nil
}

// callUpstream performs the HTTP call. A transport error or 5xx status is
// returned as an error so the breaker counts it.
func (r *ServiceRouter) callUpstream(ctx context.Context, svc Service, endpoint string, opts CallOptions) (*Response, error) {
	url := strings.TrimSuffix(svc.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, url, body)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInvalidRequest,
			fmt.Sprintf("building request for %s", svc.Name), err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	httpResp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Let the breaker map the deadline to UPSTREAM_TIMEOUT.
			return nil, ctx.Err()
		}
		return nil, types.WrapError(types.ErrCodeUpstreamFailure,
			fmt.Sprintf("service %s unreachable", svc.Name), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUpstreamFailure,
			fmt.Sprintf("reading response from %s", svc.Name), err)
	}

	if httpResp.StatusCode >= 500 {
		return nil, types.NewError(types.ErrCodeUpstreamFailure,
			fmt.Sprintf("service %s returned %d", svc.Name, httpResp.StatusCode))
	}

	headers := make(map[string]string)
	if ct := httpResp.Header.Get("Content-Type"); ct != "" {
		headers["Content-Type"] = ct
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    headers,
		Body:       respBody,
	}, nil
}

// InvalidateServiceCache drops every cached response for the service and
// returns the number of entries removed. Call it after writes that make
// the service's cached reads stale.
func (r *ServiceRouter) InvalidateServiceCache(ctx context.Context, serviceName string) int {
	count := r.cache.InvalidateTag(ctx, ServiceTag(serviceName))
	r.log.Info("", "", "Invalidated service cache", map[string]interface{}{
		"service": serviceName,
		"removed": count,
	})
	return count
}

// Breakers exposes the breaker manager for admin endpoints.
func (r *ServiceRouter) Breakers() *circuitbreaker.Manager {
	return r.breakers
}

// ServiceTag is the cache tag grouping all entries for one service.
func ServiceTag(serviceName string) string {
	return "service:" + serviceName
}
