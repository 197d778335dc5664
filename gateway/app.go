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
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"xynergyos/platform/gateway/cache"
	"xynergyos/platform/gateway/config"
	"xynergyos/platform/gateway/router"
	"xynergyos/platform/gateway/tenant"
	"xynergyos/platform/llm"
	"xynergyos/platform/shared/logger"
)

var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xynergy_gateway_requests_total",
			Help: "Total gateway requests by route and status class",
		},
		[]string{"route", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xynergy_gateway_request_duration_milliseconds",
			Help:    "Gateway request duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		},
		[]string{"route"},
	)
)

var appMetricsOnce sync.Once

// App wires the gateway's components behind one HTTP handler.
type App struct {
	cfg      *config.Config
	services *router.ServiceRouter
	llm      *llm.Router
	enforcer *tenant.Enforcer
	audit    *tenant.AuditQueue
	cache    *cache.Cache
	log      *logger.Logger

	jwtSecret []byte
	// serviceTTL is the effective cache TTL per registered service.
	serviceTTL map[string]time.Duration
}

// AppOption configures the App.
type AppOption func(*App)

// WithServiceRouter sets the backend service router.
func WithServiceRouter(r *router.ServiceRouter) AppOption {
	return func(a *App) { a.services = r }
}

// WithLLMRouter sets the AI provider router.
func WithLLMRouter(r *llm.Router) AppOption {
	return func(a *App) { a.llm = r }
}

// WithEnforcer sets the tenant/permission enforcer.
func WithEnforcer(e *tenant.Enforcer) AppOption {
	return func(a *App) { a.enforcer = e }
}

// WithAudit sets the access audit queue.
func WithAudit(aq *tenant.AuditQueue) AppOption {
	return func(a *App) { a.audit = aq }
}

// WithAppCache sets the shared response cache.
func WithAppCache(c *cache.Cache) AppOption {
	return func(a *App) { a.cache = c }
}

// NewApp assembles the gateway from its components. Components not
// provided through options get self-contained in-memory defaults, which
// is the self-hosted zero-config posture.
func NewApp(cfg *config.Config, opts ...AppOption) *App {
	appMetricsOnce.Do(func() {
		_ = prometheus.Register(promRequestsTotal)
		_ = prometheus.Register(promRequestDuration)
	})

	a := &App{
		cfg:        cfg,
		log:        logger.New("gateway"),
		jwtSecret:  []byte(cfg.JWTSecret),
		serviceTTL: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.cache == nil {
		a.cache = cache.New()
	}
	if a.services == nil {
		a.services = router.NewServiceRouter(router.WithCache(a.cache))
	}
	if a.llm == nil {
		a.llm = llm.NewRouter(llm.WithResponseCache(a.cache))
	}
	if a.enforcer == nil {
		a.enforcer = tenant.NewEnforcer(tenant.NewMemoryGrantStore())
	}

	for _, svc := range cfg.Services {
		a.services.RegisterService(router.Service{
			Name:    svc.Name,
			BaseURL: svc.BaseURL,
			Timeout: time.Duration(svc.TimeoutMs) * time.Millisecond,
			Breaker: breakerConfigFrom(cfg.Breaker),
		})
		a.serviceTTL[svc.Name] = cfg.ServiceCacheTTL(svc)
	}

	return a
}

// Handler builds the routing table. Every /api and /admin route passes
// through authentication and tenant enforcement before its handler runs.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(a.metricsMiddleware)

	r.HandleFunc("/health", a.healthHandler).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/metrics", a.statsHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.authMiddleware, a.tenantMiddleware)
	api.HandleFunc("/route/{service}/{endpoint:.*}", a.routeHandler)
	api.HandleFunc("/llm/complete", a.completeHandler).Methods("POST")

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(a.authMiddleware, a.tenantMiddleware, a.requirePermission("gateway.admin"))
	admin.HandleFunc("/breakers", a.breakersHandler).Methods("GET")
	admin.HandleFunc("/breakers/{target}/reset", a.breakerResetHandler).Methods("POST")
	admin.HandleFunc("/cache/invalidate/{service}", a.invalidateCacheHandler).Methods("POST")
	admin.HandleFunc("/llm/cache/invalidate", a.invalidateLLMCacheHandler).Methods("POST")
	admin.HandleFunc("/providers", a.providersHandler).Methods("GET")

	allowedOrigins := a.cfg.CORS.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
