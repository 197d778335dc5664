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

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"xynergyos/platform/gateway/cache"
	"xynergyos/platform/gateway/circuitbreaker"
	"xynergyos/platform/shared/logger"
	"xynergyos/platform/shared/types"
)

var (
	providerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xynergy_llm_requests_total",
			Help: "Completion attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	providerCostCents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xynergy_llm_cost_cents_total",
			Help: "Accumulated request cost by provider, in cents",
		},
		[]string{"provider"},
	)
)

var llmMetricsOnce sync.Once

// defaultProviderCallTimeout bounds a single generation call. Generation
// is slower than ordinary service calls, so this is deliberately long.
const defaultProviderCallTimeout = 120 * time.Second

// defaultResponseTTL is how long a completion stays in the prompt cache.
const defaultResponseTTL = 5 * time.Minute

// responseCacheTag groups all cached completions for invalidation.
const responseCacheTag = "llm:responses"

// Router routes completion requests across registered providers with
// complexity-aware ordering and breaker-based fallback.
type Router struct {
	mu        sync.RWMutex
	providers []Descriptor

	breakers    *circuitbreaker.Manager
	cache       *cache.Cache
	responseTTL time.Duration
	breakerCfg  circuitbreaker.Config
	log         *logger.Logger
}

// RouterOption configures the Router.
type RouterOption func(*Router)

// WithResponseCache sets the prompt cache for completions.
func WithResponseCache(c *cache.Cache) RouterOption {
	return func(r *Router) {
		r.cache = c
	}
}

// WithResponseTTL sets how long completions stay cached.
func WithResponseTTL(ttl time.Duration) RouterOption {
	return func(r *Router) {
		r.responseTTL = ttl
	}
}

// WithBreakerConfig overrides the breaker configuration applied to each
// registered provider.
func WithBreakerConfig(cfg circuitbreaker.Config) RouterOption {
	return func(r *Router) {
		r.breakerCfg = cfg
	}
}

// NewRouter creates a provider router with no registered providers.
func NewRouter(opts ...RouterOption) *Router {
	llmMetricsOnce.Do(func() {
		_ = prometheus.Register(providerRequests)
		_ = prometheus.Register(providerCostCents)
	})

	r := &Router{
		breakers:    circuitbreaker.NewManager(circuitbreaker.Config{}),
		cache:       cache.New(),
		responseTTL: defaultResponseTTL,
		breakerCfg: circuitbreaker.Config{
			CallTimeout: defaultProviderCallTimeout,
		},
		log: logger.New("llm-router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider to the routing pool.
func (r *Router) Register(desc Descriptor) {
	r.mu.Lock()
	r.providers = append(r.providers, desc)
	r.mu.Unlock()

	r.breakers.Configure(desc.Provider.Name(), r.breakerCfg)
	r.breakers.Get(desc.Provider.Name())
}

// candidateOrder builds the fallback sequence for a complexity class:
// affinity-matched providers first in ascending priority, then the rest
// in ascending priority.
func (r *Router) candidateOrder(c Complexity) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]Descriptor, 0, len(r.providers))
	rest := make([]Descriptor, 0, len(r.providers))
	for _, desc := range r.providers {
		if desc.Affinity == c {
			matched = append(matched, desc)
		} else {
			rest = append(rest, desc)
		}
	}
	byPriority := func(list []Descriptor) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority < list[j].Priority
		})
	}
	byPriority(matched)
	byPriority(rest)
	return append(matched, rest...)
}

// RouteCompletion serves one completion request.
//
// The prompt is classified once; the classification drives both the
// candidate order and the output token allocation. An exact-match prompt
// cache lookup runs before any provider dispatch. Providers whose breaker
// is open are skipped without a call; the first success wins. When every
// candidate fails or is unavailable, ALL_PROVIDERS_UNAVAILABLE is
// returned and the request is not retried here.
func (r *Router) RouteCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	complexity := Classify(req.Prompt)
	req.MaxTokens = TokenAllocation(complexity, req.MaxTokens)

	key := promptCacheKey(req)
	if cached, found := r.cache.Get(ctx, key); found {
		var resp CompletionResponse
		if err := json.Unmarshal(cached, &resp); err == nil {
			resp.Cached = true
			providerRequests.WithLabelValues(resp.Provider, "cache_hit").Inc()
			return &resp, nil
		}
	}

	candidates := r.candidateOrder(complexity)
	if len(candidates) == 0 {
		return nil, types.NewError(types.ErrCodeAllProvidersUnavailable, "no providers registered")
	}

	var lastErr error
	for _, desc := range candidates {
		name := desc.Provider.Name()
		breaker := r.breakers.Get(name)

		resp, err := circuitbreaker.Do(ctx, breaker, func(callCtx context.Context) (*CompletionResponse, error) {
			return desc.Provider.Complete(callCtx, req)
		})
		if err != nil {
			lastErr = err
			outcome := "error"
			if types.IsCode(err, types.ErrCodeCircuitOpen) {
				outcome = "skipped_open"
			}
			providerRequests.WithLabelValues(name, outcome).Inc()
			r.log.Warn("", "", "Provider attempt failed, trying next candidate", map[string]interface{}{
				"provider":   name,
				"complexity": string(complexity),
				"error":      err.Error(),
			})
			continue
		}

		resp.Provider = name
		providerRequests.WithLabelValues(name, "success").Inc()
		providerCostCents.WithLabelValues(name).Add(float64(desc.CostCentsPerRequest))

		if encoded, encErr := json.Marshal(resp); encErr == nil {
			r.cache.Set(ctx, key, encoded, r.responseTTL, []string{responseCacheTag})
		}
		return resp, nil
	}

	err := types.NewError(types.ErrCodeAllProvidersUnavailable,
		fmt.Sprintf("all %d providers failed or unavailable", len(candidates)))
	if lastErr != nil {
		err.Cause = lastErr
	}
	return nil, err
}

// InvalidateResponses drops every cached completion and returns the
// number of entries removed.
func (r *Router) InvalidateResponses(ctx context.Context) int {
	return r.cache.InvalidateTag(ctx, responseCacheTag)
}

// ProviderStatus is the health view of one registered provider, derived
// from its breaker state.
type ProviderStatus struct {
	Name     string     `json:"name"`
	Priority int        `json:"priority"`
	Affinity Complexity `json:"affinity"`
	State    string     `json:"state"`
}

// Statuses reports every registered provider, ordered by priority.
func (r *Router) Statuses() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderStatus, 0, len(r.providers))
	for _, desc := range r.providers {
		name := desc.Provider.Name()
		out = append(out, ProviderStatus{
			Name:     name,
			Priority: desc.Priority,
			Affinity: desc.Affinity,
			State:    r.breakers.Get(name).CurrentState().String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Breakers exposes the provider breaker manager for admin endpoints.
func (r *Router) Breakers() *circuitbreaker.Manager {
	return r.breakers
}

// promptCacheKey derives the exact-match cache key from the normalized
// prompt plus the fields that change the completion.
func promptCacheKey(req CompletionRequest) string {
	material := struct {
		Prompt    string `json:"prompt"`
		System    string `json:"system,omitempty"`
		Model     string `json:"model,omitempty"`
		MaxTokens int    `json:"max_tokens"`
	}{
		Prompt:    NormalizePrompt(req.Prompt),
		System:    NormalizePrompt(req.SystemPrompt),
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	}
	encoded, _ := json.Marshal(material)
	sum := sha256.Sum256(encoded)
	return "llm:" + hex.EncodeToString(sum[:])
}

// NormalizePrompt canonicalizes a prompt for exact-match caching:
// lowercased with whitespace runs collapsed to single spaces.
func NormalizePrompt(prompt string) string {
	return strings.ToLower(strings.Join(strings.Fields(prompt), " "))
}
