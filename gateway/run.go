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
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xynergyos/platform/gateway/cache"
	"xynergyos/platform/gateway/config"
	"xynergyos/platform/gateway/router"
	"xynergyos/platform/gateway/tenant"
	"xynergyos/platform/llm"
	"xynergyos/platform/llm/anthropic"
	"xynergyos/platform/llm/bedrock"
	"xynergyos/platform/llm/openai"
)

// secretCacheTTL is how long resolved provider API keys stay cached.
const secretCacheTTL = 5 * time.Minute

// Run starts the gateway process: it loads configuration, wires the
// storage and provider backends, and serves until SIGINT/SIGTERM.
func Run() {
	configPath := getEnv("GATEWAY_CONFIG", "gateway.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", configPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Response cache: in-memory L1, Redis L2 when configured.
	cacheOpts := []cache.Option{}
	if cfg.RedisURL != "" {
		remote, err := cache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		cacheOpts = append(cacheOpts, cache.WithRemoteStore(remote))
		log.Printf("Response cache: memory + redis")
	} else {
		log.Printf("Response cache: memory only")
	}
	responseCache := cache.New(cacheOpts...)

	// Grant store and audit trail: Postgres when configured, otherwise
	// a self-contained in-memory store for local development.
	var grantStore tenant.GrantStore
	var auditQueue *tenant.AuditQueue
	if cfg.PostgresDSN != "" {
		pg, err := tenant.NewPostgresGrantStore(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		grantStore = pg

		auditQueue, err = tenant.NewAuditQueue(cfg.Audit.QueueSize, cfg.Audit.Workers, pg.DB(), cfg.Audit.FallbackPath)
		if err != nil {
			log.Fatalf("Failed to start audit queue: %v", err)
		}
		log.Printf("Grant store: postgres (audit queue: %d workers)", cfg.Audit.Workers)
	} else {
		grantStore = tenant.NewMemoryGrantStore()

		auditQueue, err = tenant.NewAuditQueue(cfg.Audit.QueueSize, cfg.Audit.Workers, nil, cfg.Audit.FallbackPath)
		if err != nil {
			log.Fatalf("Failed to start audit queue: %v", err)
		}
		log.Printf("Grant store: memory (development mode)")
	}

	enforcer := tenant.NewEnforcer(grantStore, tenant.WithAuditQueue(auditQueue))

	llmRouter, err := buildLLMRouter(ctx, cfg, responseCache)
	if err != nil {
		log.Fatalf("Failed to build LLM router: %v", err)
	}

	app := NewApp(cfg,
		WithAppCache(responseCache),
		WithServiceRouter(router.NewServiceRouter(router.WithCache(responseCache))),
		WithLLMRouter(llmRouter),
		WithEnforcer(enforcer),
		WithAudit(auditQueue),
	)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second, // must exceed the LLM call timeout
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Gateway listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := auditQueue.Shutdown(shutdownCtx); err != nil {
		log.Printf("Audit queue shutdown error: %v", err)
	}
	log.Printf("Shutdown complete")
}

// buildLLMRouter constructs the provider router from configuration.
// API key references are resolved through the key source, which
// supports plain values, env: references and Secrets Manager ARNs.
func buildLLMRouter(ctx context.Context, cfg *config.Config, responseCache *cache.Cache) (*llm.Router, error) {
	opts := []llm.RouterOption{llm.WithResponseCache(responseCache)}
	if cfg.LLM.ResponseTTLSeconds > 0 {
		opts = append(opts, llm.WithResponseTTL(time.Duration(cfg.LLM.ResponseTTLSeconds)*time.Second))
	}
	r := llm.NewRouter(opts...)

	var keys *llm.KeySource
	for _, pc := range cfg.LLM.Providers {
		if !pc.Enabled {
			continue
		}

		apiKey := pc.APIKey
		if apiKey != "" {
			if keys == nil {
				var err error
				keys, err = llm.NewKeySource(ctx, cfg.LLM.Region, secretCacheTTL)
				if err != nil {
					return nil, err
				}
			}
			resolved, err := keys.Resolve(ctx, apiKey)
			if err != nil {
				return nil, err
			}
			apiKey = resolved
		}

		provider, err := buildProvider(ctx, pc, apiKey)
		if err != nil {
			return nil, err
		}

		r.Register(llm.Descriptor{
			Provider:            provider,
			Priority:            pc.Priority,
			Affinity:            llm.Complexity(pc.Affinity),
			CostCentsPerRequest: pc.CostCents,
		})
		log.Printf("Registered LLM provider %s (type=%s affinity=%s priority=%d)",
			provider.Name(), pc.Type, pc.Affinity, pc.Priority)
	}

	return r, nil
}

func buildProvider(ctx context.Context, pc config.ProviderConfig, apiKey string) (llm.Provider, error) {
	switch pc.Type {
	case "anthropic":
		return anthropic.NewProvider(anthropic.Config{
			Name:   pc.Name,
			APIKey: apiKey,
			Model:  pc.Model,
		})
	case "openai":
		return openai.NewProvider(openai.Config{
			Name:   pc.Name,
			APIKey: apiKey,
			Model:  pc.Model,
		})
	case "internal":
		// Self-hosted OpenAI-compatible endpoint (vLLM, Ollama, etc).
		if apiKey == "" {
			apiKey = "internal"
		}
		return openai.NewProvider(openai.Config{
			Name:    pc.Name,
			APIKey:  apiKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		})
	case "bedrock":
		return bedrock.NewProvider(ctx, bedrock.Config{
			Name:   pc.Name,
			Region: pc.Region,
			Model:  pc.Model,
		})
	default:
		return nil, fmt.Errorf("unknown provider type '%s'", pc.Type)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
