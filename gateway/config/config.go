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

// Package config loads the gateway's YAML configuration. Values support
// environment expansion with ${VAR} and ${VAR:-default} syntax, so one
// config file serves every deployment environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root gateway configuration.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	DefaultTenant string `yaml:"default_tenant"`
	JWTSecret     string `yaml:"jwt_secret"`
	RedisURL      string `yaml:"redis_url,omitempty"`
	PostgresDSN   string `yaml:"postgres_dsn,omitempty"`

	Audit    AuditConfig      `yaml:"audit"`
	Cache    CacheConfig      `yaml:"cache"`
	Breaker  BreakerConfig    `yaml:"breaker"`
	CORS     CORSConfig       `yaml:"cors"`
	Services []ServiceConfig  `yaml:"services"`
	LLM      LLMConfig        `yaml:"llm"`
}

// AuditConfig shapes the access audit queue.
type AuditConfig struct {
	QueueSize    int    `yaml:"queue_size"`
	Workers      int    `yaml:"workers"`
	FallbackPath string `yaml:"fallback_path"`
}

// CacheConfig shapes the response cache.
type CacheConfig struct {
	DefaultTTLSeconds int `yaml:"default_ttl_seconds"`
}

// BreakerConfig is the default circuit breaker tuning, overridable per
// service.
type BreakerConfig struct {
	FailureThreshold  int   `yaml:"failure_threshold"`
	RecoveryTimeoutMs int64 `yaml:"recovery_timeout_ms"`
	CallTimeoutMs     int64 `yaml:"call_timeout_ms"`
}

// CORSConfig lists allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ServiceConfig registers one routable backend.
type ServiceConfig struct {
	Name            string `yaml:"name"`
	BaseURL         string `yaml:"base_url"`
	TimeoutMs       int64  `yaml:"timeout_ms,omitempty"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds,omitempty"`
}

// LLMConfig shapes the AI provider router.
type LLMConfig struct {
	Region             string           `yaml:"region,omitempty"`
	ResponseTTLSeconds int              `yaml:"response_ttl_seconds,omitempty"`
	Providers          []ProviderConfig `yaml:"providers"`
}

// ProviderConfig registers one AI provider.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"` // anthropic, openai, bedrock, internal
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"` // internal providers only
	Model    string `yaml:"model,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Priority int    `yaml:"priority"`
	Affinity string `yaml:"affinity"` // simple or complex
	// CostCents is the flat per-request accounting cost in cents.
	CostCents int  `yaml:"cost_cents,omitempty"`
	Enabled   bool `yaml:"enabled"`
}

var envVarRegex = regexp.MustCompile(`\$\{[^}]+\}|\$[A-Za-z_][A-Za-z0-9_]*`)

// Load reads, expands, parses, and validates the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses config bytes after environment expansion.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DefaultTenant == "" {
		c.DefaultTenant = "xynergy"
	}
	if c.Audit.QueueSize == 0 {
		c.Audit.QueueSize = 1000
	}
	if c.Audit.Workers == 0 {
		c.Audit.Workers = 2
	}
	if c.Audit.FallbackPath == "" {
		c.Audit.FallbackPath = "/var/log/xynergy/audit_fallback.jsonl"
	}
	if c.Cache.DefaultTTLSeconds == 0 {
		c.Cache.DefaultTTLSeconds = 300
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.RecoveryTimeoutMs == 0 {
		c.Breaker.RecoveryTimeoutMs = 30_000
	}
	if c.Breaker.CallTimeoutMs == 0 {
		c.Breaker.CallTimeoutMs = 30_000
	}
	if c.LLM.ResponseTTLSeconds == 0 {
		c.LLM.ResponseTTLSeconds = 300
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for _, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("service with empty name")
		}
		if svc.BaseURL == "" {
			return fmt.Errorf("service %s has no base_url", svc.Name)
		}
		if seen[svc.Name] {
			return fmt.Errorf("duplicate service name %s", svc.Name)
		}
		seen[svc.Name] = true
	}

	for _, p := range c.LLM.Providers {
		if !p.Enabled {
			continue
		}
		switch p.Type {
		case "anthropic", "openai", "bedrock":
		case "internal":
			// Self-hosted OpenAI-compatible endpoint; needs an address.
			if p.BaseURL == "" {
				return fmt.Errorf("internal provider %s has no base_url", p.Name)
			}
		default:
			return fmt.Errorf("provider %s has unknown type %q", p.Name, p.Type)
		}
		switch p.Affinity {
		case "simple", "complex":
		default:
			return fmt.Errorf("provider %s has invalid affinity %q (want simple or complex)", p.Name, p.Affinity)
		}
	}
	return nil
}

// DefaultCacheTTL returns the cache TTL as a duration.
func (c *Config) DefaultCacheTTL() time.Duration {
	return time.Duration(c.Cache.DefaultTTLSeconds) * time.Second
}

// ServiceCacheTTL returns the effective cache TTL for one service.
func (c *Config) ServiceCacheTTL(svc ServiceConfig) time.Duration {
	if svc.CacheTTLSeconds > 0 {
		return time.Duration(svc.CacheTTLSeconds) * time.Second
	}
	return c.DefaultCacheTTL()
}

// expandEnvVars substitutes $VAR and ${VAR:-default} references.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}
