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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "xynergy", cfg.DefaultTenant)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, int64(30_000), cfg.Breaker.RecoveryTimeoutMs)
	assert.Equal(t, 5*time.Minute, cfg.DefaultCacheTTL())
	assert.Equal(t, 1000, cfg.Audit.QueueSize)
}

func TestParseFull(t *testing.T) {
	raw := `
listen_addr: ":9090"
default_tenant: acme
jwt_secret: topsecret
redis_url: redis://localhost:6379
cache:
  default_ttl_seconds: 60
breaker:
  failure_threshold: 3
  recovery_timeout_ms: 10000
services:
  - name: crm
    base_url: http://crm.internal:8000
    timeout_ms: 5000
    cache_ttl_seconds: 120
  - name: billing
    base_url: http://billing.internal:8000
llm:
  providers:
    - name: claude
      type: anthropic
      api_key: env:ANTHROPIC_API_KEY
      priority: 1
      affinity: complex
      cost_cents: 2
      enabled: true
    - name: gpt
      type: openai
      api_key: env:OPENAI_API_KEY
      priority: 1
      affinity: simple
      enabled: true
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	require.Len(t, cfg.Services, 2)
	assert.Equal(t, 2*time.Minute, cfg.ServiceCacheTTL(cfg.Services[0]))
	assert.Equal(t, time.Minute, cfg.ServiceCacheTTL(cfg.Services[1]), "falls back to cache default")
	require.Len(t, cfg.LLM.Providers, 2)
	assert.Equal(t, "complex", cfg.LLM.Providers[0].Affinity)
}

func TestParseEnvExpansion(t *testing.T) {
	t.Setenv("TEST_GATEWAY_SECRET", "from-env")

	cfg, err := Parse([]byte("jwt_secret: ${TEST_GATEWAY_SECRET}\nredis_url: ${TEST_GATEWAY_REDIS:-redis://fallback:6379}\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "redis://fallback:6379", cfg.RedisURL)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"service without base_url", "services:\n  - name: crm\n"},
		{"duplicate service", "services:\n  - name: crm\n    base_url: http://a\n  - name: crm\n    base_url: http://b\n"},
		{"unknown provider type", "llm:\n  providers:\n    - name: x\n      type: cohere\n      affinity: simple\n      enabled: true\n"},
		{"bad affinity", "llm:\n  providers:\n    - name: x\n      type: openai\n      affinity: medium\n      enabled: true\n"},
		{"internal provider without base_url", "llm:\n  providers:\n    - name: local\n      type: internal\n      affinity: simple\n      enabled: true\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestParseDisabledProviderSkipsValidation(t *testing.T) {
	_, err := Parse([]byte("llm:\n  providers:\n    - name: x\n      type: cohere\n      affinity: medium\n      enabled: false\n"))
	assert.NoError(t, err)
}
