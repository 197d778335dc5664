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
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsAPI is the subset of the Secrets Manager client the key source
// uses, abstracted for testing.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// KeySource resolves provider API keys. Keys referenced by an
// "arn:aws:secretsmanager:" prefix are fetched from AWS Secrets Manager
// and cached with a TTL; anything else is returned verbatim (typically an
// env-sourced key).
type KeySource struct {
	client SecretsAPI
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]keyCacheEntry
}

type keyCacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewKeySource creates a key source backed by AWS Secrets Manager.
func NewKeySource(ctx context.Context, region string, ttl time.Duration) (*KeySource, error) {
	cfgOpts := []func(*config.LoadOptions) error{}
	if region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewKeySourceFromClient(secretsmanager.NewFromConfig(awsCfg), ttl), nil
}

// NewKeySourceFromClient wraps an existing client (used by tests).
func NewKeySourceFromClient(client SecretsAPI, ttl time.Duration) *KeySource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &KeySource{
		client: client,
		ttl:    ttl,
		cache:  make(map[string]keyCacheEntry),
	}
}

// Resolve returns the API key for ref. A Secrets Manager ARN is fetched
// (once per TTL window); the secret value may be either a bare string or
// a JSON object with an "api_key" field. A "env:" prefix reads the named
// environment variable. Any other value is returned as-is.
func (s *KeySource) Resolve(ctx context.Context, ref string) (string, error) {
	if name, ok := strings.CutPrefix(ref, "env:"); ok {
		value := os.Getenv(name)
		if value == "" {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return value, nil
	}

	if !strings.HasPrefix(ref, "arn:aws:secretsmanager:") {
		return ref, nil
	}

	s.mu.RLock()
	entry, found := s.cache[ref]
	s.mu.RUnlock()
	if found && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch secret: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret has no string value")
	}

	value := *out.SecretString
	var asJSON map[string]string
	if err := json.Unmarshal([]byte(value), &asJSON); err == nil {
		if key, ok := asJSON["api_key"]; ok {
			value = key
		}
	}

	s.mu.Lock()
	s.cache[ref] = keyCacheEntry{value: value, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return value, nil
}
