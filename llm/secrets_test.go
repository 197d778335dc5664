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
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSecretsClient struct {
	calls  int
	secret string
}

func (m *mockSecretsClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(m.secret)}, nil
}

const testARN = "arn:aws:secretsmanager:us-east-1:123456789012:secret:llm-keys"

func TestResolvePlainValue(t *testing.T) {
	s := NewKeySourceFromClient(&mockSecretsClient{}, time.Minute)

	key, err := s.Resolve(context.Background(), "sk-plain-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-plain-key", key)
}

func TestResolveEnvReference(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-from-env")
	s := NewKeySourceFromClient(&mockSecretsClient{}, time.Minute)

	key, err := s.Resolve(context.Background(), "env:TEST_LLM_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", key)

	_, err = s.Resolve(context.Background(), "env:TEST_LLM_KEY_MISSING")
	require.Error(t, err)
}

func TestResolveSecretsManagerARN(t *testing.T) {
	mock := &mockSecretsClient{secret: "sk-from-secrets"}
	s := NewKeySourceFromClient(mock, time.Minute)

	key, err := s.Resolve(context.Background(), testARN)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-secrets", key)

	// Second resolve within the TTL is served from cache.
	_, err = s.Resolve(context.Background(), testARN)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.calls)
}

func TestResolveJSONSecret(t *testing.T) {
	mock := &mockSecretsClient{secret: `{"api_key": "sk-nested", "other": "x"}`}
	s := NewKeySourceFromClient(mock, time.Minute)

	key, err := s.Resolve(context.Background(), testARN)
	require.NoError(t, err)
	assert.Equal(t, "sk-nested", key)
}
