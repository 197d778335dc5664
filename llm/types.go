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

import "time"

// CompletionRequest is the unified request shape passed to every provider.
type CompletionRequest struct {
	// Prompt is the user's input text.
	Prompt string `json:"prompt"`

	// SystemPrompt optionally sets behavior/context. Not all providers
	// support it.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the response size. If 0, the router computes an
	// allocation from the prompt's complexity class.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. Nil means provider default.
	Temperature *float64 `json:"temperature,omitempty"`

	// Model overrides the provider's default model.
	Model string `json:"model,omitempty"`

	// StopSequences are strings that stop generation.
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// CompletionResponse is the unified provider result.
type CompletionResponse struct {
	// Content is the generated text.
	Content string `json:"content"`

	// Model is the model that actually served the request.
	Model string `json:"model"`

	// Provider is the provider instance that produced the response.
	// Filled in by the router.
	Provider string `json:"provider,omitempty"`

	// Usage contains token counts for billing and monitoring.
	Usage UsageStats `json:"usage"`

	// Latency is the provider-side generation time.
	Latency time.Duration `json:"latency"`

	// FinishReason indicates why generation stopped.
	FinishReason string `json:"finish_reason,omitempty"`

	// Cached is true when the response was served from the prompt cache.
	Cached bool `json:"cached,omitempty"`
}

// UsageStats tracks token usage.
type UsageStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Complexity is the deterministic classification of a prompt.
type Complexity string

const (
	// ComplexitySimple covers short, single-step prompts.
	ComplexitySimple Complexity = "simple"

	// ComplexityComplex covers long prompts and prompts that imply
	// research, current events, or multi-step reasoning.
	ComplexityComplex Complexity = "complex"
)

// Token allocations per complexity class. An explicit MaxTokens on the
// request always wins.
const (
	SimpleTokenAllocation  = 512
	ComplexTokenAllocation = 2048
)
