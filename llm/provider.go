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

import "context"

// Provider is the interface every LLM backend implements.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the unique identifier for this provider instance,
	// used for routing, breaker targets, logging, and metrics.
	Name() string

	// Complete generates a completion for the given request. The context
	// carries cancellation and the router's per-call deadline.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Descriptor registers a provider with the router.
type Descriptor struct {
	// Provider is the backend implementation.
	Provider Provider

	// Priority orders fallback within an affinity group; lower tries
	// first.
	Priority int

	// Affinity is the complexity class this provider should handle
	// preferentially.
	Affinity Complexity

	// CostCentsPerRequest is the flat accounting cost of one request,
	// in integer cents.
	CostCentsPerRequest int
}
