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

// Package llm routes AI completion requests across pluggable providers.
//
// Prompts are classified into simple or complex with a deterministic
// heuristic; the classification drives both the provider fallback order
// (affinity first, then priority) and the output token allocation.
// Each provider sits behind its own circuit breaker, and successful
// completions are cached for exact-match prompt reuse.
package llm
