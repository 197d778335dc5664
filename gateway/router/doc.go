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

// Package router routes gateway requests to backend services, composing
// the response cache and per-service circuit breakers: cache hits skip
// the breaker and the network entirely, misses go through the breaker
// with a bounded timeout, and successful responses are cached under a
// per-service tag for grouped invalidation.
package router
