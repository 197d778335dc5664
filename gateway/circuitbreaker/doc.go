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

/*
Package circuitbreaker implements the per-target circuit breaker protecting
outbound calls from the XynergyOS gateway.

Each routing target (backend service name or AI provider id) owns one breaker
with three states:

  - closed: calls pass through; consecutive failures are counted
  - open: calls fail fast without touching the target until the recovery
    timeout elapses
  - half_open: exactly one trial call is allowed through; concurrent callers
    during the trial fail fast as if the circuit were still open

A successful trial closes the circuit and resets the failure counter; a failed
trial reopens it and restarts the recovery timer. Every guarded call carries a
hard deadline; exceeding it counts as a failure.

Breaker state is process-local. In a horizontally scaled deployment each
instance converges independently; no distributed coordination is attempted.
*/
package circuitbreaker
