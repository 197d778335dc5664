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

// Package gateway is the HTTP edge of the XynergyOS platform. It
// authenticates callers, enforces tenant scope and permissions, and
// routes requests to backend services and AI providers through the
// cache and circuit breaker layers.
//
// Enforcement order is fixed: authentication, then tenant resolution and
// access, then permission checks, then routing. A request denied at any
// stage never reaches a backend.
package gateway
