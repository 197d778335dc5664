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

// Package tenant implements the gateway's multi-tenant access control:
// tenant resolution, tenant access enforcement, wildcard permission
// checks, and asynchronous audit logging of every decision.
//
// Grants are read from a GrantStore (PostgreSQL in production, in-memory
// for self-hosted mode); the enforcer only evaluates match logic and
// never mutates grants.
package tenant
