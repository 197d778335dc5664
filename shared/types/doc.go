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

// Package types defines cross-cutting types shared by the XynergyOS gateway
// components, most notably the gateway error taxonomy.
//
// Every failure surfaced to a caller is a *types.Error with a stable code,
// a human-readable message and a correlation id. Callers distinguish
// expected control-flow outcomes (circuit open, providers exhausted) from
// true faults via the code, never by matching message strings.
package types
