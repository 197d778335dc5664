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

// Package main is the entry point for the XynergyOS API gateway.
//
// The gateway is the platform's single request-routing core:
// - Authenticates callers and enforces tenant isolation
// - Routes requests to backend services behind circuit breakers
// - Routes AI completions across providers by complexity
// - Caches responses with tag-based invalidation
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	GATEWAY_CONFIG - Path to the YAML config file (default: gateway.yaml)
package main

import (
	"xynergyos/platform/gateway"
)

func main() {
	gateway.Run()
}
