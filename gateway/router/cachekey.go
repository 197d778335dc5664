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

package router

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
)

// keyMaterial is the canonical request shape hashed into a cache key.
// encoding/json serializes map keys in sorted order, so two requests that
// differ only in header ordering produce identical material.
type keyMaterial struct {
	Service  string            `json:"service"`
	Endpoint string            `json:"endpoint"`
	Method   string            `json:"method"`
	Headers  map[string]string `json:"headers,omitempty"`
	BodyHash string            `json:"body_hash,omitempty"`
}

// correlationHeaders differ on every request and carry no routing
// semantics; including them would give every call a unique key.
var correlationHeaders = map[string]bool{
	"X-Request-Id":     true,
	"X-Correlation-Id": true,
	"X-Amzn-Trace-Id":  true,
}

// cacheKey derives a stable key from the structural content of a routed
// call. Header names are canonicalized so "x-tenant-id" and "X-Tenant-Id"
// hash identically; per-request correlation headers are excluded.
func cacheKey(serviceName, endpoint string, opts CallOptions) string {
	material := keyMaterial{
		Service:  serviceName,
		Endpoint: endpoint,
		Method:   strings.ToUpper(opts.Method),
	}

	if len(opts.Headers) > 0 {
		material.Headers = make(map[string]string, len(opts.Headers))
		for k, v := range opts.Headers {
			canonical := http.CanonicalHeaderKey(k)
			if correlationHeaders[canonical] {
				continue
			}
			material.Headers[canonical] = v
		}
	}

	if len(opts.Body) > 0 {
		bodySum := sha256.Sum256(opts.Body)
		material.BodyHash = hex.EncodeToString(bodySum[:])
	}

	encoded, _ := json.Marshal(material)
	sum := sha256.Sum256(encoded)
	return "svc:" + serviceName + ":" + hex.EncodeToString(sum[:])
}
