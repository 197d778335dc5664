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

// Package cache provides the gateway's tiered response cache: an
// in-process memory tier in front of an optional shared Redis tier,
// with TTL expiry and tag-based invalidation.
//
// The cache is strictly an optimization. When the Redis tier is
// unreachable the cache degrades to miss-and-recompute; callers never
// see a backing-store error.
package cache
