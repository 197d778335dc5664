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

import "strings"

// complexLengthThreshold is the prompt length (in characters) above which
// a prompt is classified complex regardless of content.
const complexLengthThreshold = 400

// complexityKeywords mark prompts that imply research, current events, or
// multi-step reasoning. Matched case-insensitively on word content.
var complexityKeywords = []string{
	"analyze",
	"analysis",
	"compare",
	"research",
	"investigate",
	"latest",
	"current",
	"recent",
	"news",
	"today",
	"step by step",
	"step-by-step",
	"explain why",
	"walk me through",
	"trade-off",
	"tradeoff",
	"pros and cons",
	"strategy",
	"forecast",
	"plan",
}

// Classify buckets a prompt into simple or complex using a deterministic
// heuristic: length plus keywords implying research or multi-step
// reasoning. The same prompt always classifies the same way.
func Classify(prompt string) Complexity {
	if len(prompt) > complexLengthThreshold {
		return ComplexityComplex
	}

	lower := strings.ToLower(prompt)
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			return ComplexityComplex
		}
	}
	return ComplexitySimple
}

// TokenAllocation computes the maximum-output-size budget for a request.
// An explicit caller-supplied override wins; otherwise the complexity
// class decides.
func TokenAllocation(c Complexity, override int) int {
	if override > 0 {
		return override
	}
	if c == ComplexityComplex {
		return ComplexTokenAllocation
	}
	return SimpleTokenAllocation
}
