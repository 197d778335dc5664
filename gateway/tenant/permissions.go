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

package tenant

import "strings"

// MatchPermission reports whether a held grant satisfies a required
// permission. Grants are dot-namespaced strings, e.g. "crm.contacts.read".
// Three forms match:
//
//	"*"          matches everything
//	exact string matches itself
//	"crm.*"      matches any permission under the "crm." namespace
//
// A wildcard grant "crm.*" does NOT match the bare permission "crm".
func MatchPermission(grant, required string) bool {
	if grant == "*" {
		return true
	}
	if grant == required {
		return true
	}
	if prefix, ok := strings.CutSuffix(grant, ".*"); ok {
		return strings.HasPrefix(required, prefix+".")
	}
	return false
}

// anyGrantMatches reports whether any held grant satisfies required.
func anyGrantMatches(grants []string, required string) bool {
	for _, grant := range grants {
		if MatchPermission(grant, required) {
			return true
		}
	}
	return false
}

// missingPermissions returns the required permissions not satisfied by
// the held grants, in input order.
func missingPermissions(grants, required []string) []string {
	var missing []string
	for _, r := range required {
		if !anyGrantMatches(grants, r) {
			missing = append(missing, r)
		}
	}
	return missing
}
