// Copyright 2026 The Scriptora Authors
//
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

// Package role defines the ordered container access roles. Every role
// comparison in the gateway routes through this package; no other package
// encodes the ordering.
package role

// Role is a container access role. Roles form a total order
// Viewer < Writer < Owner, where a higher role is "less limiting".
type Role string

const (
	// Viewer may read container content.
	Viewer Role = "viewer"

	// Writer may read and modify container content.
	Writer Role = "writer"

	// Owner has full control, including membership management.
	Owner Role = "owner"

	// None marks the absence of a role. It is not a valid member role;
	// passing it to a role-changing operation revokes membership.
	None Role = ""
)

// ordinals places the valid roles on the privilege scale.
var ordinals = map[Role]int{
	Viewer: 1,
	Writer: 2,
	Owner:  3,
}

// Valid reports whether r is one of the member roles.
func (r Role) Valid() bool {
	_, ok := ordinals[r]
	return ok
}

// IsMoreLimiting reports whether a grants strictly less privilege than b.
// Both arguments must be valid roles; None is more limiting than everything.
func IsMoreLimiting(a, b Role) bool {
	return ordinals[a] < ordinals[b]
}

// LeastLimiting returns the highest-privilege role among candidates,
// skipping invalid entries. Returns None when no candidate is valid.
func LeastLimiting(candidates ...Role) Role {
	best := None
	for _, c := range candidates {
		if !c.Valid() {
			continue
		}
		if best == None || IsMoreLimiting(best, c) {
			best = c
		}
	}
	return best
}

// All lists the valid roles from most to least limiting.
func All() []Role {
	return []Role{Viewer, Writer, Owner}
}
