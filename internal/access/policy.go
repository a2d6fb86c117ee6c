// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package access decides which roles may see which document chunks.
//
// The policy is pure and is evaluated once per chunk at index-build time;
// the resulting role set is cached on the vector index entry so query-time
// filtering is a containment check, not a policy re-evaluation.
package access

import (
	"strings"

	"github.com/docsentry-dev/docsentry/internal/config"
)

// Policy maps departments to the roles permitted to view their chunks.
type Policy struct {
	roles      []string // normalized, original order preserved
	roleSet    map[string]struct{}
	topRole    string
	generalDep string
}

// NewPolicy builds a Policy from the access configuration. Role names are
// normalized to lower case once here; every comparison afterwards is exact.
func NewPolicy(cfg config.AccessConfig) *Policy {
	roles := make([]string, 0, len(cfg.Roles))
	roleSet := make(map[string]struct{}, len(cfg.Roles))
	for _, r := range cfg.Roles {
		n := normalize(r)
		if n == "" {
			continue
		}
		if _, dup := roleSet[n]; dup {
			continue
		}
		roleSet[n] = struct{}{}
		roles = append(roles, n)
	}

	return &Policy{
		roles:      roles,
		roleSet:    roleSet,
		topRole:    normalize(cfg.TopRole),
		generalDep: normalize(cfg.GeneralDepartment),
	}
}

// KnownRoles returns the enumerated role set in configuration order.
func (p *Policy) KnownRoles() []string {
	out := make([]string, len(p.roles))
	copy(out, p.roles)
	return out
}

// TopRole returns the role permitted to view every department's chunks.
func (p *Policy) TopRole() string {
	return p.topRole
}

// IsKnownRole reports whether role is in the enumerated known set.
// Unknown roles never match anything, including general chunks.
func (p *Policy) IsKnownRole(role string) bool {
	_, ok := p.roleSet[normalize(role)]
	return ok
}

// AccessibleRoles returns the set of roles permitted to view a chunk with
// the given department label:
//
//   - the general department is visible to every known role;
//   - an enumerated department is visible to its own role and the top role;
//   - an unrecognized department is visible to the top role only (fail
//     closed, never open).
//
// The result is always non-empty as long as a top role is configured.
func (p *Policy) AccessibleRoles(department string) []string {
	dep := normalize(department)

	if dep == p.generalDep {
		return p.KnownRoles()
	}

	if _, known := p.roleSet[dep]; known && dep != p.topRole {
		return []string{dep, p.topRole}
	}

	return []string{p.topRole}
}

// RoleMatches reports whether requesterRole is contained in accessibleRoles.
// The check is case-insensitive exact containment; it does not consult the
// policy, so unknown roles simply never appear in any accessible set.
func RoleMatches(requesterRole string, accessibleRoles []string) bool {
	want := normalize(requesterRole)
	if want == "" {
		return false
	}
	for _, r := range accessibleRoles {
		if normalize(r) == want {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
