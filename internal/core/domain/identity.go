package domain

import "strings"

// RoleAdmin grants access to global maintenance operations.
const RoleAdmin = "admin"

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the principal carries the role, ignoring case.
func (p Principal) HasRole(role string) bool {
	for _, candidate := range p.Roles {
		if strings.EqualFold(strings.TrimSpace(candidate), role) {
			return true
		}
	}
	return false
}
