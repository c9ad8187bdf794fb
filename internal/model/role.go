package model

import "strings"

// Role is the closed set of actor kinds carried in access tokens.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleInstructor Role = "INSTRUCTOR"
	RoleGuardian   Role = "GUARDIAN"
	RoleLearner    Role = "LEARNER"
)

// ParseRole normalizes a role string. Unknown values map to the empty Role,
// which every permission check treats as "any other role".
func ParseRole(s string) Role {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleInstructor, RoleGuardian, RoleLearner:
		return r
	default:
		return ""
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return ParseRole(string(r)) != ""
}
