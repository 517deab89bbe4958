package model

import "strings"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleFormateur Role = "FORMATEUR"
	RoleApprenant Role = "APPRENANT"
)

// AllRoles lists every role in privilege order.
var AllRoles = []Role{RoleAdmin, RoleFormateur, RoleApprenant}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFormateur, RoleApprenant:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts the canonical upper-case names only, after trimming.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(raw))
	return role, role.Valid()
}

// RoleSet is an allow-list of roles. Declaration order is kept so that the
// "required" field of a 403 response echoes the configured list verbatim.
// An empty set means any authenticated role.
type RoleSet []Role

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, 0, len(roles))
	for _, role := range roles {
		if !set.Contains(role) {
			set = append(set, role)
		}
	}
	return set
}

func (s RoleSet) Empty() bool {
	return len(s) == 0
}

func (s RoleSet) Contains(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}
