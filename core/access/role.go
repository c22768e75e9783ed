package access

import (
	"strings"

	"github.com/trezcool/masomo-curriculum/core"
)

// Role is an actor category. Only the base roles own policy entries in the built-in table;
// the remaining roles are aliases resolved by ResolveRole.
type Role string

// Base roles
const (
	RoleAdministrator Role = "administrator"
	RoleFaculty       Role = "faculty"
	RoleStudent       Role = "student"
	RoleParent        Role = "parent"
)

// Aliases
const (
	RoleSuperAdministrator Role = "super-administrator"
	RoleInstitutionHead    Role = "institution-head"
	RolePrincipal          Role = "principal"
	RoleHeadOfDepartment   Role = "head-of-department"
	RoleStaff              Role = "staff"
)

var (
	BaseRoles  = []Role{RoleAdministrator, RoleFaculty, RoleStudent, RoleParent}
	AliasRoles = []Role{RoleSuperAdministrator, RoleInstitutionHead, RolePrincipal, RoleHeadOfDepartment, RoleStaff}

	roleAliases = map[Role]Role{
		RoleSuperAdministrator: RoleAdministrator,
		RoleInstitutionHead:    RoleAdministrator,
		RolePrincipal:          RoleAdministrator,
		RoleHeadOfDepartment:   RoleFaculty,
		RoleStaff:              RoleFaculty,
	}
)

// ParseRole normalises a role string: trimmed, lowered, "_" and " " become "-".
func ParseRole(s string) Role {
	s = core.CleanString(s, true /* lower */)
	return Role(strings.NewReplacer("_", "-", " ", "-").Replace(s))
}

// ResolveRole maps an alias to its base role. Any other role is returned unchanged.
func ResolveRole(role Role) Role {
	if base, ok := roleAliases[role]; ok {
		return base
	}
	return role
}

// IsAlias reports whether role resolves to a different base role.
func IsAlias(role Role) bool {
	_, ok := roleAliases[role]
	return ok
}

// IsKnown reports whether role is a base role or an alias.
func IsKnown(role Role) bool {
	for _, r := range BaseRoles {
		if r == role {
			return true
		}
	}
	return IsAlias(role)
}

func (r Role) String() string { return string(r) }
