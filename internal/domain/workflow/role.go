package workflow

// Role is an organizational role. Every approval step is owned by exactly one role.
type Role string

const (
	RoleEmployee         Role = "employee"
	RoleHOD              Role = "hod"
	RoleDean             Role = "dean"
	RoleCampusAdmin      Role = "campus_admin"
	RoleFinancialManager Role = "financial_manager"
	RolePrincipal        Role = "principal"
	RoleViceChancellor   Role = "vice_chancellor"
	RoleHRManager        Role = "hr_manager"
)

var validRoles = map[Role]bool{
	RoleEmployee:         true,
	RoleHOD:              true,
	RoleDean:             true,
	RoleCampusAdmin:      true,
	RoleFinancialManager: true,
	RolePrincipal:        true,
	RoleViceChancellor:   true,
	RoleHRManager:        true,
}

// IsValid returns true if the role is a known organizational role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}
