package domain

// UserRole enumerates the three account roles.
type UserRole string

const (
	RoleResident   UserRole = "RESIDENT"
	RoleTechnician UserRole = "TECHNICIAN"
	RoleAdmin      UserRole = "ADMIN"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleResident, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// User is an account holder: a resident, a technician, or an admin.
// Secret holds the bcrypt hash of the credential and is populated only by
// the local store; the remote backend keeps credentials in its auth provider.
type User struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Secret string   `json:"secret,omitempty"`
	Role   UserRole `json:"role"`
	Avatar string   `json:"avatar,omitempty"`
}
