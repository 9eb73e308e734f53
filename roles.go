package auth

import "strings"

// Role is the authorization role attached to a profile.
type Role string

const (
	// RoleAdmin manages users and every console section
	RoleAdmin Role = "admin"
	// RoleManager oversees sales, returns and payments
	RoleManager Role = "manager"
	// RoleSales records customers and sales
	RoleSales Role = "sales"
	// RoleAccountant handles payments
	RoleAccountant Role = "accountant"
	// RoleViewer is read only and the default for new profiles
	RoleViewer Role = "viewer"
)

// DefaultRole is assigned to profiles created without an explicit role.
const DefaultRole = RoleViewer

var roleRank = map[Role]int{
	RoleViewer:     0,
	RoleSales:      1,
	RoleAccountant: 1,
	RoleManager:    2,
	RoleAdmin:      3,
}

// Roles lists the enumeration in descending privilege.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleSales, RoleAccountant, RoleViewer}
}

// ParseRole accepts any case and surrounding whitespace. An empty value
// resolves to DefaultRole, anything outside the enumeration is rejected.
func ParseRole(value string) (Role, error) {
	v := Role(strings.ToLower(strings.TrimSpace(value)))
	if v == "" {
		return DefaultRole, nil
	}
	if !v.IsValid() {
		return "", withMeta(ErrInvalidRole, map[string]any{"role": value})
	}
	return v, nil
}

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// IsAdmin reports whether r is the administrator role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// IsAtLeast checks if this role meets the minimum required level. Sales and
// accountant are peers: neither satisfies the other.
func (r Role) IsAtLeast(min Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	want, ok := roleRank[min]
	if !ok {
		return false
	}
	if have == want {
		return r == min || have != roleRank[RoleSales]
	}
	return have > want
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}
