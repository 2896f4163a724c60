package rbac

import "context"

// Role is the single role held by a user account.
type Role string

// The closed set of roles.
const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Permission represents an atomic capability.
type Permission string

// The closed set of permissions.
const (
	PermCreate      Permission = "create"
	PermRead        Permission = "read"
	PermUpdate      Permission = "update"
	PermDelete      Permission = "delete"
	PermManageUsers Permission = "manage_users"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin:    {PermCreate, PermRead, PermUpdate, PermDelete, PermManageUsers},
	RoleHR:       {PermCreate, PermRead, PermUpdate, PermDelete},
	RoleManager:  {PermRead, PermUpdate},
	RoleEmployee: {PermRead},
}

var roleLabels = map[Role]string{
	RoleAdmin:    "Admin",
	RoleHR:       "HR",
	RoleManager:  "Manager",
	RoleEmployee: "Employee",
}

// Roles lists every role, highest privilege first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleHR, RoleManager, RoleEmployee}
}

// ParseRole converts stored or submitted text into a Role.
func ParseRole(s string) (Role, bool) {
	role := Role(s)
	return role, role.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Label returns the display name of the role.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

func (r Role) String() string {
	return string(r)
}

// Permissions returns a copy of the permission set for role. Unknown roles
// have none.
func Permissions(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// CanManageAccounts gates every account-management screen.
func CanManageAccounts(role Role) bool {
	return role == RoleAdmin || role == RoleHR
}

// CanManageUsers gates Admin-level identity: Admin targets and the Admin role itself.
func CanManageUsers(role Role) bool {
	return role == RoleAdmin
}

// CanCreateEmployees reports whether role may add directory records.
func CanCreateEmployees(role Role) bool {
	return role == RoleAdmin || role == RoleHR
}

// CanEditEmployees reports whether role may edit directory records.
func CanEditEmployees(role Role) bool {
	return role == RoleAdmin || role == RoleHR || role == RoleManager
}

// CanDeleteEmployees reports whether role may delete directory records.
func CanDeleteEmployees(role Role) bool {
	return role == RoleAdmin || role == RoleHR
}

// CanViewSalaries reports whether role may see salary figures.
func CanViewSalaries(role Role) bool {
	return role == RoleAdmin || role == RoleHR
}

// Principal describes the authenticated actor of a request.
type Principal struct {
	ID          int64
	Username    string
	DisplayName string
	Role        Role
}

// Can reports whether the principal's role grants perm.
func (p *Principal) Can(perm Permission) bool {
	return p != nil && HasPermission(p.Role, perm)
}

type principalContextKey struct{}

// ContextWithPrincipal binds the authenticated principal to ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the bound principal or nil when anonymous.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
