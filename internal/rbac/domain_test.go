package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermissionMatchesRoleTable(t *testing.T) {
	want := map[Role]map[Permission]bool{
		RoleAdmin:    {PermCreate: true, PermRead: true, PermUpdate: true, PermDelete: true, PermManageUsers: true},
		RoleHR:       {PermCreate: true, PermRead: true, PermUpdate: true, PermDelete: true},
		RoleManager:  {PermRead: true, PermUpdate: true},
		RoleEmployee: {PermRead: true},
	}
	all := []Permission{PermCreate, PermRead, PermUpdate, PermDelete, PermManageUsers}
	for _, role := range Roles() {
		for _, perm := range all {
			assert.Equal(t, want[role][perm], HasPermission(role, perm), "%s/%s", role, perm)
		}
	}
}

func TestUnknownRoleFailsClosed(t *testing.T) {
	for _, role := range []Role{"", "root", "ADMIN", "superuser"} {
		assert.Empty(t, Permissions(role))
		assert.False(t, HasPermission(role, PermRead))
		assert.False(t, CanManageAccounts(role))
		assert.False(t, CanEditEmployees(role))
		assert.False(t, role.Valid())
	}
	assert.False(t, HasPermission(RoleAdmin, Permission("export")))
}

func TestCapabilityPredicates(t *testing.T) {
	type caps struct{ accounts, users, create, edit, del, salaries bool }
	want := map[Role]caps{
		RoleAdmin:    {true, true, true, true, true, true},
		RoleHR:       {true, false, true, true, true, true},
		RoleManager:  {false, false, false, true, false, false},
		RoleEmployee: {false, false, false, false, false, false},
	}
	for role, c := range want {
		assert.Equal(t, c.accounts, CanManageAccounts(role), "accounts %s", role)
		assert.Equal(t, c.users, CanManageUsers(role), "users %s", role)
		assert.Equal(t, c.create, CanCreateEmployees(role), "create %s", role)
		assert.Equal(t, c.edit, CanEditEmployees(role), "edit %s", role)
		assert.Equal(t, c.del, CanDeleteEmployees(role), "delete %s", role)
		assert.Equal(t, c.salaries, CanViewSalaries(role), "salaries %s", role)
	}
}

func TestPermissionsReturnsCopy(t *testing.T) {
	perms := Permissions(RoleEmployee)
	perms[0] = PermDelete
	assert.False(t, HasPermission(RoleEmployee, PermDelete))
}

func TestParseRoleAndLabel(t *testing.T) {
	role, ok := ParseRole("hr")
	assert.True(t, ok)
	assert.Equal(t, RoleHR, role)
	assert.Equal(t, "HR", role.Label())

	_, ok = ParseRole("Admin")
	assert.False(t, ok)
}
