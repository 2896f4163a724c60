package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffhub/staffhub/internal/shared"
)

func principal(id int64, role Role) *Principal {
	return &Principal{ID: id, Username: string(role), Role: role}
}

func TestRequirePermissionChecksAuthenticationFirst(t *testing.T) {
	err := RequirePermission(nil, PermRead)
	assert.ErrorIs(t, err, shared.ErrAuthenticationRequired)
	assert.NotErrorIs(t, err, shared.ErrForbidden)

	assert.NoError(t, RequirePermission(principal(1, RoleEmployee), PermRead))
	for _, perm := range []Permission{PermCreate, PermUpdate, PermDelete} {
		assert.ErrorIs(t, RequirePermission(principal(1, RoleEmployee), perm), shared.ErrForbidden)
	}
}

func TestAuthorizeCreateAccount(t *testing.T) {
	hr := principal(2, RoleHR)
	assert.NoError(t, AuthorizeCreateAccount(hr, RoleManager))
	assert.NoError(t, AuthorizeCreateAccount(hr, RoleHR))

	err := AuthorizeCreateAccount(hr, RoleAdmin)
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, "Only Admins can create Administrator accounts!", shared.UserSafeMessage(err))

	assert.NoError(t, AuthorizeCreateAccount(principal(1, RoleAdmin), RoleAdmin))
	assert.ErrorIs(t, AuthorizeCreateAccount(principal(3, RoleManager), RoleEmployee), shared.ErrForbidden)
	assert.ErrorIs(t, AuthorizeCreateAccount(nil, RoleEmployee), shared.ErrAuthenticationRequired)
}

func TestAuthorizeEditAccount(t *testing.T) {
	hr := principal(2, RoleHR)

	applyRole, err := AuthorizeEditAccount(hr, RoleManager, RoleEmployee)
	require.NoError(t, err)
	assert.False(t, applyRole, "HR role changes are ignored")

	_, err = AuthorizeEditAccount(hr, RoleAdmin, RoleAdmin)
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, "Only Admins can edit Administrator accounts!", shared.UserSafeMessage(err))

	_, err = AuthorizeEditAccount(hr, RoleManager, RoleAdmin)
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, "Only Admins can assign Administrator role!", shared.UserSafeMessage(err))

	applyRole, err = AuthorizeEditAccount(principal(1, RoleAdmin), RoleAdmin, RoleHR)
	require.NoError(t, err)
	assert.True(t, applyRole)

	_, err = AuthorizeEditAccount(principal(4, RoleEmployee), RoleEmployee, RoleEmployee)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAuthorizeDeleteAccount(t *testing.T) {
	hr := principal(2, RoleHR)
	admin := principal(1, RoleAdmin)

	assert.NoError(t, AuthorizeDeleteAccount(hr, 3, RoleManager))
	assert.NoError(t, AuthorizeDeleteAccount(admin, 9, RoleAdmin))

	err := AuthorizeDeleteAccount(hr, 1, RoleAdmin)
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, "Only Admins can delete Administrator accounts!", shared.UserSafeMessage(err))

	assert.ErrorIs(t, AuthorizeDeleteAccount(principal(3, RoleManager), 4, RoleEmployee), shared.ErrForbidden)
}

func TestDeleteSelfAlwaysDenied(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleHR} {
		err := AuthorizeDeleteAccount(principal(7, role), 7, role)
		require.ErrorIs(t, err, shared.ErrConflict, role)
		assert.Equal(t, "You cannot delete your own account!", shared.UserSafeMessage(err))
	}
	for _, role := range []Role{RoleManager, RoleEmployee} {
		assert.Error(t, AuthorizeDeleteAccount(principal(7, role), 7, role))
	}
}
