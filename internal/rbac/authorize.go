package rbac

import "github.com/staffhub/staffhub/internal/shared"

const (
	msgAdminCreate = "Only Admins can create Administrator accounts!"
	msgAdminEdit   = "Only Admins can edit Administrator accounts!"
	msgAdminAssign = "Only Admins can assign Administrator role!"
	msgAdminDelete = "Only Admins can delete Administrator accounts!"
	msgDeleteSelf  = "You cannot delete your own account!"
)

// RequirePermission runs the two-stage check for a flat permission:
// authentication first, then the role table.
func RequirePermission(p *Principal, perm Permission) error {
	if p == nil {
		return shared.ErrAuthenticationRequired
	}
	if !HasPermission(p.Role, perm) {
		return shared.ErrForbidden
	}
	return nil
}

// RequireCapability is RequirePermission for a derived predicate.
func RequireCapability(p *Principal, allowed func(Role) bool) error {
	if p == nil {
		return shared.ErrAuthenticationRequired
	}
	if !allowed(p.Role) {
		return shared.ErrForbidden
	}
	return nil
}

// AuthorizeCreateAccount decides whether actor may create an account with the
// requested role.
func AuthorizeCreateAccount(actor *Principal, requested Role) error {
	if err := RequireCapability(actor, CanManageAccounts); err != nil {
		return err
	}
	if requested == RoleAdmin && !CanManageUsers(actor.Role) {
		return shared.Forbidden(msgAdminCreate)
	}
	return nil
}

// AuthorizeEditAccount decides whether actor may edit an account currently
// holding target, asking for requested. applyRole is false when the role field
// must be left untouched while other fields still update.
func AuthorizeEditAccount(actor *Principal, target, requested Role) (applyRole bool, err error) {
	if err := RequireCapability(actor, CanManageAccounts); err != nil {
		return false, err
	}
	if target == RoleAdmin && !CanManageUsers(actor.Role) {
		return false, shared.Forbidden(msgAdminEdit)
	}
	if requested == RoleAdmin && !CanManageUsers(actor.Role) {
		return false, shared.Forbidden(msgAdminAssign)
	}
	return CanManageUsers(actor.Role), nil
}

// AuthorizeViewAccount decides whether actor may open the edit form of an
// account holding target.
func AuthorizeViewAccount(actor *Principal, target Role) error {
	_, err := AuthorizeEditAccount(actor, target, "")
	return err
}

// AuthorizeDeleteAccount decides whether actor may delete the account
// targetID holding target. Deleting oneself is refused for every role.
func AuthorizeDeleteAccount(actor *Principal, targetID int64, target Role) error {
	if err := RequireCapability(actor, CanManageAccounts); err != nil {
		return err
	}
	if targetID == actor.ID {
		return shared.Conflict(msgDeleteSelf)
	}
	if target == RoleAdmin && !CanManageUsers(actor.Role) {
		return shared.Forbidden(msgAdminDelete)
	}
	return nil
}
