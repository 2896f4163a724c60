package users

import (
	"time"

	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
)

// User is a login principal record.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         rbac.Role
	FullName     string
	Email        string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal projects the user onto the identity carried by a session.
func (u User) Principal() *rbac.Principal {
	return &rbac.Principal{ID: u.ID, Username: u.Username, DisplayName: u.FullName, Role: u.Role}
}

// CreateInput carries a new account request.
type CreateInput struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"required,min=6,maxbytes=72"`
	FullName string `form:"full_name" validate:"max=200"`
	Email    string `form:"email" validate:"required,email,max=150"`
	Role     string `form:"role" validate:"required,oneof=admin hr manager employee"`
}

// UpdateInput carries an account edit. An empty Password keeps the stored hash.
type UpdateInput struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"omitempty,min=6,maxbytes=72"`
	FullName string `form:"full_name" validate:"max=200"`
	Email    string `form:"email" validate:"required,email,max=150"`
	Role     string `form:"role" validate:"required,oneof=admin hr manager employee"`
}

// Uniqueness failures surfaced to the form.
var (
	ErrUsernameTaken = shared.Conflict("Username already exists! Please choose a different username.")
	ErrEmailTaken    = shared.Conflict("Email already exists! Please choose a different email.")
	ErrUserNotFound  = shared.NotFound("The requested user account was not found!")
)
