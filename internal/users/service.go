package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/staffhub/staffhub/internal/auth/password"
	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id int64) error
}

// Service handles account management. Every operation authorizes the actor
// before it touches the store, and validates before it mutates.
type Service struct {
	repo   RepositoryPort
	hasher password.Hasher
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance. audit and logger may be nil.
func NewService(repo RepositoryPort, hasher password.Hasher, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, hasher: hasher, audit: audit, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context, actor *rbac.Principal) ([]User, error) {
	if err := rbac.RequireCapability(actor, rbac.CanManageAccounts); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// GetForEdit loads an account the actor is allowed to edit.
func (s *Service) GetForEdit(ctx context.Context, actor *rbac.Principal, id int64) (*User, error) {
	if err := rbac.RequireCapability(actor, rbac.CanManageAccounts); err != nil {
		return nil, err
	}
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.AuthorizeViewAccount(actor, target.Role); err != nil {
		return nil, err
	}
	return target, nil
}

// CreateUser adds a new account.
func (s *Service) CreateUser(ctx context.Context, actor *rbac.Principal, in CreateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	role := rbac.Role(in.Role)
	if err := rbac.AuthorizeCreateAccount(actor, role); err != nil {
		return User{}, err
	}
	if err := shared.ValidateStruct(in); err != nil {
		return User{}, err
	}
	if err := s.ensureUnique(ctx, 0, in.Username, in.Email); err != nil {
		return User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, err
	}
	created, err := s.repo.CreateUser(ctx, User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         role,
		FullName:     in.FullName,
		Email:        in.Email,
		IsActive:     true,
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, shared.AuditCreate, created.ID, map[string]any{"username": created.Username, "role": created.Role})
	return created, nil
}

// UpdateUser edits an account. passwordChanged reports whether a new
// password was stored. The role only changes when the actor may manage users.
func (s *Service) UpdateUser(ctx context.Context, actor *rbac.Principal, id int64, in UpdateInput) (updated User, passwordChanged bool, err error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Password = strings.TrimSpace(in.Password)

	if err := rbac.RequireCapability(actor, rbac.CanManageAccounts); err != nil {
		return User{}, false, err
	}
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, false, err
	}
	applyRole, err := rbac.AuthorizeEditAccount(actor, target.Role, rbac.Role(in.Role))
	if err != nil {
		return User{}, false, err
	}
	if err := shared.ValidateStruct(in); err != nil {
		return User{}, false, err
	}
	if err := s.ensureUnique(ctx, target.ID, in.Username, in.Email); err != nil {
		return User{}, false, err
	}

	next := *target
	next.Username = in.Username
	next.FullName = in.FullName
	next.Email = in.Email
	if applyRole {
		next.Role = rbac.Role(in.Role)
	}
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return User{}, false, err
		}
		next.PasswordHash = hash
		passwordChanged = true
	}
	if err := s.repo.UpdateUser(ctx, next); err != nil {
		return User{}, false, err
	}
	s.record(ctx, actor, shared.AuditUpdate, next.ID, map[string]any{
		"username":         next.Username,
		"role":             next.Role,
		"password_changed": passwordChanged,
	})
	return next, passwordChanged, nil
}

// DeleteUser removes an account and returns the removed record.
func (s *Service) DeleteUser(ctx context.Context, actor *rbac.Principal, id int64) (User, error) {
	if err := rbac.RequireCapability(actor, rbac.CanManageAccounts); err != nil {
		return User{}, err
	}
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := rbac.AuthorizeDeleteAccount(actor, target.ID, target.Role); err != nil {
		return User{}, err
	}
	if err := s.repo.DeleteUser(ctx, target.ID); err != nil {
		return User{}, err
	}
	s.record(ctx, actor, shared.AuditDelete, target.ID, map[string]any{"username": target.Username, "role": target.Role})
	return *target, nil
}

func (s *Service) ensureUnique(ctx context.Context, selfID int64, username, email string) error {
	existing, err := s.repo.FindByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != selfID:
		return ErrUsernameTaken
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return err
	}
	existing, err = s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return ErrEmailTaken
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor *rbac.Principal, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: action, Entity: "user", EntityID: id, Meta: meta}); err != nil {
		s.logger.Warn("audit user change", slog.String("action", action), slog.Int64("user_id", id), slog.Any("error", err))
	}
}

// Email uniqueness is case-insensitive; addresses are stored lower-cased.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
