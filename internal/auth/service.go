package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/users"
)

// UserLookup resolves credential records.
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (*users.User, error)
	FindByUsername(ctx context.Context, username string) (*users.User, error)
}

// Verifier checks passwords. Burn spends the cost of a comparison without a
// real hash.
type Verifier interface {
	Verify(hash, plain string) bool
	Burn(plain string)
}

// Service binds principals to sessions.
type Service struct {
	users    UserLookup
	repo     Repository
	verifier Verifier
	sessions *shared.SessionManager
	csrf     *shared.CSRFManager
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service. repo may be nil when login-session
// rows are not persisted.
func NewService(lookup UserLookup, repo Repository, verifier Verifier, sessions *shared.SessionManager, csrf *shared.CSRFManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    lookup,
		repo:     repo,
		verifier: verifier,
		sessions: sessions,
		csrf:     csrf,
		logger:   logger,
		now:      time.Now,
	}
}

// Login verifies credentials and binds the account to sess under a fresh
// session id. Every failure cause yields ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, sess *shared.Session, creds Credentials, client ClientInfo) (*rbac.Principal, error) {
	if sess == nil {
		return nil, errors.New("auth: login without session")
	}
	username := strings.TrimSpace(creds.Username)
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.verifier.Burn(creds.Password)
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}
	if !s.verifier.Verify(user.PasswordHash, creds.Password) || !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}

	if sess.User() != "" {
		s.removeRow(ctx, sess.ID)
	}
	s.sessions.Renew(sess)
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	s.csrf.Rotate(sess)

	if s.repo != nil {
		now := s.now()
		row := LoginSession{
			ID:        sess.ID,
			UserID:    user.ID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.sessions.TTL()),
			IP:        client.IP,
			UserAgent: client.UserAgent,
		}
		if err := s.repo.CreateSession(ctx, row); err != nil {
			s.logger.Warn("register session", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}
	return user.Principal(), nil
}

// Logout unbinds the principal from sess. Logging out an anonymous session
// is a no-op.
func (s *Service) Logout(ctx context.Context, sess *shared.Session) {
	if sess == nil || sess.User() == "" {
		return
	}
	s.removeRow(ctx, sess.ID)
	sess.ClearUser()
	s.sessions.Renew(sess)
	s.csrf.Rotate(sess)
}

// CurrentPrincipal resolves the account bound to sess. Sessions of deleted or
// deactivated accounts are unbound and read as anonymous.
func (s *Service) CurrentPrincipal(ctx context.Context, sess *shared.Session) (*rbac.Principal, error) {
	if sess == nil || sess.User() == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		sess.ClearUser()
		return nil, nil
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			sess.ClearUser()
			return nil, nil
		}
		return nil, fmt.Errorf("auth: resolve principal: %w", err)
	}
	if !user.IsActive {
		sess.ClearUser()
		return nil, nil
	}
	return user.Principal(), nil
}

// PurgeExpiredSessions deletes login-session rows past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.PurgeExpired(ctx, s.now())
}

func (s *Service) removeRow(ctx context.Context, id string) {
	if s.repo == nil {
		return
	}
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		s.logger.Warn("remove session", slog.Any("error", err))
	}
}
