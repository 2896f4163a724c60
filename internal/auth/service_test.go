package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/staffhub/staffhub/internal/auth/password"
	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/users"
)

type stubUsers struct {
	byID map[int64]*users.User
	err  error
}

func (s *stubUsers) FindByID(ctx context.Context, id int64) (*users.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, users.ErrUserNotFound
}

func (s *stubUsers) FindByUsername(ctx context.Context, username string) (*users.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, users.ErrUserNotFound
}

type stubRepo struct {
	mu      sync.Mutex
	rows    map[string]LoginSession
	purged  time.Time
	failErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{rows: make(map[string]LoginSession)}
}

func (s *stubRepo) CreateSession(ctx context.Context, row LoginSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.rows[row.ID] = row
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *stubRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purged = before
	var n int64
	for id, row := range s.rows {
		if row.ExpiresAt.Before(before) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

type countingVerifier struct {
	*password.Bcrypt
	burns int
}

func (c *countingVerifier) Burn(plain string) {
	c.burns++
	c.Bcrypt.Burn(plain)
}

var testHasher = password.NewBcrypt(bcrypt.MinCost)

type serviceEnv struct {
	svc      *Service
	users    *stubUsers
	repo     *stubRepo
	verifier *countingVerifier
	sessions *shared.SessionManager
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test_session", time.Hour, false)

	hash, err := testHasher.Hash("manager123")
	require.NoError(t, err)
	lookup := &stubUsers{byID: map[int64]*users.User{
		3: {ID: 3, Username: "Manager", PasswordHash: hash, Role: rbac.RoleManager, FullName: "Department Manager", IsActive: true},
		5: {ID: 5, Username: "Retired", PasswordHash: hash, Role: rbac.RoleEmployee, IsActive: false},
	}}
	env := &serviceEnv{users: lookup, repo: newStubRepo(), verifier: &countingVerifier{Bcrypt: testHasher}, sessions: sessions}
	env.svc = NewService(lookup, env.repo, env.verifier, sessions, shared.NewCSRFManager("csrf-secret"), nil)
	return env
}

func (e *serviceEnv) freshSession(t *testing.T) *shared.Session {
	t.Helper()
	sess, err := e.sessions.Load(context.Background(), httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	return sess
}

func TestLoginBindsPrincipalAndRotatesSession(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	sess := env.freshSession(t)
	sess.Set(shared.CSRFSessionKey, "pre-login-token")
	before := sess.ID

	p, err := env.svc.Login(ctx, sess, Credentials{Username: "Manager", Password: "manager123"}, ClientInfo{IP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, rbac.RoleManager, p.Role)
	assert.Equal(t, "3", sess.User())
	assert.NotEqual(t, before, sess.ID)
	assert.Empty(t, sess.Get(shared.CSRFSessionKey), "csrf token rotated")

	row, ok := env.repo.rows[sess.ID]
	require.True(t, ok)
	assert.Equal(t, int64(3), row.UserID)
	assert.Equal(t, "10.0.0.1", row.IP)
	assert.WithinDuration(t, row.CreatedAt.Add(time.Hour), row.ExpiresAt, time.Second)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		creds Credentials
	}{
		{"unknown user", Credentials{Username: "Nobody", Password: "manager123"}},
		{"wrong password", Credentials{Username: "Manager", Password: "wrong"}},
		{"inactive account", Credentials{Username: "Retired", Password: "manager123"}},
		{"username is case sensitive", Credentials{Username: "manager", Password: "manager123"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := env.freshSession(t)
			p, err := env.svc.Login(ctx, sess, tc.creds, ClientInfo{})
			assert.Nil(t, p)
			require.ErrorIs(t, err, shared.ErrInvalidCredentials)
			assert.Equal(t, "Invalid username or password!", shared.UserSafeMessage(err))
			assert.Empty(t, sess.User())
		})
	}
	assert.Equal(t, 2, env.verifier.burns, "unknown usernames still pay for a comparison")
	assert.Empty(t, env.repo.rows)
}

func TestLoginLookupFailureIsNotInvalidCredentials(t *testing.T) {
	env := newServiceEnv(t)
	env.users.err = errors.New("connection refused")
	_, err := env.svc.Login(context.Background(), env.freshSession(t), Credentials{Username: "Manager", Password: "manager123"}, ClientInfo{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginSucceedsWhenAuditRowFails(t *testing.T) {
	env := newServiceEnv(t)
	env.repo.failErr = errors.New("table missing")
	sess := env.freshSession(t)
	_, err := env.svc.Login(context.Background(), sess, Credentials{Username: "Manager", Password: "manager123"}, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, "3", sess.User())
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	sess := env.freshSession(t)
	_, err := env.svc.Login(ctx, sess, Credentials{Username: "Manager", Password: "manager123"}, ClientInfo{})
	require.NoError(t, err)
	loggedIn := sess.ID

	env.svc.Logout(ctx, sess)
	assert.Empty(t, sess.User())
	assert.NotEqual(t, loggedIn, sess.ID)
	assert.NotContains(t, env.repo.rows, loggedIn)

	p, err := env.svc.CurrentPrincipal(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, p)

	afterFirst := sess.ID
	env.svc.Logout(ctx, sess)
	assert.Equal(t, afterFirst, sess.ID, "second logout changes nothing")
	env.svc.Logout(ctx, nil)
}

func TestCurrentPrincipal(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	p, err := env.svc.CurrentPrincipal(ctx, env.freshSession(t))
	require.NoError(t, err)
	assert.Nil(t, p, "fresh session is anonymous")

	sess := env.freshSession(t)
	sess.SetUser("3")
	p, err = env.svc.CurrentPrincipal(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Manager", p.Username)

	for _, id := range []int64{5, 42} {
		sess := env.freshSession(t)
		sess.SetUser(strconv.FormatInt(id, 10))
		p, err := env.svc.CurrentPrincipal(ctx, sess)
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.Empty(t, sess.User(), "stale binding dropped")
	}

	sess = env.freshSession(t)
	sess.SetUser("not-a-number")
	p, err = env.svc.CurrentPrincipal(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPurgeExpiredSessions(t *testing.T) {
	env := newServiceEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return now }
	env.repo.rows["old"] = LoginSession{ID: "old", ExpiresAt: now.Add(-time.Minute)}
	env.repo.rows["live"] = LoginSession{ID: "live", ExpiresAt: now.Add(time.Minute)}

	n, err := env.svc.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, now, env.repo.purged)
	assert.Contains(t, env.repo.rows, "live")
}
