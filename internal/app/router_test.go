package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/staffhub/staffhub/internal/auth"
	"github.com/staffhub/staffhub/internal/auth/password"
	"github.com/staffhub/staffhub/internal/observability"
	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/users"
	"github.com/staffhub/staffhub/internal/view"
	"github.com/staffhub/staffhub/jobs"
	_ "github.com/staffhub/staffhub/testing"
)

type accountStub struct {
	accounts map[string]users.User
}

func (s accountStub) FindByID(_ context.Context, id int64) (*users.User, error) {
	for _, u := range s.accounts {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (s accountStub) FindByUsername(_ context.Context, username string) (*users.User, error) {
	if u, ok := s.accounts[username]; ok {
		return &u, nil
	}
	return nil, users.ErrUserNotFound
}

var csrfInput = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type routerEnv struct {
	handler http.Handler
	metrics *observability.Metrics
	cookies []*http.Cookie
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	templates, err := view.NewEngine()
	require.NoError(t, err)

	hasher := password.NewBcrypt(bcrypt.MinCost)
	hash, err := hasher.Hash("ceo123")
	require.NoError(t, err)
	lookup := accountStub{accounts: map[string]users.User{
		"CEO": {ID: 1, Username: "CEO", PasswordHash: hash, Role: rbac.RoleAdmin, IsActive: true},
	}}

	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "staffhub_session", time.Hour, false)
	csrf := shared.NewCSRFManager("router-secret")
	metrics := observability.NewMetrics()
	authService := auth.NewService(lookup, nil, hasher, sessions, csrf, logger)

	handler := NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "development", AppRequestTimeout: 5 * time.Second},
		Templates:      templates,
		SessionManager: sessions,
		CSRFManager:    csrf,
		AuthService:    authService,
		AuthHandler:    auth.NewHandler(logger, authService, templates, csrf, metrics, 10),
		JobHandler:     jobs.NewHandler(nil, nil, logger),
		Guard:          NewGuard(logger, templates, csrf, metrics),
		Metrics:        metrics,
	})
	return &routerEnv{handler: handler, metrics: metrics}
}

func (e *routerEnv) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	if cookies := rr.Result().Cookies(); len(cookies) > 0 {
		e.cookies = cookies
	}
	return rr
}

func (e *routerEnv) csrfToken(t *testing.T) string {
	t.Helper()
	rr := e.do(http.MethodGet, "/auth/login", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	match := csrfInput.FindStringSubmatch(rr.Body.String())
	require.Len(t, match, 2)
	return match[1]
}

func TestPublicEndpoints(t *testing.T) {
	env := newRouterEnv(t)

	rr := env.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = env.do(http.MethodGet, "/static/css/app.css", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))

	rr = env.do(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "The requested page was not found!")

	rr = env.do(http.MethodGet, "/auth/login", nil)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestAnonymousAccess(t *testing.T) {
	env := newRouterEnv(t)

	rr := env.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = env.do(http.MethodGet, "/jobs/health", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login?next=%2Fjobs%2Fhealth", rr.Header().Get("Location"))
}

func TestStateChangesRequireCSRFToken(t *testing.T) {
	env := newRouterEnv(t)
	env.csrfToken(t)

	rr := env.do(http.MethodPost, "/auth/login", url.Values{"username": {"CEO"}, "password": {"ceo123"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "You don&#39;t have permission to access this resource!")
}

func TestLoginThroughRouter(t *testing.T) {
	env := newRouterEnv(t)
	token := env.csrfToken(t)

	rr := env.do(http.MethodPost, "/auth/login", url.Values{
		"csrf_token": {token},
		"username":   {"CEO"},
		"password":   {"ceo123"},
		"next":       {"/jobs/health"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/jobs/health", rr.Header().Get("Location"))

	rr = env.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "admin", me["role"])
	assert.Equal(t, "CEO", me["username"])

	rr = env.do(http.MethodGet, "/jobs/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"queue":"default"`)

	metrics := httptest.NewRecorder()
	env.metrics.Handler().ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `staffhub_login_attempts_total{result="success"} 1`)
}
