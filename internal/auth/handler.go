package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/staffhub/staffhub/internal/platform/httpx"
	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/view"
)

// LoginObserver counts login outcomes.
type LoginObserver interface {
	ObserveLogin(result string)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	templates  *view.Engine
	csrf       *shared.CSRFManager
	logins     LoginObserver
	loginLimit int
}

// NewHandler constructs a Handler instance. loginLimit caps login attempts per
// client IP per minute; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, logins LoginObserver, loginLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		service:    service,
		templates:  templates,
		csrf:       csrf,
		logins:     logins,
		loginLimit: loginLimit,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.With(h.limitLogins).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginPageData struct {
	Username string
	Next     string
	Error    string
	Errors   map[string]string
}

func (h *Handler) limitLogins(next http.Handler) http.Handler {
	if h.loginLimit <= 0 {
		return next
	}
	return httprate.Limit(h.loginLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.observe("rate_limited")
			h.renderLogin(w, r, http.StatusTooManyRequests, loginPageData{
				Next:  r.PostFormValue("next"),
				Error: "Too many login attempts. Please wait a minute and try again.",
			})
		}),
	)(next)
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if rbac.PrincipalFromContext(r.Context()) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{Next: r.URL.Query().Get("next")})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	creds := Credentials{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	data := loginPageData{Username: creds.Username, Next: r.PostForm.Get("next")}

	if err := shared.ValidateStruct(creds); err != nil {
		h.observe("invalid")
		data.Errors = shared.FieldErrors(err)
		h.renderLogin(w, r, http.StatusBadRequest, data)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	_, err := h.service.Login(r.Context(), sess, creds, ClientInfo{IP: r.RemoteAddr, UserAgent: r.UserAgent()})
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("login failed", slog.Any("error", err))
			h.observe("error")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		h.logger.Info("login rejected", slog.String("remote_addr", r.RemoteAddr))
		h.observe("failure")
		data.Error = shared.UserSafeMessage(err)
		h.renderLogin(w, r, httpx.StatusFor(err), data)
		return
	}
	h.observe("success")
	shared.Flash(r.Context(), "success", "Login successful!")
	http.Redirect(w, r, safeNext(data.Next), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	h.service.Logout(r.Context(), sess)
	shared.Flash(r.Context(), "info", "You have been logged out.")
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// Me reports the signed-in principal and its capabilities as JSON.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if p == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":           p.ID,
		"username":     p.Username,
		"display_name": p.DisplayName,
		"role":         p.Role,
		"role_label":   p.Role.Label(),
		"permissions":  rbac.Permissions(p.Role),
		"capabilities": map[string]bool{
			"manage_accounts":  rbac.CanManageAccounts(p.Role),
			"manage_users":     rbac.CanManageUsers(p.Role),
			"create_employees": rbac.CanCreateEmployees(p.Role),
			"edit_employees":   rbac.CanEditEmployees(p.Role),
			"delete_employees": rbac.CanDeleteEmployees(p.Role),
			"view_salaries":    rbac.CanViewSalaries(p.Role),
		},
	})
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	if data.Errors == nil {
		data.Errors = map[string]string{}
	}
	if err := h.templates.Render(w, status, "pages/login.html", view.NewTemplateData(r, h.csrf, "Log in", data)); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) observe(result string) {
	if h.logins != nil {
		h.logins.ObserveLogin(result)
	}
}

// safeNext accepts only same-origin relative paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}
