package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/staffhub/staffhub/internal/platform/httpx"
	"github.com/staffhub/staffhub/internal/shared"
)

// DenialObserver counts authorization denials per operation.
type DenialObserver interface {
	ObserveDenial(operation string)
}

// Guard wires the authentication and authorization checks for HTTP handlers.
// The principal must already be resolved into the request context.
type Guard struct {
	Logger    *slog.Logger
	LoginPath string
	// Forbidden renders the denial page. Defaults to a plain 403.
	Forbidden func(w http.ResponseWriter, r *http.Request, err error)
	Denials   DenialObserver
}

// RequireAuthenticated lets any signed-in principal through.
func (g Guard) RequireAuthenticated(next http.Handler) http.Handler {
	return g.enforce("authenticated", func(p *Principal) error {
		if p == nil {
			return shared.ErrAuthenticationRequired
		}
		return nil
	})(next)
}

// RequirePermission checks a flat permission from the role table.
func (g Guard) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return g.enforce(string(perm), func(p *Principal) error {
		return RequirePermission(p, perm)
	})
}

// RequireCapability checks a derived capability predicate.
func (g Guard) RequireCapability(name string, allowed func(Role) bool) func(http.Handler) http.Handler {
	return g.enforce(name, func(p *Principal) error {
		return RequireCapability(p, allowed)
	})
}

// RequireAPIAuthenticated is RequireAuthenticated for JSON routes: anonymous
// callers get a 401 problem instead of a redirect.
func (g Guard) RequireAPIAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g Guard) enforce(operation string, check func(*Principal) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := check(PrincipalFromContext(r.Context()))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, shared.ErrAuthenticationRequired):
				g.RedirectToLogin(w, r)
			default:
				g.Deny(w, r, operation, err)
			}
		})
	}
}

// RedirectToLogin sends an anonymous caller to the login page, remembering
// the requested page for GET requests.
func (g Guard) RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	location := g.loginPath()
	if r.Method == http.MethodGet {
		location += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	shared.Flash(r.Context(), "info", shared.UserSafeMessage(shared.ErrAuthenticationRequired))
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// Deny records and renders an authorization failure.
func (g Guard) Deny(w http.ResponseWriter, r *http.Request, operation string, err error) {
	if g.Denials != nil {
		g.Denials.ObserveDenial(operation)
	}
	if g.Logger != nil {
		attrs := []any{slog.String("operation", operation), slog.String("path", r.URL.Path)}
		if p := PrincipalFromContext(r.Context()); p != nil {
			attrs = append(attrs, slog.Int64("user_id", p.ID), slog.String("role", p.Role.String()))
		}
		g.Logger.Warn("authorization denied", attrs...)
	}
	if g.Forbidden != nil {
		g.Forbidden(w, r, err)
		return
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

func (g Guard) loginPath() string {
	if g.LoginPath == "" {
		return "/auth/login"
	}
	return g.LoginPath
}
