package app

import (
	"io/fs"
	"log"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/staffhub/staffhub/internal/audit/http"
	"github.com/staffhub/staffhub/internal/auth"
	"github.com/staffhub/staffhub/internal/employees"
	"github.com/staffhub/staffhub/internal/observability"
	"github.com/staffhub/staffhub/internal/platform/httpx"
	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/users"
	"github.com/staffhub/staffhub/internal/view"
	"github.com/staffhub/staffhub/jobs"
	"github.com/staffhub/staffhub/web"
)

func init() {
	ensureMimeType(".css", "text/css; charset=utf-8")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: failed to register MIME type for %s: %v", ext, err)
	}
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthService      *auth.Service
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	EmployeesHandler *employees.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
	Guard            rbac.Guard
	Metrics          *observability.Metrics
}

// NewGuard builds the authorization guard used by every handler. Denials
// render the forbidden page and are counted in metrics.
func NewGuard(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, metrics *observability.Metrics) rbac.Guard {
	guard := rbac.Guard{Logger: logger, LoginPath: "/auth/login"}
	if metrics != nil {
		guard.Denials = metrics
	}
	if templates != nil {
		guard.Forbidden = func(w http.ResponseWriter, r *http.Request, err error) {
			if rerr := templates.RenderError(w, r, csrf, http.StatusForbidden, err); rerr != nil {
				logger.Error("render forbidden page", slog.Any("error", rerr))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			}
		}
	}
	return guard
}

// NewRouter constructs the chi.Router with StaffHub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		Templates:      params.Templates,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if err := params.Templates.RenderError(w, r, params.CSRFManager, http.StatusNotFound, shared.ErrNotFound); err != nil {
			http.NotFound(w, r)
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		if params.AuthService != nil {
			r.Use(params.AuthService.ResolvePrincipal)
		}
		guard := params.Guard

		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
			r.With(guard.RequireAPIAuthenticated).Get("/api/me", params.AuthHandler.Me)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.With(guard.RequireCapability("manage_users", rbac.CanManageUsers)).Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.EmployeesHandler != nil {
			params.EmployeesHandler.MountRoutes(r)
		}
	})

	return r
}

// staticCacheHandler caches static assets in the browser for one hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
