package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/staffhub/staffhub/internal/platform/httpx"
	"github.com/staffhub/staffhub/internal/rbac"
)

// exportsPerMinute bounds CSV exports per administrator.
const exportsPerMinute = 10

// MountRoutes registers the trail at "/" and its CSV export. Both require
// the manage-users capability.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	exportLimit := httprate.Limit(exportsPerMinute, time.Minute,
		httprate.WithKeyFuncs(exportKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too many exports", "Wait a minute before exporting again.")
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCapability("view_audit", rbac.CanManageUsers))
		r.Get("/", h.handleTimeline)
		r.With(exportLimit).Get("/export.csv", h.handleExport)
	})
}

// exportKey buckets by principal, falling back to the client IP.
func exportKey(r *http.Request) (string, error) {
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		return "user:" + strconv.FormatInt(p.ID, 10), nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
