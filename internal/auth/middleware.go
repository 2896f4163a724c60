package auth

import (
	"log/slog"
	"net/http"

	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
)

// ResolvePrincipal loads the session's account once per request and stores
// it in the request context. Anonymous requests pass through unchanged.
func (s *Service) ResolvePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		principal, err := s.CurrentPrincipal(ctx, shared.SessionFromContext(ctx))
		if err != nil {
			s.logger.Error("resolve principal", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if principal != nil {
			r = r.WithContext(rbac.ContextWithPrincipal(ctx, principal))
		}
		next.ServeHTTP(w, r)
	})
}
