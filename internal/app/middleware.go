package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/staffhub/staffhub/internal/observability"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/view"
)

const (
	globalRateLimit       = 120
	defaultRequestTimeout = 30 * time.Second
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
}

// MiddlewareStack returns the StaffHub middleware chain in application order.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	timeout := defaultRequestTimeout
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	chain := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		sessions(cfg),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		secureHeaders(cfg),
		middleware.Compress(5),
	}
	if !InTestMode() {
		chain = append(chain, httprate.Limit(globalRateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}
	chain = append(chain, csrf(cfg))
	if cfg.Metrics != nil {
		chain = append(chain, cfg.Metrics.Middleware)
	}
	return chain
}

// sessions loads the Redis session into the request context and persists it
// before the first byte of the response, or after the handler if it wrote
// nothing.
func sessions(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := cfg.SessionManager.Load(r.Context(), r)
			if err != nil {
				cfg.Logger.Error("load session", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			r = r.WithContext(shared.ContextWithSession(r.Context(), sess))
			cw := &committingWriter{ResponseWriter: w, cfg: cfg, req: r, sess: sess}
			next.ServeHTTP(cw, r)
			cw.commit()
		})
	}
}

type committingWriter struct {
	http.ResponseWriter
	cfg       MiddlewareConfig
	req       *http.Request
	sess      *shared.Session
	committed bool
}

func (w *committingWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	// The request context may already be cancelled by the timeout middleware.
	ctx := context.WithoutCancel(w.req.Context())
	if err := w.cfg.SessionManager.Commit(ctx, w.ResponseWriter, w.req, w.sess); err != nil {
		w.cfg.Logger.Error("commit session", slog.Any("error", err))
	}
}

func (w *committingWriter) WriteHeader(status int) {
	w.commit()
	w.ResponseWriter.WriteHeader(status)
}

func (w *committingWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *committingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func secureHeaders(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	production := cfg.Config.IsProduction()
	sm := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// csrf rejects state-changing requests without the session's token, taken
// from the form field or the X-CSRF-Token header.
func csrf(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			token := r.PostFormValue(shared.CSRFFormField)
			if token == "" {
				token = r.Header.Get(shared.CSRFHeader)
			}
			err := cfg.CSRFManager.VerifyToken(r.Context(), shared.SessionFromContext(r.Context()), token)
			if err != nil {
				csrfDenied(cfg, w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func csrfDenied(cfg MiddlewareConfig, w http.ResponseWriter, r *http.Request, err error) {
	cfg.Logger.Warn("csrf validation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	if cfg.Templates != nil {
		if rerr := cfg.Templates.RenderError(w, r, cfg.CSRFManager, http.StatusForbidden, shared.ErrForbidden); rerr == nil {
			return
		}
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}
