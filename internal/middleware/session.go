package middleware

import (
	"log/slog"
	"net/http"

	"github.com/vmail/backend/internal/config"
	"github.com/vmail/backend/internal/logging"
	"github.com/vmail/backend/internal/session"
)

// Session builds a cookie-backed auth Context for every request, hydrates it
// and places it on the request context. Protected paths without a session are
// redirected before the handler runs, so protected content never renders.
func Session(cfg config.SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var target string
			store := session.NewStore(session.NewCookieKV(w, r, cfg.CookieMaxAge, cfg.SecureCookie))
			auth := session.NewContext(store, func(path string) { target = path })
			auth.Hydrate()

			if auth.Guard(r.URL.Path) {
				logging.FromContext(r.Context()).Debug("redirecting anonymous visitor",
					slog.String("target", target))
				http.Redirect(w, r, target, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(session.WithContext(r.Context(), auth)))
		})
	}
}
