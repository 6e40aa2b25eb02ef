package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"catnanny-backend/internal/auth"
	"catnanny-backend/internal/transport"
)

// AdminAuth accepts the shared admin key (as a bearer token or X-Admin-Key
// header, for scripted callers like the cron sweep) or a valid admin JWT
// cookie set by the login flow.
func AdminAuth(adminKey string, manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" && manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
				return
			}

			if adminKey != "" {
				candidate := r.Header.Get("X-Admin-Key")
				if candidate == "" {
					if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
						candidate = strings.TrimPrefix(h, "Bearer ")
					}
				}
				if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(adminKey)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			if manager != nil {
				cookie, err := r.Cookie("catnanny_access")
				if err == nil && cookie.Value != "" {
					claims, err := manager.Parse(cookie.Value)
					if err == nil && claims.Role == "admin" {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		})
	}
}
