package middleware

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
)

// AuthCookieName is the cookie carrying the admin token
const AuthCookieName = "auth"

// AdminOnly gates mutating routes behind the admin token. The token is
// accepted from the auth cookie or, for API clients, a bearer-style
// Authorization header.
func AdminOnly(token string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				logger.Error("admin token not configured, rejecting request",
					zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			presented := ""
			if cookie, err := r.Cookie(AuthCookieName); err == nil {
				presented = cookie.Value
			} else if header := r.Header.Get("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
				presented = header[7:]
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.Debug("admin token mismatch",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
