package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth requires a valid "Authorization: Bearer <token>" header (or,
// when no Bearer header is present, a "token" query parameter) on every request
// when token is non-empty; an empty token disables the check
// entirely, off by default for local/desktop scraping and development.
//
// This stands in for the client-identity handshake the wire protocol
// leaves to the IPC framing layer.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !validBearer(r, token) {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validBearer(r *http.Request, token string) bool {
	got := extractBearer(r)
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return r.URL.Query().Get("token")
}
