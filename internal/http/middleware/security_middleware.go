package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/mvanbree/palette/internal/http/response"
	"github.com/mvanbree/palette/internal/security"
)

// CSRFMiddleware enforces the double-submit pattern on mutating methods:
// the csrf_token cookie must match the X-CSRF-Token header.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		cookie := security.GetCookie(r, security.CSRFTokenCookie)
		header := r.Header.Get("X-CSRF-Token")
		if cookie == "" || header == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			response.Error(w, r, http.StatusForbidden, "CSRF_FAILED", "csrf token missing or mismatched", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
