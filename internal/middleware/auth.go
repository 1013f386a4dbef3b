package middleware

import (
	"net/http"
	"strings"
	"time"
)

// AuthMiddleware checks that the request carries a session cookie signed
// with secret.
func AuthMiddleware(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(SessionCookie)
		if err != nil || !ValidSession(secret, cookie.Value, time.Now()) {
			// API clients get 401, browsers are sent to the login page
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublic(path string) bool {
	switch path {
	case "/login", "/ws", "/health", "/metrics":
		return true
	}
	return strings.HasPrefix(path, "/auth/")
}
