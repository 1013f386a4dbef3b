package handler

import (
	"crypto/subtle"
	_ "embed"
	"net/http"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/middleware"
)

// AuthCookie carries the signed session token.
const AuthCookie = middleware.SessionCookie

//go:embed login.html
var loginPage []byte

// LoginPageHandler serves the password form that posts to /auth/login.
func LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(loginPage)
}

// LoginHandler handles POST /auth/login by validating password and issuing
// a session cookie signed with it. Browsers land on the status list.
func LoginHandler(config *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		password := r.FormValue("password")
		if subtle.ConstantTimeCompare([]byte(password), []byte(config.Password)) != 1 {
			logger.Warning("Failed login attempt", "remote", r.RemoteAddr)
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     AuthCookie,
			Value:    middleware.SessionToken(config.Password, time.Now().Add(middleware.SessionTTL)),
			Path:     "/",
			MaxAge:   int(middleware.SessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/api/statuses", http.StatusSeeOther)
	}
}

// LogoutHandler clears the authentication cookie and redirects to the login page.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   AuthCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HealthHandler reports liveness and the number of monitored cameras.
func HealthHandler(running func() int, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]any{
			"status":  "ok",
			"cameras": running(),
		})
	}
}
