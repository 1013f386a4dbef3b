package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := AuthMiddleware("secret", next)
	valid := SessionToken("secret", time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		path   string
		cookie string
		want   int
	}{
		{"health is public", "/health", "", http.StatusTeapot},
		{"metrics is public", "/metrics", "", http.StatusTeapot},
		{"feed is public", "/ws", "", http.StatusTeapot},
		{"login page is public", "/login", "", http.StatusTeapot},
		{"login is public", "/auth/login", "", http.StatusTeapot},
		{"api without cookie", "/api/cameras", "", http.StatusUnauthorized},
		{"page without cookie", "/settings", "", http.StatusSeeOther},
		{"api with session", "/api/cameras", valid, http.StatusTeapot},
		{"logs with session", "/logs/info", valid, http.StatusTeapot},
		{"forged plain value", "/api/cameras", "true", http.StatusUnauthorized},
		{"signed with other secret", "/api/cameras", SessionToken("guess", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired session", "/api/cameras", SessionToken("secret", time.Now().Add(-time.Minute)), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestValidSession(t *testing.T) {
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	token := SessionToken("secret", now.Add(time.Hour))

	tests := []struct {
		name   string
		secret string
		token  string
		now    time.Time
		want   bool
	}{
		{"valid", "secret", token, now, true},
		{"wrong secret", "other", token, now, false},
		{"expired", "secret", token, now.Add(2 * time.Hour), false},
		{"tampered expiry", "secret", "9999999999" + token[len("1722517200"):], now, false},
		{"no separator", "secret", "abc", now, false},
		{"bad hex", "secret", "1722517200.zz", now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidSession(tt.secret, tt.token, tt.now); got != tt.want {
				t.Errorf("ValidSession = %v, want %v", got, tt.want)
			}
		})
	}
}
