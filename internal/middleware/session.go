package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// SessionCookie holds the signed session token.
const SessionCookie = "session"

// SessionTTL is how long a login stays valid.
const SessionTTL = 30 * 24 * time.Hour

// SessionToken returns "<unix expiry>.<hex hmac>" signed with secret.
func SessionToken(secret string, expires time.Time) string {
	exp := strconv.FormatInt(expires.Unix(), 10)
	return exp + "." + sign(secret, exp)
}

// ValidSession reports whether token was signed with secret and has not expired.
func ValidSession(secret, token string, now time.Time) bool {
	exp, sig, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || !now.Before(time.Unix(unix, 0)) {
		return false
	}
	want, err := hex.DecodeString(sign(secret, exp))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
