package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BotTokenHeader carries the shared secret required for writes.
const BotTokenHeader = "X-Bot-Token"

// BotToken returns middleware guarding write routes with a shared token.
// With no token configured writes are refused outright (503) rather than
// left open.
func BotToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeJSONError(w, http.StatusServiceUnavailable, "write access not configured")
				return
			}

			got := strings.TrimSpace(r.Header.Get(BotTokenHeader))
			if got == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing bot token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "invalid bot token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSONError sends {"error": msg} with the given status.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
