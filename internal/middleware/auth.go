package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/auth"
)

// Auth requires a valid access token and stores its subject on the request context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && isUpgrade(r) && r.URL.Query().Get("token") != "" {
				header = "Bearer " + r.URL.Query().Get("token")
			}
			if header == "" {
				unauthorized(w, "Missing authorization header")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "Invalid authorization header")
				return
			}
			claims, err := auth.ParseToken(secret, strings.TrimSpace(parts[1]), auth.AccessToken)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSubject(r.Context(), claims.Subject)))
		})
	}
}

// Browsers cannot set headers on websocket handshakes, so streams may pass ?token= instead.
func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   false,
		"message":   message,
		"errorCode": apperr.KindUnauthorized,
		"details":   nil,
	})
}
