package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"YcrudAPI/internal/auth"
	"YcrudAPI/internal/logger"
)

// withAuth validates a Bearer token and stores its claims in the request
// context. Requests without a token pass through unauthenticated; resources
// that need claims reject them later.
func withAuth(v *auth.JWTValidator, next http.HandlerFunc) http.HandlerFunc {
	if v == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || r.Method == http.MethodOptions {
			next(w, r)
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			unauthorized(w, "malformed authorization header")
			return
		}
		claims, err := v.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			logger.Warn("jwt_rejected", map[string]any{"path": r.URL.Path, "error": err.Error()})
			unauthorized(w, "invalid token")
			return
		}
		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statusCode": http.StatusUnauthorized,
		"message":    message,
		"error":      http.StatusText(http.StatusUnauthorized),
	})
}
