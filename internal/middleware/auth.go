package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// AdminKeyHeader carries the admin API key on back-office requests.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards admin endpoints with a shared API key.
// An empty configured key disables the endpoints entirely rather than
// leaving them open.
func RequireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := r.Header.Get(AdminKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"message": "Authentication required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
