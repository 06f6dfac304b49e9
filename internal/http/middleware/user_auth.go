package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/careconnect-platform/internal/auth"
	"github.com/wolfman30/careconnect-platform/internal/identity"
)

// RequireUser verifies the bearer token issued by /auth/login and stores the
// principal on the request context. Requests without a valid token get 401.
func RequireUser(tokens *auth.Tokens, allowed ...identity.UserType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication disabled")
				return
			}
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}
			principal, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			if len(allowed) > 0 && !permitted(principal.UserType, allowed) {
				writeError(w, http.StatusForbidden, "forbidden", "not available for this account type")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

func permitted(t identity.UserType, allowed []identity.UserType) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
