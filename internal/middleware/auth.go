package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/olushako/vaulty/internal/services"
)

// apiError represents a standardized API error response.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// jsonError writes a standardized JSON error response.
func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := apiError{}
	resp.Error.Code = code
	resp.Error.Message = message
	json.NewEncoder(w).Encode(resp)
}

// AuthContextKey is the context key for the resolved credential.
type AuthContextKey struct{}

// BearerToken extracts the raw token from an Authorization header value.
// Returns "" when the header is missing or not a Bearer scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// Auth returns middleware that authenticates API requests using Bearer
// tokens. Every tier resolves through the same path; pending devices come
// back as plain unauthorized.
func Auth(authService *services.AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or malformed authorization header")
				return
			}

			auth, err := authService.Resolve(r.Context(), token)
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), AuthContextKey{}, auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuth retrieves the resolved credential from the context.
func GetAuth(ctx context.Context) *services.AuthContext {
	auth, _ := ctx.Value(AuthContextKey{}).(*services.AuthContext)
	return auth
}
