package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const operatorContextKey contextKey = "operator"

// RequireAPIToken is middleware that requires "Authorization: Bearer <token>" on
// administrative routes. An empty token disables the check.
// The optional X-Operator header names the person acting and is stored in the context.
func RequireAPIToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && !validBearer(r.Header.Get("Authorization"), token) {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error": "unauthorized", "kind": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			operator := strings.TrimSpace(r.Header.Get("X-Operator"))
			ctx := context.WithValue(r.Context(), operatorContextKey, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validBearer(header, token string) bool {
	got, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) == 1
}

// GetOperatorFromContext returns the operator named by the request, or "".
func GetOperatorFromContext(ctx context.Context) string {
	operator, _ := ctx.Value(operatorContextKey).(string)
	return operator
}

// SetOperatorInContext adds an operator to the context.
// This is primarily for testing - use RequireAPIToken middleware in production.
func SetOperatorInContext(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorContextKey, operator)
}
