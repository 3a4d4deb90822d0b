package api

import (
	"context"
	"net/http"
	"strings"
)

type contextKey int

const principalKey contextKey = iota

// AuthMiddleware authenticates the bearer token and stores the resolved
// principal email on the request context.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		email, ok := a.tokens.Verify(token)
		if !ok {
			a.audit.logFailure(AuditAuthFailure, r, "invalid token")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) string {
	email, _ := ctx.Value(principalKey).(string)
	return email
}
