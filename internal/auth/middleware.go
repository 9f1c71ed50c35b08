package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"librarian/internal/httpjson"
)

type contextKey struct{}

// UsernameFrom returns the session user stored by RequireBearer.
func UsernameFrom(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(contextKey{}).(string)
	return username, ok
}

// RequireBearer rejects requests without a live "Authorization: Bearer" session.
func RequireBearer(svc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := svc.Verify(r.Context(), bearerToken(r))
			if err != nil {
				if errors.Is(err, ErrUnauthorized) {
					w.Header().Set("WWW-Authenticate", `Bearer realm="librarian"`)
					httpjson.Error(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
					return
				}
				httpjson.Error(w, http.StatusServiceUnavailable, "unavailable", err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, username)))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
