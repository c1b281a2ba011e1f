package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maribelle/backoffice/internal/auth"
	"github.com/maribelle/backoffice/internal/domain"
)

type contextKey string

// AuthUserContextKey is the context key for the authenticated Supabase user
const AuthUserContextKey contextKey = "auth_user"

// Authenticate verifies the Bearer token against Supabase and stores the
// resulting user in the request context. Requests without a valid token are
// rejected with 401; handlers behind this middleware can assume a user.
func Authenticate(verifier auth.Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			user, err := verifier.GetUser(r.Context(), token)
			if err != nil {
				if !domain.IsCode(err, domain.EUNAUTHORIZED) {
					logger.Error("token verification failed", "error", err, "path", r.URL.Path)
				}
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), AuthUserContextKey, *user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthUser retrieves the authenticated user placed by Authenticate.
func GetAuthUser(ctx context.Context) (domain.AuthUser, bool) {
	user, ok := ctx.Value(AuthUserContextKey).(domain.AuthUser)
	return user, ok
}

// RequireAdminToken guards operational endpoints with a static bearer token.
// An empty configured token disables the routes entirely rather than leaving
// them open.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				forbidden(w)
				return
			}
			presented, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"Unauthorized","code":"unauthorized"}`))
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"success":false,"error":"Forbidden","code":"forbidden"}`))
}
