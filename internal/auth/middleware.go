package auth

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

const identityContextKey contextKey = "carebase_identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

type Verifier interface {
	Verify(token string) (Identity, error)
}

// Authenticate decides a single request: ErrMissingToken when there is no
// session cookie, ErrInvalidToken when it does not verify, else the identity.
func Authenticate(v Verifier, r *http.Request) (Identity, error) {
	token, err := tokenFromRequest(r)
	if err != nil {
		return Identity{}, err
	}
	id, err := v.Verify(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

// RequireSession admits requests carrying a valid session cookie and answers
// every other request with the same 401 body, whatever the reason.
func RequireSession(v Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := Authenticate(v, r)
			if err != nil {
				logger.Debug("session rejected", "reason", err.Error(), "path", r.URL.Path)
				WriteUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"message":"Unauthorized"}` + "\n"))
}
