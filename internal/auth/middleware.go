package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kuitang/noteful/internal/errs"
	"github.com/kuitang/noteful/internal/obs"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller of a request.
type Identity struct {
	ID       string
	Username string
	FullName string
}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	return obs.WithUserID(ctx, id.ID)
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.ID != ""
}

// Middleware authenticates requests with bearer tokens.
type Middleware struct {
	tokens *TokenService
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(tokens *TokenService) *Middleware {
	return &Middleware{tokens: tokens}
}

// RequireAuth rejects requests without a valid bearer token with 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			writeUnauthorized(w)
			return
		}
		claims, err := m.tokens.Verify(token)
		if err != nil {
			obs.From(r.Context()).Debug("bearer token rejected", "pkg", "auth", "error", err)
			writeUnauthorized(w)
			return
		}
		ctx := WithIdentity(r.Context(), Identity{
			ID:       claims.User.ID,
			Username: claims.User.Username,
			FullName: claims.User.FullName,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(errs.Unauthenticated),
		"message": "Unauthorized",
	})
}
