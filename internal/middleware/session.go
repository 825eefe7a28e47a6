package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/neologin/backend/internal/auth"
	"github.com/neologin/backend/internal/models"
)

type contextKey string

const (
	ctxIdentityKey contextKey = "identity"
	ctxAccountKey  contextKey = "account"
)

// TokenValidator checks a bearer token and returns the identity it carries.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (auth.Identity, error)
}

// AccountLoader resolves the authenticated account record.
type AccountLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// RequireSession authenticates requests by validating the bearer token and
// loading the account into the request context. Unauthenticated requests
// are rejected before the handler runs.
func RequireSession(validator TokenValidator, loader AccountLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			ident, err := validator.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired session"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxIdentityKey, &ident)
			if acc, err := loader.GetByID(r.Context(), ident.AccountID); err == nil && acc != nil {
				ctx = context.WithValue(ctx, ctxAccountKey, acc)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates admin-only handlers. It fails closed: a non-admin
// session gets a 403 and the handler never runs, so no partial mutation
// can happen. Chain it after RequireSession.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := IdentityFromCtx(r.Context())
		if ident == nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if !ident.IsAdmin {
			http.Error(w, `{"error":"admin access required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromCtx returns the authenticated identity or nil.
func IdentityFromCtx(ctx context.Context) *auth.Identity {
	ident, _ := ctx.Value(ctxIdentityKey).(*auth.Identity)
	return ident
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, ident *auth.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, ident)
}

// AccountFromCtx returns the authenticated account or nil.
func AccountFromCtx(ctx context.Context) *models.Account {
	acc, _ := ctx.Value(ctxAccountKey).(*models.Account)
	return acc
}

// WithAccount returns a context carrying the given account.
func WithAccount(ctx context.Context, acc *models.Account) context.Context {
	return context.WithValue(ctx, ctxAccountKey, acc)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
