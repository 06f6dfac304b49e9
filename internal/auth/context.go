package auth

import (
	"context"

	"github.com/wolfman30/careconnect-platform/internal/identity"
)

type ctxKey string

const principalKey ctxKey = "careconnect.principal"

// Principal is the authenticated caller.
type Principal struct {
	UserID   string            `json:"user_id"`
	Email    string            `json:"email"`
	UserType identity.UserType `json:"user_type"`
}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the principal if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.UserID != ""
}
