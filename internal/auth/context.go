package auth

import (
	"context"

	"counselflow.org/internal/model"
)

// Principal is the authenticated caller: the platform user record matched to
// the token plus the verified claims.
type Principal struct {
	User   *model.User
	Claims *Claims
}

// IsAdmin reports whether the principal may perform administrative operations.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.User != nil && p.User.Role == model.RoleAdmin
}

type principalKey struct{}

// ContextWithPrincipal attaches the principal to ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal attached by the authentication
// middleware, or nil for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
