package common

import "context"

type contextKey string

const principalContextKey contextKey = "principal"

// Principal is the caller identified by a verified bearer token.
type Principal struct {
	Token  string `json:"-"`
	UserID int    `json:"userId"`
	Role   int    `json:"roleId"`
}

// ContextWithPrincipal stores the authenticated caller into context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated caller from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(Principal)
	return principal, ok
}

// TokenFromContext returns the raw bearer token, or "" for anonymous requests.
func TokenFromContext(ctx context.Context) string {
	principal, _ := PrincipalFromContext(ctx)
	return principal.Token
}
