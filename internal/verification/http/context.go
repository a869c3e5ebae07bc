package http

import (
	"context"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Actor  workflow.Actor
	ShopID string
}

type principalKey struct{}

// WithPrincipal stores p on ctx for the handlers.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller stored by the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.Actor.ID != ""
}
