package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/models"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	principalKey contextKey = "principal"
)

// Principal is the caller identified by the bearer token.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return "unknown"
}

type principalHolderKey struct{}

func withPrincipalHolder(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalHolderKey{}, p)
}
