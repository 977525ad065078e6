package tenant

import (
	"context"
)

type contextKey string

const keyCtxKey contextKey = "tenant_key"

// WithKey carries a resolved Key across the middleware -> handler hop.
// Services never read the tenant from context; they take Key explicitly.
func WithKey(ctx context.Context, k Key) context.Context {
	return context.WithValue(ctx, keyCtxKey, k)
}

func KeyFromContext(ctx context.Context) (Key, bool) {
	k, ok := ctx.Value(keyCtxKey).(Key)
	return k, ok && k.Valid()
}
