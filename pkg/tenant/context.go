package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithTenantContext attaches a resolved tenant context to the request context.
func WithTenantContext(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext retrieves the tenant context. The second return value is false
// for platform/root requests, which carry no tenant.
func FromContext(ctx context.Context) (*TenantContext, bool) {
	tc, ok := ctx.Value(contextKey{}).(*TenantContext)
	return tc, ok
}

// IDFromContext retrieves just the tenant ID from the context.
// Returns zero UUID and false if no tenant is found.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	tc, ok := FromContext(ctx)
	if !ok || tc == nil || tc.Tenant == nil {
		return uuid.UUID{}, false
	}
	return tc.Tenant.ID, true
}

// MustFromContext retrieves the tenant context and panics if absent.
// Use only in handlers that cannot function without a tenant.
func MustFromContext(ctx context.Context) *TenantContext {
	tc, ok := FromContext(ctx)
	if !ok || tc == nil {
		panic("tenant: no tenant in context")
	}
	return tc
}

// LoggerExtractor returns a logger context extractor that enriches log
// records with the tenant ID when one is present.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return slog.String("tenant_id", id.String()), true
		}
		return slog.Attr{}, false
	}
}
