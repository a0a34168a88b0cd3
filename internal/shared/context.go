package shared

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// TenantHeader carries the tenant identifier on every API request.
const TenantHeader = "X-Tenant-ID"

type tenantContextKey struct{}

// ContextWithTenant stores the tenant id in context.
func ContextWithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext extracts the tenant id from context.
func TenantFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(tenantContextKey{}).(uuid.UUID)
	return tenantID, ok
}

// TenantMiddleware resolves the tenant header into the request context.
// Requests without a parseable tenant id are rejected before reaching handlers,
// so repositories can rely on the tenant always being present.
func TenantMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			raw := r.Header.Get(TenantHeader)
			if raw == "" {
				http.Error(w, "tenant header required", http.StatusBadRequest)
				return
			}
			tenantID, err := uuid.Parse(raw)
			if err != nil {
				if logger != nil {
					logger.Warn("invalid tenant header", slog.String("value", raw))
				}
				http.Error(w, "invalid tenant id", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithTenant(r.Context(), tenantID)))
		})
	}
}
