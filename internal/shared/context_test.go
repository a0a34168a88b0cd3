package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTenantMiddlewareResolvesHeader(t *testing.T) {
	tenantID := uuid.New()
	var got uuid.UUID
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = TenantFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/metadata/standard-packs", nil)
	req.Header.Set(TenantHeader, tenantID.String())
	rec := httptest.NewRecorder()
	TenantMiddleware(nil)(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	require.Equal(t, tenantID, got)
}

func TestTenantMiddlewareRejectsMissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/metadata/standard-packs", nil)
	rec := httptest.NewRecorder()
	TenantMiddleware(nil)(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTenantMiddlewareRejectsMalformedHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/metadata/standard-packs", nil)
	req.Header.Set(TenantHeader, "not-a-uuid")
	rec := httptest.NewRecorder()
	TenantMiddleware(nil)(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTenantMiddlewareSkipsHealthAndMetrics(t *testing.T) {
	reached := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached++
	})

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		TenantMiddleware(nil)(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, 2, reached)
}
