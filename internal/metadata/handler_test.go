package metadata

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func newMetadataRouter(t *testing.T) chi.Router {
	t.Helper()
	repo := lookupFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(repo, nil, logger)
	handler := NewHandler(logger, service, NewValidator(repo), NewPackCache(nil, time.Minute))

	r := chi.NewRouter()
	r.Use(shared.TenantMiddleware(nil))
	r.Route("/metadata", handler.MountRoutes)
	return r
}

func doMetadataRequest(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(shared.TenantHeader, lookupTenant.String())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLookupEndpointResolvesAlias(t *testing.T) {
	r := newMetadataRouter(t)

	rec := doMetadataRequest(t, r, http.MethodGet, "/metadata/concepts/lookup?term=Net+Revenue", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CanonicalKey string `json:"canonical_key"`
		MatchedBy    string `json:"matched_by"`
		StandardPack *struct {
			Code string `json:"code"`
		} `json:"standard_pack"`
		Aliases []struct {
			Value string `json:"value"`
		} `json:"aliases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "revenue.recognized", resp.CanonicalKey)
	require.Equal(t, "alias", resp.MatchedBy)
	require.NotNil(t, resp.StandardPack)
	require.Equal(t, "IFRS-15", resp.StandardPack.Code)
	require.Len(t, resp.Aliases, 1)
}

func TestLookupEndpointMissingTerm(t *testing.T) {
	r := newMetadataRouter(t)

	rec := doMetadataRequest(t, r, http.MethodGet, "/metadata/concepts/lookup", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupEndpointUnknownTerm(t *testing.T) {
	r := newMetadataRouter(t)

	rec := doMetadataRequest(t, r, http.MethodGet, "/metadata/concepts/lookup?term=nonsense", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListStandardPacksEndpoint(t *testing.T) {
	r := newMetadataRouter(t)

	rec := doMetadataRequest(t, r, http.MethodGet, "/metadata/standard-packs?domain=FINANCE", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var packs []packView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &packs))
	require.Len(t, packs, 1)
	require.Equal(t, "IFRS-15", packs[0].Code)
}

func TestGetStandardPackEndpointNotFound(t *testing.T) {
	r := newMetadataRouter(t)

	rec := doMetadataRequest(t, r, http.MethodGet, "/metadata/standard-packs/99", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateConceptEndpoint(t *testing.T) {
	r := newMetadataRouter(t)

	rec := doMetadataRequest(t, r, http.MethodPost, "/metadata/concepts/validate",
		`{"domain":"FINANCE","governance_tier":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result TierValidation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.False(t, result.Valid)
	require.Contains(t, result.Errors[0], "must reference a LAW-authority standard pack")
}

func TestValidateConceptEndpointRejectsTierOutOfRange(t *testing.T) {
	r := newMetadataRouter(t)

	rec := doMetadataRequest(t, r, http.MethodPost, "/metadata/concepts/validate",
		`{"domain":"FINANCE","governance_tier":9}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
