package posting

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/metadata"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type stubCodeResolver struct {
	accounts []Account
}

func (r stubCodeResolver) FetchAccountsByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]Account, error) {
	var matched []Account
	for _, acct := range r.accounts {
		for _, code := range codes {
			if acct.Code == code {
				matched = append(matched, acct)
			}
		}
	}
	return matched, nil
}

type stubPackResolver struct {
	packs map[string]metadata.StandardPack
}

func (r stubPackResolver) GetStandardPackByCode(ctx context.Context, code string) (metadata.StandardPack, error) {
	pack, ok := r.packs[code]
	if !ok {
		return metadata.StandardPack{}, metadata.ErrPackNotFound
	}
	return pack, nil
}

func newTestRouter(t *testing.T, repo *recordingRepo) chi.Router {
	t.Helper()
	accounts := []Account{
		{ID: 1, TenantID: testTenant, Code: "1000", Name: "Cash", GovernanceTier: intPtr(3)},
		{ID: 2, TenantID: testTenant, Code: "2000", Name: "Payables", GovernanceTier: intPtr(3)},
	}
	meta := stubMeta{packs: map[int64]metadata.StandardPack{10: activeLawPack(10, "IFRS-15")}}
	guard := newTestGuard(meta, stubAccounts{accounts: accounts})
	executor := NewExecutor(guard, repo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, guard, executor, stubCodeResolver{accounts: accounts},
		stubPackResolver{packs: map[string]metadata.StandardPack{"IFRS-15": activeLawPack(10, "IFRS-15")}},
		nil, observability.NewMetrics())

	r := chi.NewRouter()
	r.Use(shared.TenantMiddleware(nil))
	r.Route("/accounting", handler.MountRoutes)
	return r
}

func doJournalRequest(t *testing.T, r chi.Router, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(shared.TenantHeader, testTenant.String())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const balancedBody = `{
	"posting_date": "2026-03-15",
	"standard_pack_code": "IFRS-15",
	"description": "March accrual",
	"lines": [
		{"account_code": "1000", "debit": 150},
		{"account_code": "2000", "credit": 150}
	]
}`

func TestValidateJournalEndpointReturnsResult(t *testing.T) {
	r := newTestRouter(t, &recordingRepo{})

	rec := doJournalRequest(t, r, "/accounting/journals/validate", balancedBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var result ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Valid)
	require.Len(t, result.Snapshots, 2)
}

func TestValidateJournalEndpointUnknownAccountCode(t *testing.T) {
	r := newTestRouter(t, &recordingRepo{})

	body := strings.ReplaceAll(balancedBody, "2000", "9999")
	rec := doJournalRequest(t, r, "/accounting/journals/validate", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Contains(t, result.Errors, "account code 9999 not found for this tenant")
}

func TestPostJournalEndpointCreates(t *testing.T) {
	repo := &recordingRepo{}
	r := newTestRouter(t, repo)

	rec := doJournalRequest(t, r, "/accounting/journals", balancedBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result PostResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, StatusPosted, result.Status)
	require.Equal(t, int64(42), result.JournalID)
	require.True(t, repo.committed)
	require.Len(t, repo.lines, 2)
}

func TestPostJournalEndpointRejectsUnbalanced(t *testing.T) {
	repo := &recordingRepo{}
	r := newTestRouter(t, repo)

	body := strings.ReplaceAll(balancedBody, `"credit": 150`, `"credit": 140`)
	rec := doJournalRequest(t, r, "/accounting/journals", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result PostResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, StatusRejected, result.Status)
	require.Empty(t, repo.entries)
}

func TestPostJournalEndpointRejectsNegativeAmounts(t *testing.T) {
	r := newTestRouter(t, &recordingRepo{})

	body := strings.ReplaceAll(balancedBody, `"debit": 150`, `"debit": -150`)
	rec := doJournalRequest(t, r, "/accounting/journals", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostJournalEndpointRequiresTenant(t *testing.T) {
	r := newTestRouter(t, &recordingRepo{})

	req := httptest.NewRequest(http.MethodPost, "/accounting/journals", strings.NewReader(balancedBody))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
