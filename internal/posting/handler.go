package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/metadata"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// idempotencyModule scopes posting keys in the idempotency store.
const idempotencyModule = "POSTING"

// rejectionRule buckets a rejection message into a coarse rule label for the
// guard rejection counter.
func rejectionRule(msg string) string {
	switch {
	case strings.Contains(msg, "tier"), strings.Contains(msg, "concept"):
		return "tier_enforcement"
	case strings.Contains(msg, "standard pack"):
		return "standard_pack"
	case strings.Contains(msg, "account"):
		return "account_resolution"
	case strings.Contains(msg, "balanced"), strings.Contains(msg, "debit"), strings.Contains(msg, "credit"), strings.Contains(msg, "lines"):
		return "balance"
	default:
		return "other"
	}
}

// PackResolver resolves a pack code to its row for the inbound contract.
type PackResolver interface {
	GetStandardPackByCode(ctx context.Context, code string) (metadata.StandardPack, error)
}

// AccountCodeResolver resolves account codes within a tenant.
type AccountCodeResolver interface {
	FetchAccountsByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]Account, error)
}

// Handler wires the journal validation and posting endpoints. It owns the
// code-to-id resolution step; the guard and executor only ever see ids.
type Handler struct {
	logger      *slog.Logger
	guard       *Guard
	executor    *Executor
	accounts    AccountCodeResolver
	packs       PackResolver
	idempotency *shared.IdempotencyStore
	metrics     *observability.Metrics
	validate    *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, guard *Guard, executor *Executor, accounts AccountCodeResolver, packs PackResolver, idempotency *shared.IdempotencyStore, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:      logger,
		guard:       guard,
		executor:    executor,
		accounts:    accounts,
		packs:       packs,
		idempotency: idempotency,
		metrics:     metrics,
		validate:    validator.New(),
	}
}

// MountRoutes registers posting routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/journals/validate", h.validateJournal)
	r.Post("/journals", h.postJournal)
}

type journalLineRequest struct {
	AccountCode string  `json:"account_code" validate:"required"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description"`
}

type journalRequest struct {
	PostingDate      string               `json:"posting_date" validate:"required,datetime=2006-01-02"`
	StandardPackCode string               `json:"standard_pack_code"`
	Description      string               `json:"description"`
	JournalNumber    string               `json:"journal_number"`
	Lines            []journalLineRequest `json:"lines" validate:"dive"`
}

// resolveJournal converts the human-readable draft into an id-based journal.
// Unresolvable codes are reported as rejection errors without reaching the
// guard.
func (h *Handler) resolveJournal(ctx context.Context, tenantID uuid.UUID, req journalRequest) (Journal, []string, error) {
	postingDate, err := time.Parse("2006-01-02", req.PostingDate)
	if err != nil {
		return Journal{}, []string{"posting_date must be formatted YYYY-MM-DD"}, nil
	}

	journal := Journal{
		TenantID:      tenantID,
		PostingDate:   postingDate,
		Description:   req.Description,
		JournalNumber: req.JournalNumber,
	}

	seen := make(map[string]struct{}, len(req.Lines))
	codes := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		if _, ok := seen[line.AccountCode]; ok {
			continue
		}
		seen[line.AccountCode] = struct{}{}
		codes = append(codes, line.AccountCode)
	}

	var (
		pack      metadata.StandardPack
		packFound bool
		accounts  []Account
	)
	g, gctx := errgroup.WithContext(ctx)
	if req.StandardPackCode != "" {
		g.Go(func() error {
			var err error
			pack, err = h.packs.GetStandardPackByCode(gctx, req.StandardPackCode)
			if err != nil {
				if errors.Is(err, metadata.ErrPackNotFound) {
					return nil
				}
				return err
			}
			packFound = true
			return nil
		})
	}
	g.Go(func() error {
		var err error
		accounts, err = h.accounts.FetchAccountsByCodes(gctx, tenantID, codes)
		return err
	})
	if err := g.Wait(); err != nil {
		return Journal{}, nil, err
	}

	var resolutionErrors []string
	if req.StandardPackCode != "" {
		if packFound {
			journal.SoTPackID = &pack.ID
		} else {
			resolutionErrors = append(resolutionErrors, fmt.Sprintf("standard pack code %s not found", req.StandardPackCode))
		}
	}

	byCode := make(map[string]Account, len(accounts))
	for _, acct := range accounts {
		byCode[acct.Code] = acct
	}
	for idx, line := range req.Lines {
		acct, ok := byCode[line.AccountCode]
		if !ok {
			resolutionErrors = append(resolutionErrors, fmt.Sprintf("account code %s not found for this tenant", line.AccountCode))
			continue
		}
		journal.Lines = append(journal.Lines, JournalLine{
			LineNumber:  idx + 1,
			AccountID:   acct.ID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return journal, resolutionErrors, nil
}

func (h *Handler) observeRejections(errs []string) {
	for _, msg := range errs {
		h.metrics.ObserveRejection(rejectionRule(msg))
	}
}

func (h *Handler) decodeJournal(w http.ResponseWriter, r *http.Request) (journalRequest, uuid.UUID, bool) {
	tenantID, ok := shared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Tenant Required", "request has no tenant scope")
		return journalRequest{}, uuid.Nil, false
	}
	var req journalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return journalRequest{}, uuid.Nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return journalRequest{}, uuid.Nil, false
	}
	return req, tenantID, true
}

func (h *Handler) validateJournal(w http.ResponseWriter, r *http.Request) {
	req, tenantID, ok := h.decodeJournal(w, r)
	if !ok {
		return
	}
	journal, resolutionErrors, err := h.resolveJournal(r.Context(), tenantID, req)
	if err != nil {
		h.logger.Error("resolve journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if len(resolutionErrors) > 0 {
		httpx.JSON(w, http.StatusUnprocessableEntity, ValidationResult{Errors: resolutionErrors, Snapshots: map[int]MetadataSnapshot{}})
		return
	}

	result, err := h.guard.ValidateJournalBeforePost(r.Context(), journal)
	if err != nil {
		h.logger.Error("validate journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.observeRejections(result.Errors)
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	req, tenantID, ok := h.decodeJournal(w, r)
	if !ok {
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), tenantID, idemKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate", "journal already posted for this idempotency key")
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}
	releaseKey := func() {
		if idemKey != "" && h.idempotency != nil {
			if err := h.idempotency.Delete(r.Context(), tenantID, idemKey); err != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", err))
			}
		}
	}

	journal, resolutionErrors, err := h.resolveJournal(r.Context(), tenantID, req)
	if err != nil {
		releaseKey()
		h.logger.Error("resolve journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if len(resolutionErrors) > 0 {
		releaseKey()
		h.metrics.ObservePosting(string(StatusRejected))
		httpx.JSON(w, http.StatusUnprocessableEntity, PostResult{Status: StatusRejected, Errors: resolutionErrors})
		return
	}

	result := h.executor.PostJournal(r.Context(), journal)
	h.metrics.ObservePosting(string(result.Status))
	if result.Status == StatusRejected {
		h.observeRejections(result.Errors)
	}
	switch result.Status {
	case StatusPosted:
		httpx.JSON(w, http.StatusCreated, result)
	case StatusRejected:
		releaseKey()
		httpx.JSON(w, http.StatusUnprocessableEntity, result)
	default:
		releaseKey()
		h.logger.Error("post journal", slog.String("errors", fmt.Sprintf("%v", result.Errors)))
		httpx.JSON(w, http.StatusInternalServerError, result)
	}
}
