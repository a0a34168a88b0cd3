package metadata

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for metadata lookups and concept validation.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	tierRules *Validator
	cache     *PackCache
	validate  *validator.Validate
	listGroup singleflight.Group
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tierRules *Validator, cache *PackCache) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		tierRules: tierRules,
		cache:     cache,
		validate:  validator.New(),
	}
}

// MountRoutes registers metadata routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/concepts/lookup", h.lookupConcept)
	r.Get("/concepts/{id}", h.getConcept)
	r.Post("/concepts/validate", h.validateConcept)
	r.Get("/standard-packs", h.listStandardPacks)
	r.Get("/standard-packs/{id}", h.getStandardPack)
}

type aliasView struct {
	Value                 string `json:"value"`
	Type                  string `json:"type"`
	SourceSystem          string `json:"source_system"`
	IsPreferredForDisplay bool   `json:"is_preferred_for_display"`
}

type packView struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Domain         string `json:"domain"`
	AuthorityLevel string `json:"authority_level"`
	Version        string `json:"version"`
	Status         string `json:"status"`
	Notes          string `json:"notes,omitempty"`
}

type conceptLookupResponse struct {
	ID             int64       `json:"id"`
	CanonicalKey   string      `json:"canonical_key"`
	Label          string      `json:"label"`
	Domain         string      `json:"domain"`
	ConceptType    string      `json:"concept_type"`
	GovernanceTier int         `json:"governance_tier"`
	StandardRef    *string     `json:"standard_ref"`
	IsActive       bool        `json:"is_active"`
	MatchedBy      string      `json:"matched_by"`
	StandardPack   *packView   `json:"standard_pack"`
	Aliases        []aliasView `json:"aliases"`
}

func toPackView(p StandardPack) packView {
	return packView{
		ID:             p.ID,
		Code:           p.Code,
		Name:           p.Name,
		Domain:         p.Domain,
		AuthorityLevel: string(p.AuthorityLevel),
		Version:        p.Version,
		Status:         string(p.Status),
		Notes:          p.Notes,
	}
}

func (h *Handler) lookupConcept(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := shared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Tenant Required", "request has no tenant scope")
		return
	}
	term := r.URL.Query().Get("term")
	if term == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "query parameter term is required")
		return
	}

	view, err := h.service.LookupConcept(r.Context(), tenantID, term)
	if err != nil {
		if errors.Is(err, ErrConceptNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no concept matches term "+term)
			return
		}
		h.logger.Error("lookup concept", slog.String("term", term), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := conceptLookupResponse{
		ID:             view.Concept.ID,
		CanonicalKey:   view.Concept.CanonicalKey,
		Label:          view.Concept.Label,
		Domain:         view.Concept.Domain,
		ConceptType:    view.Concept.ConceptType,
		GovernanceTier: view.Concept.GovernanceTier,
		StandardRef:    view.Concept.StandardRef,
		IsActive:       view.Concept.IsActive,
		MatchedBy:      string(view.MatchedBy),
		Aliases:        make([]aliasView, 0, len(view.Aliases)),
	}
	if view.Pack != nil {
		pv := toPackView(*view.Pack)
		resp.StandardPack = &pv
	}
	for _, a := range view.Aliases {
		resp.Aliases = append(resp.Aliases, aliasView{
			Value:                 a.AliasValue,
			Type:                  a.AliasType,
			SourceSystem:          a.SourceSystem,
			IsPreferredForDisplay: a.IsPreferredForDisplay,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type conceptDetailResponse struct {
	ID                 int64   `json:"id"`
	CanonicalKey       string  `json:"canonical_key"`
	Label              string  `json:"label"`
	Domain             string  `json:"domain"`
	ConceptType        string  `json:"concept_type"`
	GovernanceTier     int     `json:"governance_tier"`
	StandardRef        *string `json:"standard_ref"`
	IsActive           bool    `json:"is_active"`
	PackCode           *string `json:"pack_code"`
	PackName           *string `json:"pack_name"`
	PackAuthorityLevel *string `json:"pack_authority_level"`
}

func (h *Handler) getConcept(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := shared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Tenant Required", "request has no tenant scope")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid concept id")
		return
	}
	detail, err := h.service.GetConceptByID(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, ErrConceptNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "concept not found")
			return
		}
		h.logger.Error("get concept", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := conceptDetailResponse{
		ID:             detail.ID,
		CanonicalKey:   detail.CanonicalKey,
		Label:          detail.Label,
		Domain:         detail.Domain,
		ConceptType:    detail.ConceptType,
		GovernanceTier: detail.GovernanceTier,
		StandardRef:    detail.StandardRef,
		IsActive:       detail.IsActive,
		PackCode:       detail.PackCode,
		PackName:       detail.PackName,
	}
	if detail.PackAuthorityLevel != nil {
		level := string(*detail.PackAuthorityLevel)
		resp.PackAuthorityLevel = &level
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type validateConceptRequest struct {
	Domain                string `json:"domain" validate:"required"`
	ConceptType           string `json:"concept_type"`
	GovernanceTier        int    `json:"governance_tier" validate:"min=1,max=5"`
	StandardPackIDPrimary *int64 `json:"standard_pack_id_primary"`
}

func (h *Handler) validateConcept(w http.ResponseWriter, r *http.Request) {
	var req validateConceptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.tierRules.ValidateConcept(r.Context(), ConceptInput{
		Domain:                req.Domain,
		ConceptType:           req.ConceptType,
		GovernanceTier:        req.GovernanceTier,
		StandardPackIDPrimary: req.StandardPackIDPrimary,
	})
	if err != nil {
		h.logger.Error("validate concept", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listStandardPacks(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")

	value, err, _ := h.listGroup.Do("packs:"+domain, func() (any, error) {
		return h.cache.Fetch(r.Context(), domain, func(ctx context.Context) ([]StandardPack, error) {
			return h.service.ListStandardPacks(ctx, domain)
		})
	})
	if err != nil {
		h.logger.Error("list standard packs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	packs, _ := value.([]StandardPack)
	views := make([]packView, 0, len(packs))
	for _, p := range packs {
		views = append(views, toPackView(p))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) getStandardPack(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid pack id")
		return
	}
	pack, err := h.service.GetStandardPackByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPackNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "standard pack not found")
			return
		}
		h.logger.Error("get standard pack", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPackView(pack))
}
