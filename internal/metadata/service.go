package metadata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ReadRepository abstracts the metadata reads the lookup service performs.
type ReadRepository interface {
	FindConceptByCanonicalKey(ctx context.Context, tenantID uuid.UUID, term string) (Concept, error)
	FindConceptByAlias(ctx context.Context, tenantID uuid.UUID, term string) (Concept, error)
	GetConceptByID(ctx context.Context, tenantID uuid.UUID, id int64) (Concept, error)
	GetConceptDetail(ctx context.Context, tenantID uuid.UUID, id int64) (ConceptDetail, error)
	ListAliases(ctx context.Context, conceptID int64) ([]Alias, error)
	GetStandardPackByID(ctx context.Context, id int64) (StandardPack, error)
	ListStandardPacks(ctx context.Context, domain string) ([]StandardPack, error)
}

// UsageRecorder captures lookup telemetry. Implementations must be safe to
// fail: the service never propagates a recorder error to the caller.
type UsageRecorder interface {
	Record(ctx context.Context, usage LookupUsage) error
}

// Service is the metadata lookup layer over the governance tables.
type Service struct {
	repo     ReadRepository
	recorder UsageRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the lookup service.
func NewService(repo ReadRepository, recorder UsageRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, recorder: recorder, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// LookupConcept resolves a term case-insensitively: canonical key first, then
// aliases owned by the same tenant. Every attempt is recorded for usage
// analytics, found or not.
func (s *Service) LookupConcept(ctx context.Context, tenantID uuid.UUID, term string) (ConceptView, error) {
	if term == "" {
		return ConceptView{}, errors.New("metadata: term required")
	}

	strategy := MatchCanonical
	concept, err := s.repo.FindConceptByCanonicalKey(ctx, tenantID, term)
	if errors.Is(err, ErrConceptNotFound) {
		strategy = MatchAlias
		concept, err = s.repo.FindConceptByAlias(ctx, tenantID, term)
	}
	if err != nil {
		if errors.Is(err, ErrConceptNotFound) {
			s.recordUsage(ctx, tenantID, term, false, MatchNone)
			return ConceptView{}, ErrConceptNotFound
		}
		return ConceptView{}, err
	}

	view := ConceptView{Concept: concept, MatchedBy: strategy}
	if concept.StandardPackIDPrimary != nil {
		pack, err := s.repo.GetStandardPackByID(ctx, *concept.StandardPackIDPrimary)
		if err != nil && !errors.Is(err, ErrPackNotFound) {
			return ConceptView{}, err
		}
		if err == nil {
			view.Pack = &pack
		}
	}
	aliases, err := s.repo.ListAliases(ctx, concept.ID)
	if err != nil {
		return ConceptView{}, err
	}
	view.Aliases = aliases

	s.recordUsage(ctx, tenantID, term, true, strategy)
	return view, nil
}

// ListStandardPacks returns packs ordered by code, optionally scoped by domain.
func (s *Service) ListStandardPacks(ctx context.Context, domain string) ([]StandardPack, error) {
	return s.repo.ListStandardPacks(ctx, domain)
}

// GetStandardPackByID fetches one pack.
func (s *Service) GetStandardPackByID(ctx context.Context, id int64) (StandardPack, error) {
	return s.repo.GetStandardPackByID(ctx, id)
}

// GetConceptByID fetches a concept augmented with its primary pack identity.
func (s *Service) GetConceptByID(ctx context.Context, tenantID uuid.UUID, id int64) (ConceptDetail, error) {
	return s.repo.GetConceptDetail(ctx, tenantID, id)
}

// recordUsage is fire-and-forget: a telemetry failure must not fail the lookup.
func (s *Service) recordUsage(ctx context.Context, tenantID uuid.UUID, term string, found bool, strategy MatchStrategy) {
	if s.recorder == nil {
		return
	}
	usage := LookupUsage{
		TenantID:   tenantID,
		Term:       term,
		Found:      found,
		Strategy:   string(strategy),
		ObservedAt: s.now(),
	}
	if err := s.recorder.Record(ctx, usage); err != nil && s.logger != nil {
		s.logger.Warn("record lookup usage", slog.String("term", term), slog.Any("error", err))
	}
}
