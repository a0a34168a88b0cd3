package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubReadRepo struct {
	byCanonical map[string]Concept
	byAlias     map[string]Concept
	packs       map[int64]StandardPack
	aliases     map[int64][]Alias
	details     map[int64]ConceptDetail
}

func (r stubReadRepo) FindConceptByCanonicalKey(ctx context.Context, tenantID uuid.UUID, term string) (Concept, error) {
	c, ok := r.byCanonical[term]
	if !ok {
		return Concept{}, ErrConceptNotFound
	}
	return c, nil
}

func (r stubReadRepo) FindConceptByAlias(ctx context.Context, tenantID uuid.UUID, term string) (Concept, error) {
	c, ok := r.byAlias[term]
	if !ok {
		return Concept{}, ErrConceptNotFound
	}
	return c, nil
}

func (r stubReadRepo) GetConceptByID(ctx context.Context, tenantID uuid.UUID, id int64) (Concept, error) {
	return Concept{}, ErrConceptNotFound
}

func (r stubReadRepo) GetConceptDetail(ctx context.Context, tenantID uuid.UUID, id int64) (ConceptDetail, error) {
	d, ok := r.details[id]
	if !ok {
		return ConceptDetail{}, ErrConceptNotFound
	}
	return d, nil
}

func (r stubReadRepo) ListAliases(ctx context.Context, conceptID int64) ([]Alias, error) {
	return r.aliases[conceptID], nil
}

func (r stubReadRepo) GetStandardPackByID(ctx context.Context, id int64) (StandardPack, error) {
	p, ok := r.packs[id]
	if !ok {
		return StandardPack{}, ErrPackNotFound
	}
	return p, nil
}

func (r stubReadRepo) ListStandardPacks(ctx context.Context, domain string) ([]StandardPack, error) {
	var packs []StandardPack
	for _, p := range r.packs {
		if domain == "" || p.Domain == domain {
			packs = append(packs, p)
		}
	}
	return packs, nil
}

type capturingRecorder struct {
	records []LookupUsage
	err     error
}

func (c *capturingRecorder) Record(ctx context.Context, usage LookupUsage) error {
	c.records = append(c.records, usage)
	return c.err
}

var lookupTenant = uuid.MustParse("22222222-2222-2222-2222-222222222222")

func lookupFixture() stubReadRepo {
	packID := int64(1)
	revenue := Concept{
		ID:                    7,
		TenantID:              lookupTenant,
		CanonicalKey:          "revenue.recognized",
		Label:                 "Recognized Revenue",
		Domain:                DomainFinance,
		GovernanceTier:        1,
		StandardPackIDPrimary: &packID,
		IsActive:              true,
	}
	return stubReadRepo{
		byCanonical: map[string]Concept{"revenue.recognized": revenue},
		byAlias:     map[string]Concept{"Net Revenue": revenue},
		packs: map[int64]StandardPack{
			1: {ID: 1, Code: "IFRS-15", Domain: DomainFinance, AuthorityLevel: AuthorityLaw, Status: PackStatusActive},
		},
		aliases: map[int64][]Alias{
			7: {{ID: 1, ConceptID: 7, AliasValue: "Net Revenue", IsPreferredForDisplay: true}},
		},
	}
}

func TestLookupConceptCanonicalMatch(t *testing.T) {
	recorder := &capturingRecorder{}
	svc := NewService(lookupFixture(), recorder, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) })

	view, err := svc.LookupConcept(context.Background(), lookupTenant, "revenue.recognized")
	require.NoError(t, err)
	require.Equal(t, MatchCanonical, view.MatchedBy)
	require.Equal(t, "revenue.recognized", view.Concept.CanonicalKey)
	require.NotNil(t, view.Pack)
	require.Equal(t, "IFRS-15", view.Pack.Code)
	require.Len(t, view.Aliases, 1)

	require.Len(t, recorder.records, 1)
	require.True(t, recorder.records[0].Found)
	require.Equal(t, "canonical", recorder.records[0].Strategy)
}

func TestLookupConceptAliasFallback(t *testing.T) {
	recorder := &capturingRecorder{}
	svc := NewService(lookupFixture(), recorder, nil)

	view, err := svc.LookupConcept(context.Background(), lookupTenant, "Net Revenue")
	require.NoError(t, err)
	require.Equal(t, MatchAlias, view.MatchedBy)
	require.Equal(t, "revenue.recognized", view.Concept.CanonicalKey)

	require.Len(t, recorder.records, 1)
	require.Equal(t, "alias", recorder.records[0].Strategy)
}

func TestLookupConceptMissRecordsUsage(t *testing.T) {
	recorder := &capturingRecorder{}
	svc := NewService(lookupFixture(), recorder, nil)

	_, err := svc.LookupConcept(context.Background(), lookupTenant, "no such term")
	require.ErrorIs(t, err, ErrConceptNotFound)

	require.Len(t, recorder.records, 1)
	require.False(t, recorder.records[0].Found)
	require.Equal(t, "none", recorder.records[0].Strategy)
	require.Equal(t, "no such term", recorder.records[0].Term)
}

func TestLookupConceptRecorderFailureDoesNotFailLookup(t *testing.T) {
	recorder := &capturingRecorder{err: errors.New("queue unavailable")}
	svc := NewService(lookupFixture(), recorder, nil)

	view, err := svc.LookupConcept(context.Background(), lookupTenant, "revenue.recognized")
	require.NoError(t, err)
	require.Equal(t, MatchCanonical, view.MatchedBy)
}

func TestLookupConceptEmptyTermRejected(t *testing.T) {
	svc := NewService(lookupFixture(), nil, nil)

	_, err := svc.LookupConcept(context.Background(), lookupTenant, "")
	require.Error(t, err)
}

func TestLookupConceptToleratesDanglingPack(t *testing.T) {
	repo := lookupFixture()
	repo.packs = map[int64]StandardPack{}
	svc := NewService(repo, nil, nil)

	view, err := svc.LookupConcept(context.Background(), lookupTenant, "revenue.recognized")
	require.NoError(t, err)
	require.Nil(t, view.Pack)
}
