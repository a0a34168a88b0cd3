package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/metadata"
)

// defaultGovernanceTier applies when an account carries no explicit tier.
const defaultGovernanceTier = 3

// snapshotConceptUnresolved is the concept_key recorded for tier>=3 lines whose
// account has a concept mapping the guard deliberately does not resolve. The
// sentinel conflates "present but unresolved" with a real value and is kept
// for compatibility with existing audit queries.
const snapshotConceptUnresolved = "unknown"

// MetadataReader exposes the governance reads the guard performs.
type MetadataReader interface {
	GetStandardPackByID(ctx context.Context, id int64) (metadata.StandardPack, error)
	GetConceptDetail(ctx context.Context, tenantID uuid.UUID, id int64) (metadata.ConceptDetail, error)
}

// AccountReader resolves referenced accounts within the journal's tenant.
type AccountReader interface {
	FetchAccountsByIDs(ctx context.Context, tenantID uuid.UUID, ids []int64) ([]Account, error)
}

// Guard validates a journal draft against the metadata lawbook before any
// write is attempted.
type Guard struct {
	meta     MetadataReader
	accounts AccountReader
	now      func() time.Time
}

// NewGuard constructs the posting guard.
func NewGuard(meta MetadataReader, accounts AccountReader) *Guard {
	return &Guard{meta: meta, accounts: accounts, now: time.Now}
}

// WithNow overrides the clock for testing.
func (g *Guard) WithNow(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// ValidateJournalBeforePost runs the full validation pipeline, accumulating
// every applicable violation instead of stopping at the first. Business rule
// failures land in the result; the error return is reserved for store failure.
func (g *Guard) ValidateJournalBeforePost(ctx context.Context, journal Journal) (ValidationResult, error) {
	result := ValidationResult{Snapshots: make(map[int]MetadataSnapshot)}
	validatedAt := g.now()

	g.checkBalance(journal, &result)

	if err := g.checkStandardPack(ctx, journal, &result); err != nil {
		return ValidationResult{}, err
	}

	resolved, err := g.resolveAccounts(ctx, journal, &result)
	if err != nil {
		return ValidationResult{}, err
	}

	if err := g.enforceTiers(ctx, journal, resolved, validatedAt, &result); err != nil {
		return ValidationResult{}, err
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// checkBalance verifies the debit/credit aggregate and per-line shape. The
// aggregate and line-shape checks are independent and all run.
func (g *Guard) checkBalance(journal Journal, result *ValidationResult) {
	if len(journal.Lines) == 0 {
		result.Errors = append(result.Errors, "journal has no lines")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, line := range journal.Lines {
		if line.Debit > 0 && line.Credit > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d has both a debit and a credit amount", line.LineNumber))
		}
		if line.Debit <= 0 && line.Credit <= 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d has neither a debit nor a credit amount", line.LineNumber))
		}
		totalDebit = totalDebit.Add(decimal.NewFromFloat(line.Debit))
		totalCredit = totalCredit.Add(decimal.NewFromFloat(line.Credit))
	}

	debits := totalDebit.Round(2)
	credits := totalCredit.Round(2)
	if !debits.Equal(credits) {
		result.Errors = append(result.Errors, fmt.Sprintf("journal is not balanced: debits %s != credits %s", debits.StringFixed(2), credits.StringFixed(2)))
	}
}

// checkStandardPack requires an ACTIVE governing pack on every journal.
func (g *Guard) checkStandardPack(ctx context.Context, journal Journal, result *ValidationResult) error {
	if journal.SoTPackID == nil {
		result.Errors = append(result.Errors, "journal must declare its governing standard pack")
		return nil
	}
	pack, err := g.meta.GetStandardPackByID(ctx, *journal.SoTPackID)
	if err != nil {
		if errors.Is(err, metadata.ErrPackNotFound) {
			result.Errors = append(result.Errors, fmt.Sprintf("standard pack %d does not exist", *journal.SoTPackID))
			return nil
		}
		return err
	}
	if pack.Status != metadata.PackStatusActive {
		result.Errors = append(result.Errors, fmt.Sprintf("standard pack %s is %s, postings require an ACTIVE pack", pack.Code, pack.Status))
	}
	return nil
}

// resolveAccounts fetches the distinct referenced accounts within the tenant
// and reports every id that fails to resolve.
func (g *Guard) resolveAccounts(ctx context.Context, journal Journal, result *ValidationResult) (map[int64]Account, error) {
	seen := make(map[int64]struct{}, len(journal.Lines))
	ids := make([]int64, 0, len(journal.Lines))
	for _, line := range journal.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	if len(ids) == 0 {
		return map[int64]Account{}, nil
	}

	accounts, err := g.accounts.FetchAccountsByIDs(ctx, journal.TenantID, ids)
	if err != nil {
		return nil, err
	}
	resolved := make(map[int64]Account, len(accounts))
	for _, acct := range accounts {
		resolved[acct.ID] = acct
	}
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("account %d could not be resolved for this tenant", id))
		}
	}
	return resolved, nil
}

// enforceTiers applies tier-based concept anchoring per line and builds the
// metadata snapshot for every line whose account resolved. Snapshot
// construction is never skipped on enforcement failure.
func (g *Guard) enforceTiers(ctx context.Context, journal Journal, resolved map[int64]Account, validatedAt time.Time, result *ValidationResult) error {
	for _, line := range journal.Lines {
		acct, ok := resolved[line.AccountID]
		if !ok {
			// already reported by account resolution
			continue
		}
		tier := defaultGovernanceTier
		if acct.GovernanceTier != nil {
			tier = *acct.GovernanceTier
		}

		if tier > 2 {
			snap := MetadataSnapshot{GovernanceTier: tier, ValidatedAt: validatedAt}
			if acct.MDMConceptID != nil {
				key := snapshotConceptUnresolved
				snap.ConceptKey = &key
			}
			result.Snapshots[line.LineNumber] = snap
			continue
		}

		if acct.MDMConceptID == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s (%s) is governance tier %d but has no concept mapping", acct.Code, acct.Name, tier))
			result.Snapshots[line.LineNumber] = MetadataSnapshot{GovernanceTier: tier, ValidatedAt: validatedAt}
			continue
		}

		detail, err := g.meta.GetConceptDetail(ctx, journal.TenantID, *acct.MDMConceptID)
		if err != nil {
			if errors.Is(err, metadata.ErrConceptNotFound) {
				result.Errors = append(result.Errors, fmt.Sprintf("account %s references concept %d which could not be loaded", acct.Code, *acct.MDMConceptID))
				result.Snapshots[line.LineNumber] = MetadataSnapshot{GovernanceTier: tier, ValidatedAt: validatedAt}
				continue
			}
			return err
		}

		if detail.PackAuthorityLevel != nil && *detail.PackAuthorityLevel != metadata.AuthorityLaw {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s is anchored to pack %s with authority %s, tier %d requires LAW", acct.Code, derefString(detail.PackCode), *detail.PackAuthorityLevel, tier))
		}

		conceptKey := detail.CanonicalKey
		result.Snapshots[line.LineNumber] = MetadataSnapshot{
			ConceptKey:     &conceptKey,
			StandardPack:   detail.PackCode,
			StandardRef:    detail.StandardRef,
			GovernanceTier: tier,
			ValidatedAt:    validatedAt,
		}
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
