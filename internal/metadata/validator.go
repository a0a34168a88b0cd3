package metadata

import (
	"context"
	"errors"
	"fmt"
)

// PackGetter is the single read the tier validator needs.
type PackGetter interface {
	GetStandardPackByID(ctx context.Context, id int64) (StandardPack, error)
}

// TierValidation carries the outcome of a tier enforcement check. Business
// violations land in Errors; Warnings never block.
type TierValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validator enforces governance tier rules at concept-definition time.
type Validator struct {
	packs PackGetter
}

// NewValidator constructs the concept validator.
func NewValidator(packs PackGetter) *Validator {
	return &Validator{packs: packs}
}

// governedTier reports whether a tier falls under strict anchoring rules.
func governedTier(tier int) bool {
	return tier == 1 || tier == 2
}

// ValidateTierEnforcement applies the rule that Tier 1/2 FINANCE concepts must
// reference a LAW-authority standard pack. The error return is reserved for
// store failure; rule violations are reported inside the result.
func (v *Validator) ValidateTierEnforcement(ctx context.Context, domain string, governanceTier int, standardPackID *int64) (TierValidation, error) {
	result := TierValidation{Valid: true}
	if domain != DomainFinance || !governedTier(governanceTier) {
		return result, nil
	}

	if standardPackID == nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("tier %d FINANCE concepts must reference a LAW-authority standard pack", governanceTier))
		return result, nil
	}

	pack, err := v.packs.GetStandardPackByID(ctx, *standardPackID)
	if err != nil {
		if errors.Is(err, ErrPackNotFound) {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("standard pack %d does not exist", *standardPackID))
			return result, nil
		}
		return TierValidation{}, err
	}

	if pack.AuthorityLevel != AuthorityLaw {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("standard pack %s has authority %s, tier %d FINANCE concepts require LAW", pack.Code, pack.AuthorityLevel, governanceTier))
	}
	if pack.Status == PackStatusDeprecated {
		result.Warnings = append(result.Warnings, fmt.Sprintf("standard pack %s is DEPRECATED, migrate to an active pack", pack.Code))
	}
	return result, nil
}

// ConceptInput carries the fields tier enforcement inspects.
type ConceptInput struct {
	Domain                string
	ConceptType           string
	GovernanceTier        int
	StandardPackIDPrimary *int64
}

// ValidateConcept is the single entry point concept-management code must call
// before persisting a concept.
func (v *Validator) ValidateConcept(ctx context.Context, in ConceptInput) (TierValidation, error) {
	return v.ValidateTierEnforcement(ctx, in.Domain, in.GovernanceTier, in.StandardPackIDPrimary)
}
