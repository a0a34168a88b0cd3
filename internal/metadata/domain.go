package metadata

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AuthorityLevel ranks how binding a standard pack is.
type AuthorityLevel string

const (
	AuthorityLaw      AuthorityLevel = "LAW"
	AuthorityIndustry AuthorityLevel = "INDUSTRY"
	AuthorityInternal AuthorityLevel = "INTERNAL"
)

// PackStatus enumerates standard pack lifecycle states.
type PackStatus string

const (
	PackStatusActive     PackStatus = "ACTIVE"
	PackStatusDeprecated PackStatus = "DEPRECATED"
)

// DomainFinance marks concepts governed by the finance lawbook.
const DomainFinance = "FINANCE"

// StandardPack is a named regulatory or interpretive standard.
type StandardPack struct {
	ID             int64
	Code           string
	Name           string
	Domain         string
	AuthorityLevel AuthorityLevel
	Version        string
	Status         PackStatus
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Concept is a canonical business term scoped to a tenant.
type Concept struct {
	ID                    int64
	TenantID              uuid.UUID
	CanonicalKey          string
	Label                 string
	Domain                string
	ConceptType           string
	GovernanceTier        int
	StandardPackIDPrimary *int64
	StandardRef           *string
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Alias maps an alternate lexical name onto a concept.
type Alias struct {
	ID                    int64
	ConceptID             int64
	AliasValue            string
	AliasType             string
	SourceSystem          string
	IsPreferredForDisplay bool
}

// MatchStrategy records which lookup path resolved a term.
type MatchStrategy string

const (
	MatchCanonical MatchStrategy = "canonical"
	MatchAlias     MatchStrategy = "alias"
	MatchNone      MatchStrategy = "none"
)

// ConceptView is the lookup result: the concept, its primary pack when
// resolvable, and all aliases ordered for display.
type ConceptView struct {
	Concept   Concept
	Pack      *StandardPack
	Aliases   []Alias
	MatchedBy MatchStrategy
}

// ConceptDetail is a concept augmented with its primary pack's identity.
type ConceptDetail struct {
	Concept
	PackCode           *string
	PackName           *string
	PackAuthorityLevel *AuthorityLevel
}

// LookupUsage is one telemetry record per lookup attempt.
type LookupUsage struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	Term       string    `json:"term"`
	Found      bool      `json:"found"`
	Strategy   string    `json:"strategy"`
	ObservedAt time.Time `json:"observed_at"`
}

var (
	// ErrConceptNotFound indicates no concept matched the term or id.
	ErrConceptNotFound = errors.New("metadata: concept not found")
	// ErrPackNotFound indicates the standard pack does not exist.
	ErrPackNotFound = errors.New("metadata: standard pack not found")
)
