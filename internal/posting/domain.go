package posting

import (
	"time"

	"github.com/google/uuid"
)

// Account models a chart of accounts row consulted, never mutated, at posting time.
type Account struct {
	ID             int64
	TenantID       uuid.UUID
	Code           string
	Name           string
	MDMConceptID   *int64
	GovernanceTier *int
}

// JournalLine is one leg of a journal draft. LineNumber keys the line's
// metadata snapshot in the validation result.
type JournalLine struct {
	LineNumber  int     `json:"line_number"`
	AccountID   int64   `json:"account_id"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description,omitempty"`
}

// Journal is a proposed accounting transaction, already resolved to ids.
type Journal struct {
	TenantID      uuid.UUID     `json:"tenant_id"`
	PostingDate   time.Time     `json:"posting_date"`
	SoTPackID     *int64        `json:"sot_pack_id"`
	Description   string        `json:"description,omitempty"`
	JournalNumber string        `json:"journal_number,omitempty"`
	Lines         []JournalLine `json:"lines"`
}

// MetadataSnapshot is the immutable audit capture embedded into each persisted
// journal line. All five fields are always present, even when null.
type MetadataSnapshot struct {
	ConceptKey     *string   `json:"concept_key"`
	StandardPack   *string   `json:"standard_pack"`
	StandardRef    *string   `json:"standard_ref"`
	GovernanceTier int       `json:"governance_tier"`
	ValidatedAt    time.Time `json:"validated_at"`
}

// ValidationResult accumulates every applicable violation in one pass.
// Snapshots covers each line whose account resolved, success or failure.
type ValidationResult struct {
	Valid     bool                     `json:"valid"`
	Snapshots map[int]MetadataSnapshot `json:"snapshots"`
	Errors    []string                 `json:"errors"`
	Warnings  []string                 `json:"warnings"`
}

// PostStatus distinguishes the three posting outcomes.
type PostStatus string

const (
	// StatusPosted means the journal and all lines were written.
	StatusPosted PostStatus = "posted"
	// StatusRejected means a business rule failed; nothing was written.
	StatusRejected PostStatus = "rejected"
	// StatusError means the store failed; the transaction rolled back.
	StatusError PostStatus = "error"
)

// PostResult is the structured outcome of a posting attempt. Only
// StatusError is meaningfully retryable without caller changes.
type PostResult struct {
	Status        PostStatus `json:"status"`
	JournalID     int64      `json:"journal_id,omitempty"`
	JournalNumber string     `json:"journal_number,omitempty"`
	Errors        []string   `json:"errors,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
}
