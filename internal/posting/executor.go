package posting

import (
	"context"
	"fmt"
	"time"
)

// GuardPort abstracts the validation pipeline for the executor.
type GuardPort interface {
	ValidateJournalBeforePost(ctx context.Context, journal Journal) (ValidationResult, error)
}

// Executor persists validated journals atomically.
type Executor struct {
	guard GuardPort
	repo  RepositoryPort
	now   func() time.Time
}

// NewExecutor constructs the posting executor.
func NewExecutor(guard GuardPort, repo RepositoryPort) *Executor {
	return &Executor{guard: guard, repo: repo, now: time.Now}
}

// WithNow overrides the clock for testing.
func (e *Executor) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// PostJournal re-validates the journal and, on success, writes the header and
// all lines in a single transaction with each line's snapshot embedded
// verbatim. The caller always receives a structured result: rejected for
// business rule failures, error for store failures, with no partial rows in
// either case.
func (e *Executor) PostJournal(ctx context.Context, journal Journal) PostResult {
	validation, err := e.guard.ValidateJournalBeforePost(ctx, journal)
	if err != nil {
		return PostResult{Status: StatusError, Errors: []string{err.Error()}}
	}
	if !validation.Valid {
		return PostResult{Status: StatusRejected, Errors: validation.Errors, Warnings: validation.Warnings}
	}

	if journal.JournalNumber == "" {
		journal.JournalNumber = fmt.Sprintf("JE-%d", e.now().UnixNano())
	}

	var journalID int64
	err = e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertJournalEntry(ctx, journal)
		if err != nil {
			return err
		}
		for _, line := range journal.Lines {
			snapshot, ok := validation.Snapshots[line.LineNumber]
			if !ok {
				return fmt.Errorf("posting: no snapshot for line %d", line.LineNumber)
			}
			if err := tx.InsertJournalLine(ctx, id, line, snapshot); err != nil {
				return err
			}
		}
		journalID = id
		return nil
	})
	if err != nil {
		return PostResult{Status: StatusError, Errors: []string{err.Error()}}
	}

	return PostResult{
		Status:        StatusPosted,
		JournalID:     journalID,
		JournalNumber: journal.JournalNumber,
		Warnings:      validation.Warnings,
	}
}
