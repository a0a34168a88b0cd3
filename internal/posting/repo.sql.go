package posting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists journals and reads the chart of accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrJournalNumberConflict indicates the journal number is already taken.
var ErrJournalNumberConflict = errors.New("posting: journal number already exists")

// TxRepository exposes the transactional writes of the executor.
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, journal Journal) (int64, error)
	InsertJournalLine(ctx context.Context, journalID int64, line JournalLine, snapshot MetadataSnapshot) error
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("posting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, journal Journal) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, posting_date, sot_pack_id, description, journal_number)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		journal.TenantID, journal.PostingDate, journal.SoTPackID, journal.Description, journal.JournalNumber).Scan(&id)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return 0, ErrJournalNumberConflict
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertJournalLine(ctx context.Context, journalID int64, line JournalLine, snapshot MetadataSnapshot) error {
	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, line_number, account_id, debit, credit, description, metadata_snapshot)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		journalID, line.LineNumber, line.AccountID, toNumeric(line.Debit), toNumeric(line.Credit), line.Description, snapJSON)
	return err
}

// FetchAccountsByIDs returns the accounts matching the given ids within the
// tenant. Ids with no matching row are simply absent from the result.
func (r *Repository) FetchAccountsByIDs(ctx context.Context, tenantID uuid.UUID, ids []int64) ([]Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, code, name, mdm_concept_id, governance_tier
FROM accounts WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.MDMConceptID, &a.GovernanceTier); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// FetchAccountsByCodes resolves human-readable account codes within the tenant.
func (r *Repository) FetchAccountsByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]Account, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, code, name, mdm_concept_id, governance_tier
FROM accounts WHERE tenant_id=$1 AND code = ANY($2)`, tenantID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.MDMConceptID, &a.GovernanceTier); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
