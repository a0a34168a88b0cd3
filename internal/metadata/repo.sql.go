package metadata

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and writes metadata governance tables. Every tenant-owned
// query takes the tenant id explicitly so no statement can run unscoped.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const conceptColumns = `id, tenant_id, canonical_key, label, domain, concept_type, governance_tier, standard_pack_id_primary, standard_ref, is_active, created_at, updated_at`

func scanConcept(row pgx.Row) (Concept, error) {
	var c Concept
	err := row.Scan(&c.ID, &c.TenantID, &c.CanonicalKey, &c.Label, &c.Domain, &c.ConceptType, &c.GovernanceTier, &c.StandardPackIDPrimary, &c.StandardRef, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Concept{}, ErrConceptNotFound
		}
		return Concept{}, err
	}
	return c, nil
}

// FindConceptByCanonicalKey resolves a term against canonical keys, case-insensitively.
func (r *Repository) FindConceptByCanonicalKey(ctx context.Context, tenantID uuid.UUID, term string) (Concept, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+conceptColumns+` FROM mdm_concept
WHERE tenant_id=$1 AND LOWER(canonical_key)=LOWER($2)`, tenantID, term)
	return scanConcept(row)
}

// FindConceptByAlias resolves a term against alias values, case-insensitively.
func (r *Repository) FindConceptByAlias(ctx context.Context, tenantID uuid.UUID, term string) (Concept, error) {
	row := r.pool.QueryRow(ctx, `SELECT c.id, c.tenant_id, c.canonical_key, c.label, c.domain, c.concept_type, c.governance_tier, c.standard_pack_id_primary, c.standard_ref, c.is_active, c.created_at, c.updated_at
FROM mdm_concept c
JOIN mdm_alias a ON a.concept_id = c.id
WHERE c.tenant_id=$1 AND LOWER(a.alias_value)=LOWER($2)
LIMIT 1`, tenantID, term)
	return scanConcept(row)
}

// GetConceptByID fetches a tenant-owned concept by id.
func (r *Repository) GetConceptByID(ctx context.Context, tenantID uuid.UUID, id int64) (Concept, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+conceptColumns+` FROM mdm_concept WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scanConcept(row)
}

// GetConceptDetail fetches a concept joined with its primary pack identity.
func (r *Repository) GetConceptDetail(ctx context.Context, tenantID uuid.UUID, id int64) (ConceptDetail, error) {
	var d ConceptDetail
	err := r.pool.QueryRow(ctx, `SELECT c.id, c.tenant_id, c.canonical_key, c.label, c.domain, c.concept_type, c.governance_tier, c.standard_pack_id_primary, c.standard_ref, c.is_active, c.created_at, c.updated_at,
p.code, p.name, p.authority_level
FROM mdm_concept c
LEFT JOIN mdm_standard_pack p ON p.id = c.standard_pack_id_primary
WHERE c.tenant_id=$1 AND c.id=$2`, tenantID, id).
		Scan(&d.ID, &d.TenantID, &d.CanonicalKey, &d.Label, &d.Domain, &d.ConceptType, &d.GovernanceTier, &d.StandardPackIDPrimary, &d.StandardRef, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
			&d.PackCode, &d.PackName, &d.PackAuthorityLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConceptDetail{}, ErrConceptNotFound
		}
		return ConceptDetail{}, err
	}
	return d, nil
}

// ListAliases returns all aliases of a concept, preferred-for-display first.
func (r *Repository) ListAliases(ctx context.Context, conceptID int64) ([]Alias, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, concept_id, alias_value, alias_type, source_system, is_preferred_for_display
FROM mdm_alias WHERE concept_id=$1
ORDER BY is_preferred_for_display DESC, alias_type ASC, alias_value ASC`, conceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var aliases []Alias
	for rows.Next() {
		var a Alias
		if err := rows.Scan(&a.ID, &a.ConceptID, &a.AliasValue, &a.AliasType, &a.SourceSystem, &a.IsPreferredForDisplay); err != nil {
			return nil, err
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

const packColumns = `id, code, name, domain, authority_level, version, status, notes, created_at, updated_at`

func scanPack(row pgx.Row) (StandardPack, error) {
	var p StandardPack
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Domain, &p.AuthorityLevel, &p.Version, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StandardPack{}, ErrPackNotFound
		}
		return StandardPack{}, err
	}
	return p, nil
}

// GetStandardPackByID fetches one pack by id.
func (r *Repository) GetStandardPackByID(ctx context.Context, id int64) (StandardPack, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+packColumns+` FROM mdm_standard_pack WHERE id=$1`, id)
	return scanPack(row)
}

// GetStandardPackByCode fetches one pack by its unique code.
func (r *Repository) GetStandardPackByCode(ctx context.Context, code string) (StandardPack, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+packColumns+` FROM mdm_standard_pack WHERE code=$1`, code)
	return scanPack(row)
}

// ListStandardPacks returns all packs ordered by code, optionally filtered by domain.
func (r *Repository) ListStandardPacks(ctx context.Context, domain string) ([]StandardPack, error) {
	query := `SELECT ` + packColumns + ` FROM mdm_standard_pack`
	args := []any{}
	if domain != "" {
		query += ` WHERE domain=$1`
		args = append(args, domain)
	}
	query += ` ORDER BY code ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var packs []StandardPack
	for rows.Next() {
		var p StandardPack
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Domain, &p.AuthorityLevel, &p.Version, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, rows.Err()
}

// InsertUsageLog appends one lookup telemetry record.
func (r *Repository) InsertUsageLog(ctx context.Context, usage LookupUsage) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO mdm_usage_log (tenant_id, term, found, strategy, observed_at) VALUES ($1,$2,$3,$4,$5)`,
		usage.TenantID, usage.Term, usage.Found, usage.Strategy, usage.ObservedAt)
	return err
}
