package supervision

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Querier(ctx, r.pool)
}

const relCols = `id, resident_provider_id, attending_provider_id, designation,
	effective_date, expiration_date, modality_constraints, concurrency_cap,
	is_active, notes, created_at, updated_at`

func scanRelationship(row pgx.Row) (*Relationship, error) {
	var rel Relationship
	err := row.Scan(&rel.ID, &rel.ResidentProviderID, &rel.AttendingProviderID, &rel.Designation,
		&rel.EffectiveDate, &rel.ExpirationDate, &rel.ModalityConstraints, &rel.ConcurrencyCap,
		&rel.IsActive, &rel.Notes, &rel.CreatedAt, &rel.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return &rel, err
}

// mapWriteErr turns the range exclusion and primary uniqueness constraints
// into ErrConflict.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	code, constraint := db.ConstraintCode(err)
	switch code {
	case db.CodeExclusionViolation, db.CodeUniqueViolation:
		return fmt.Errorf("%w (%s)", ErrConflict, constraint)
	case db.CodeForeignKey:
		return fmt.Errorf("unknown provider: %s", constraint)
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, rel *Relationship) error {
	rel.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO supervision_relationships (id, resident_provider_id, attending_provider_id,
			designation, effective_date, expiration_date, modality_constraints, concurrency_cap,
			is_active, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		rel.ID, rel.ResidentProviderID, rel.AttendingProviderID, rel.Designation,
		rel.EffectiveDate, rel.ExpirationDate, rel.ModalityConstraints, rel.ConcurrencyCap,
		rel.IsActive, rel.Notes).Scan(&rel.CreatedAt, &rel.UpdatedAt)
	return mapWriteErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Relationship, error) {
	return scanRelationship(r.conn(ctx).QueryRow(ctx,
		`SELECT `+relCols+` FROM supervision_relationships WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rel *Relationship) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE supervision_relationships SET resident_provider_id=$2, attending_provider_id=$3,
			designation=$4, effective_date=$5, expiration_date=$6, modality_constraints=$7,
			concurrency_cap=$8, is_active=$9, notes=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		rel.ID, rel.ResidentProviderID, rel.AttendingProviderID, rel.Designation,
		rel.EffectiveDate, rel.ExpirationDate, rel.ModalityConstraints, rel.ConcurrencyCap,
		rel.IsActive, rel.Notes).Scan(&rel.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return mapWriteErr(err)
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE supervision_relationships SET is_active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM supervision_relationships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListActiveByResident(ctx context.Context, residentID uuid.UUID) ([]*Relationship, error) {
	return r.query(ctx, `SELECT `+relCols+` FROM supervision_relationships
		WHERE resident_provider_id = $1 AND is_active ORDER BY effective_date`, residentID)
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Relationship, error) {
	return r.query(ctx, `SELECT `+relCols+` FROM supervision_relationships
		WHERE is_active ORDER BY resident_provider_id, effective_date`)
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Relationship, int, error) {
	var where []string
	var args []interface{}
	if f.ResidentID != nil {
		args = append(args, *f.ResidentID)
		where = append(where, fmt.Sprintf("resident_provider_id = $%d", len(args)))
	}
	if f.AttendingID != nil {
		args = append(args, *f.AttendingID)
		where = append(where, fmt.Sprintf("attending_provider_id = $%d", len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM supervision_relationships`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	items, err := r.query(ctx, fmt.Sprintf(`SELECT %s FROM supervision_relationships%s
		ORDER BY effective_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		relCols, clause, len(args)-1, len(args)), args...)
	return items, total, err
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Relationship, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rel)
	}
	return items, rows.Err()
}
