package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/db"
)

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	code, constraint := db.ConstraintCode(err)
	switch code {
	case db.CodeUniqueViolation:
		return fmt.Errorf("%w (%s)", ErrDuplicate, constraint)
	case db.CodeForeignKey:
		return fmt.Errorf("%w: referenced record (%s)", ErrNotFound, constraint)
	}
	return err
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

func rowsAffected(n int64) error {
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// =========== Provider Repository ===========

type providerRepoPG struct{ pool *pgxpool.Pool }

func NewProviderRepoPG(pool *pgxpool.Pool) ProviderRepository { return &providerRepoPG{pool: pool} }

func (r *providerRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Querier(ctx, r.pool)
}

const providerCols = `id, first_name, last_name, npi, role, email, is_bookable,
	accepts_new_patients, created_at, updated_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.NPI, &p.Role, &p.Email, &p.IsBookable,
		&p.AcceptsNewPatients, &p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *providerRepoPG) Create(ctx context.Context, p *Provider) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO providers (id, first_name, last_name, npi, role, email, is_bookable, accepts_new_patients)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.NPI, p.Role, p.Email, p.IsBookable, p.AcceptsNewPatients,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapWriteErr(err)
}

func (r *providerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return scanProvider(r.conn(ctx).QueryRow(ctx, `SELECT `+providerCols+` FROM providers WHERE id = $1`, id))
}

func (r *providerRepoPG) Update(ctx context.Context, p *Provider) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE providers SET first_name=$2, last_name=$3, npi=$4, role=$5, email=$6,
			is_bookable=$7, accepts_new_patients=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FirstName, p.LastName, p.NPI, p.Role, p.Email, p.IsBookable, p.AcceptsNewPatients,
	).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return mapWriteErr(err)
}

func (r *providerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(tag.RowsAffected())
}

func (r *providerRepoPG) List(ctx context.Context, f ProviderFilter, limit, offset int) ([]*Provider, int, error) {
	var where []string
	var args []interface{}
	if f.Role != "" {
		args = append(args, f.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.BookableOnly {
		where = append(where, "is_bookable")
	}
	clause := whereClause(where)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM providers`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM providers%s
		ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, providerCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanProvider)
	return items, total, err
}

func (r *providerRepoPG) ListAll(ctx context.Context) ([]*Provider, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+providerCols+` FROM providers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProvider)
}

// =========== Payer Repository ===========

type payerRepoPG struct{ pool *pgxpool.Pool }

func NewPayerRepoPG(pool *pgxpool.Pool) PayerRepository { return &payerRepoPG{pool: pool} }

func (r *payerRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Querier(ctx, r.pool)
}

const payerCols = `id, name, payer_type, state, effective_date, is_active, created_at, updated_at`

func scanPayer(row pgx.Row) (*Payer, error) {
	var p Payer
	err := row.Scan(&p.ID, &p.Name, &p.PayerType, &p.State, &p.EffectiveDate, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *payerRepoPG) Create(ctx context.Context, p *Payer) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payers (id, name, payer_type, state, effective_date, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.PayerType, p.State, p.EffectiveDate, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapWriteErr(err)
}

func (r *payerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payer, error) {
	return scanPayer(r.conn(ctx).QueryRow(ctx, `SELECT `+payerCols+` FROM payers WHERE id = $1`, id))
}

func (r *payerRepoPG) Update(ctx context.Context, p *Payer) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE payers SET name=$2, payer_type=$3, state=$4, effective_date=$5, is_active=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.PayerType, p.State, p.EffectiveDate, p.IsActive,
	).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return mapWriteErr(err)
}

func (r *payerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM payers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(tag.RowsAffected())
}

func (r *payerRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Payer, int, error) {
	clause := ""
	if activeOnly {
		clause = " WHERE is_active"
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payers`+clause).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+payerCols+` FROM payers`+clause+
		` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanPayer)
	return items, total, err
}

func (r *payerRepoPG) ListAll(ctx context.Context) ([]*Payer, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+payerCols+` FROM payers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPayer)
}

// =========== Network Repository ===========

type networkRepoPG struct{ pool *pgxpool.Pool }

func NewNetworkRepoPG(pool *pgxpool.Pool) NetworkRepository { return &networkRepoPG{pool: pool} }

func (r *networkRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Querier(ctx, r.pool)
}

const networkCols = `id, provider_id, payer_id, status, billing_mode, effective_date,
	expiration_date, notes, created_at, updated_at`

func scanNetwork(row pgx.Row) (*Network, error) {
	var n Network
	err := row.Scan(&n.ID, &n.ProviderID, &n.PayerID, &n.Status, &n.BillingMode, &n.EffectiveDate,
		&n.ExpirationDate, &n.Notes, &n.CreatedAt, &n.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return &n, err
}

func (r *networkRepoPG) Create(ctx context.Context, n *Network) error {
	n.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payer_networks (id, provider_id, payer_id, status, billing_mode,
			effective_date, expiration_date, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		n.ID, n.ProviderID, n.PayerID, n.Status, n.BillingMode, n.EffectiveDate, n.ExpirationDate, n.Notes,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	return mapWriteErr(err)
}

func (r *networkRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Network, error) {
	return scanNetwork(r.conn(ctx).QueryRow(ctx, `SELECT `+networkCols+` FROM payer_networks WHERE id = $1`, id))
}

func (r *networkRepoPG) Update(ctx context.Context, n *Network) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE payer_networks SET status=$2, billing_mode=$3, effective_date=$4, expiration_date=$5,
			notes=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		n.ID, n.Status, n.BillingMode, n.EffectiveDate, n.ExpirationDate, n.Notes,
	).Scan(&n.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return mapWriteErr(err)
}

func (r *networkRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM payer_networks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(tag.RowsAffected())
}

func (r *networkRepoPG) List(ctx context.Context, f NetworkFilter, limit, offset int) ([]*Network, int, error) {
	var where []string
	var args []interface{}
	if f.ProviderID != nil {
		args = append(args, *f.ProviderID)
		where = append(where, fmt.Sprintf("provider_id = $%d", len(args)))
	}
	if f.PayerID != nil {
		args = append(args, *f.PayerID)
		where = append(where, fmt.Sprintf("payer_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := whereClause(where)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payer_networks`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM payer_networks%s
		ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`, networkCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanNetwork)
	return items, total, err
}

func (r *networkRepoPG) ListAll(ctx context.Context) ([]*Network, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+networkCols+` FROM payer_networks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNetwork)
}
