package roster

import (
	"context"
	"fmt"

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

// Replace must run inside db.WithTx so readers never see an empty table.
func (r *repoPG) Replace(ctx context.Context, rows []Bookable) error {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("roster replace requires a transaction")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM bookable_provider_payers`); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"bookable_provider_payers"},
		[]string{"provider_id", "payer_id", "billing_mode", "via_attending_id", "as_of"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			b := rows[i]
			return []interface{}{b.ProviderID, b.PayerID, string(b.BillingMode), b.Via, b.AsOf}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy roster: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, payerID *uuid.UUID) ([]Bookable, error) {
	sql := `SELECT provider_id, payer_id, billing_mode, via_attending_id, as_of FROM bookable_provider_payers`
	var args []interface{}
	if payerID != nil {
		sql += ` WHERE payer_id = $1`
		args = append(args, *payerID)
	}
	sql += ` ORDER BY payer_id, provider_id`

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Bookable{}
	for rows.Next() {
		var b Bookable
		if err := rows.Scan(&b.ProviderID, &b.PayerID, &b.BillingMode, &b.Via, &b.AsOf); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repoPG) ProvidersForPayer(ctx context.Context, payerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT b.provider_id FROM bookable_provider_payers b
		JOIN providers p ON p.id = b.provider_id
		WHERE b.payer_id = $1 AND p.accepts_new_patients
		ORDER BY b.provider_id`, payerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
