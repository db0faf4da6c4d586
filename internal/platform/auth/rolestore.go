package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/db"
)

// RoleGrant is one stored (email, role) pair.
type RoleGrant struct {
	Email     string    `db:"email" json:"email"`
	Role      string    `db:"role" json:"role"`
	GrantedBy *string   `db:"granted_by" json:"granted_by,omitempty"`
	GrantedAt time.Time `db:"granted_at" json:"granted_at"`
}

// RoleStore is the single source of stored role grants.
type RoleStore interface {
	RolesFor(ctx context.Context, email string) ([]string, error)
	Grant(ctx context.Context, email, role, grantedBy string) error
	Revoke(ctx context.Context, email, role string) error
	List(ctx context.Context) ([]RoleGrant, error)
}

type PGRoleStore struct {
	pool *pgxpool.Pool
}

func NewPGRoleStore(pool *pgxpool.Pool) *PGRoleStore {
	return &PGRoleStore{pool: pool}
}

func (s *PGRoleStore) RolesFor(ctx context.Context, email string) ([]string, error) {
	rows, err := db.Querier(ctx, s.pool).Query(ctx,
		`SELECT role FROM user_roles WHERE email = $1 ORDER BY role`, strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *PGRoleStore) Grant(ctx context.Context, email, role, grantedBy string) error {
	var by *string
	if grantedBy != "" {
		by = &grantedBy
	}
	_, err := db.Querier(ctx, s.pool).Exec(ctx, `
		INSERT INTO user_roles (email, role, granted_by, granted_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (email, role) DO NOTHING`,
		strings.ToLower(email), role, by)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (s *PGRoleStore) Revoke(ctx context.Context, email, role string) error {
	_, err := db.Querier(ctx, s.pool).Exec(ctx,
		`DELETE FROM user_roles WHERE email = $1 AND role = $2`, strings.ToLower(email), role)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

func (s *PGRoleStore) List(ctx context.Context) ([]RoleGrant, error) {
	rows, err := db.Querier(ctx, s.pool).Query(ctx,
		`SELECT email, role, granted_by, granted_at FROM user_roles ORDER BY email, role`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var out []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.Email, &g.Role, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SeedAdmins grants the admin role to every email in the seed list. Existing
// grants are left alone.
func SeedAdmins(ctx context.Context, store RoleStore, emails []string, logger zerolog.Logger) (int, error) {
	n := 0
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if err := store.Grant(ctx, email, RoleAdmin, "seed"); err != nil {
			return n, fmt.Errorf("seed %s: %w", email, err)
		}
		n++
	}
	logger.Info().Int("count", n).Msg("admin roles seeded")
	return n, nil
}
