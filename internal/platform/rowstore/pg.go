package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/db"
)

// PGStore runs row CRUD against Postgres. Values are converted to column
// types server-side through jsonb_populate_record.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Select(ctx context.Context, table string, f Filter, out interface{}) error {
	query, args, err := buildSelect(table, f)
	if err != nil {
		return err
	}
	return s.queryJSON(ctx, query, args, out)
}

func (s *PGStore) Insert(ctx context.Context, table string, row interface{}, out interface{}) error {
	if err := checkTable(table); err != nil {
		return err
	}
	doc, cols, err := columnsOf(row)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return errors.New("insert requires at least one column")
	}
	list := strings.Join(cols, ", ")
	query := fmt.Sprintf(`WITH t AS (
		INSERT INTO %s (%s)
		SELECT %s FROM jsonb_populate_record(NULL::%s, $1::jsonb)
		RETURNING *)
	SELECT coalesce(json_agg(t), '[]'::json) FROM t`, table, list, list, table)
	return s.queryJSON(ctx, query, []interface{}{doc}, out)
}

func (s *PGStore) Update(ctx context.Context, table string, f Filter, patch interface{}, out interface{}) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if err := f.validate(); err != nil {
		return err
	}
	doc, cols, err := columnsOf(patch)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return errors.New("update requires at least one column")
	}
	if len(f.Eq) == 0 {
		return errors.New("update requires a filter")
	}
	where, args := whereClause(f, 2)
	list := strings.Join(cols, ", ")
	query := fmt.Sprintf(`WITH t AS (
		UPDATE %s SET (%s) = (SELECT %s FROM jsonb_populate_record(NULL::%s, $1::jsonb))%s
		RETURNING *)
	SELECT coalesce(json_agg(t), '[]'::json) FROM t`, table, list, list, table, where)
	return s.queryJSON(ctx, query, append([]interface{}{doc}, args...), out)
}

func (s *PGStore) Delete(ctx context.Context, table string, f Filter) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	if err := f.validate(); err != nil {
		return 0, err
	}
	if len(f.Eq) == 0 {
		return 0, errors.New("delete requires a filter")
	}
	where, args := whereClause(f, 1)
	tag, err := db.Querier(ctx, s.pool).Exec(ctx, "DELETE FROM "+table+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) queryJSON(ctx context.Context, query string, args []interface{}, out interface{}) error {
	var raw []byte
	if err := db.Querier(ctx, s.pool).QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return fmt.Errorf("rowstore query: %w", err)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func buildSelect(table string, f Filter) (string, []interface{}, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if err := f.validate(); err != nil {
		return "", nil, err
	}
	where, args := whereClause(f, 1)

	var b strings.Builder
	b.WriteString("SELECT coalesce(json_agg(t), '[]'::json) FROM (SELECT * FROM ")
	b.WriteString(table)
	b.WriteString(where)
	if f.OrderBy != "" {
		b.WriteString(" ORDER BY " + f.OrderBy)
		if f.Desc {
			b.WriteString(" DESC")
		}
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(f.Offset))
	}
	b.WriteString(") t")
	return b.String(), args, nil
}

// whereClause numbers placeholders from start.
func whereClause(f Filter, start int) (string, []interface{}) {
	if len(f.Eq) == 0 {
		return "", nil
	}
	parts := make([]string, len(f.Eq))
	args := make([]interface{}, len(f.Eq))
	for i, c := range f.Eq {
		parts[i] = fmt.Sprintf("%s = $%d", c.Column, start+i)
		args[i] = c.Value
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// columnsOf marshals v to a JSON object and returns it with its sorted,
// validated keys.
func columnsOf(v interface{}) (string, []string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return "", nil, fmt.Errorf("row must be a JSON object: %w", err)
	}
	cols := make([]string, 0, len(m))
	for k := range m {
		if !db.ValidIdent(k) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidIdent, k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return string(b), cols, nil
}
