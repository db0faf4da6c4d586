// Package rowstore is generic table CRUD for plain records that carry no
// invariants of their own (partner organizations, contacts). It is backed
// either by Postgres directly or by the hosted PostgREST endpoint.
package rowstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/db"
)

var ErrInvalidIdent = errors.New("invalid table or column name")

// Cond is one equality condition.
type Cond struct {
	Column string
	Value  string
}

// Filter selects rows. Conditions are ANDed in order.
type Filter struct {
	Eq      []Cond
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Where starts a filter with one equality condition.
func Where(column string, value interface{}) Filter {
	return Filter{}.And(column, value)
}

func (f Filter) And(column string, value interface{}) Filter {
	f.Eq = append(append([]Cond(nil), f.Eq...), Cond{Column: column, Value: fmt.Sprint(value)})
	return f
}

func (f Filter) Order(column string, desc bool) Filter {
	f.OrderBy, f.Desc = column, desc
	return f
}

func (f Filter) Page(limit, offset int) Filter {
	f.Limit, f.Offset = limit, offset
	return f
}

func (f Filter) validate() error {
	for _, c := range f.Eq {
		if !db.ValidIdent(c.Column) {
			return fmt.Errorf("%w: %q", ErrInvalidIdent, c.Column)
		}
	}
	if f.OrderBy != "" && !db.ValidIdent(f.OrderBy) {
		return fmt.Errorf("%w: %q", ErrInvalidIdent, f.OrderBy)
	}
	return nil
}

// Store is row CRUD by table name and filter. out must be a pointer to a
// slice; it receives the affected rows as returned by the backend.
type Store interface {
	Select(ctx context.Context, table string, f Filter, out interface{}) error
	Insert(ctx context.Context, table string, row interface{}, out interface{}) error
	Update(ctx context.Context, table string, f Filter, patch interface{}, out interface{}) error
	Delete(ctx context.Context, table string, f Filter) (int64, error)
}

func checkTable(table string) error {
	if !db.ValidIdent(table) {
		return fmt.Errorf("%w: %q", ErrInvalidIdent, table)
	}
	return nil
}
