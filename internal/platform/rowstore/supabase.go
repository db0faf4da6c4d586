package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// TableSource is satisfied by both *supabase.Client and *postgrest.Client.
type TableSource interface {
	From(table string) *postgrest.QueryBuilder
}

// SupabaseStore runs row CRUD through the hosted PostgREST API.
type SupabaseStore struct {
	src TableSource
}

func NewSupabaseStore(src TableSource) *SupabaseStore {
	return &SupabaseStore{src: src}
}

// DialSupabase builds a store from a project URL and service key.
func DialSupabase(url, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return NewSupabaseStore(client), nil
}

func applyFilter(q *postgrest.FilterBuilder, f Filter) *postgrest.FilterBuilder {
	for _, c := range f.Eq {
		q = q.Eq(c.Column, c.Value)
	}
	if f.OrderBy != "" {
		q = q.Order(f.OrderBy, &postgrest.OrderOpts{Ascending: !f.Desc})
	}
	if f.Limit > 0 {
		q = q.Range(f.Offset, f.Offset+f.Limit-1, "")
	}
	return q
}

func decode(data []byte, out interface{}) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (s *SupabaseStore) Select(_ context.Context, table string, f Filter, out interface{}) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if err := f.validate(); err != nil {
		return err
	}
	data, _, err := applyFilter(s.src.From(table).Select("*", "", false), f).Execute()
	if err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return decode(data, out)
}

func (s *SupabaseStore) Insert(_ context.Context, table string, row interface{}, out interface{}) error {
	if err := checkTable(table); err != nil {
		return err
	}
	data, _, err := s.src.From(table).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return decode(data, out)
}

func (s *SupabaseStore) Update(_ context.Context, table string, f Filter, patch interface{}, out interface{}) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if err := f.validate(); err != nil {
		return err
	}
	if len(f.Eq) == 0 {
		return errors.New("update requires a filter")
	}
	data, _, err := applyFilter(s.src.From(table).Update(patch, "representation", ""), Filter{Eq: f.Eq}).Execute()
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return decode(data, out)
}

func (s *SupabaseStore) Delete(_ context.Context, table string, f Filter) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	if err := f.validate(); err != nil {
		return 0, err
	}
	if len(f.Eq) == 0 {
		return 0, errors.New("delete requires a filter")
	}
	data, _, err := applyFilter(s.src.From(table).Delete("representation", ""), Filter{Eq: f.Eq}).Execute()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	var rows []json.RawMessage
	if err := decode(data, &rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}
