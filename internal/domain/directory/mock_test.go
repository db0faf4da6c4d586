package directory

import (
	"context"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/pkg/pagination"
)

type mockProviderRepo struct{ store map[uuid.UUID]*Provider }

func newMockProviderRepo() *mockProviderRepo {
	return &mockProviderRepo{store: make(map[uuid.UUID]*Provider)}
}

func (m *mockProviderRepo) Create(_ context.Context, p *Provider) error {
	p.ID = uuid.New()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockProviderRepo) GetByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProviderRepo) Update(_ context.Context, p *Provider) error {
	if _, ok := m.store[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockProviderRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockProviderRepo) List(_ context.Context, f ProviderFilter, limit, offset int) ([]*Provider, int, error) {
	var out []*Provider
	for _, p := range m.store {
		if (f.Role == "" || p.Role == f.Role) && (!f.BookableOnly || p.IsBookable) {
			out = append(out, p)
		}
	}
	page, total := pagination.Slice(out, pagination.Params{Limit: limit, Offset: offset})
	return page, total, nil
}

func (m *mockProviderRepo) ListAll(_ context.Context) ([]*Provider, error) {
	var out []*Provider
	for _, p := range m.store {
		out = append(out, p)
	}
	return out, nil
}

type mockPayerRepo struct{ store map[uuid.UUID]*Payer }

func newMockPayerRepo() *mockPayerRepo {
	return &mockPayerRepo{store: make(map[uuid.UUID]*Payer)}
}

func (m *mockPayerRepo) Create(_ context.Context, p *Payer) error {
	p.ID = uuid.New()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPayerRepo) GetByID(_ context.Context, id uuid.UUID) (*Payer, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPayerRepo) Update(_ context.Context, p *Payer) error {
	if _, ok := m.store[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPayerRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockPayerRepo) List(_ context.Context, activeOnly bool, limit, offset int) ([]*Payer, int, error) {
	var out []*Payer
	for _, p := range m.store {
		if !activeOnly || p.IsActive {
			out = append(out, p)
		}
	}
	page, total := pagination.Slice(out, pagination.Params{Limit: limit, Offset: offset})
	return page, total, nil
}

func (m *mockPayerRepo) ListAll(_ context.Context) ([]*Payer, error) {
	var out []*Payer
	for _, p := range m.store {
		out = append(out, p)
	}
	return out, nil
}

type mockNetworkRepo struct{ store map[uuid.UUID]*Network }

func newMockNetworkRepo() *mockNetworkRepo {
	return &mockNetworkRepo{store: make(map[uuid.UUID]*Network)}
}

func (m *mockNetworkRepo) Create(_ context.Context, n *Network) error {
	n.ID = uuid.New()
	cp := *n
	m.store[n.ID] = &cp
	return nil
}

func (m *mockNetworkRepo) GetByID(_ context.Context, id uuid.UUID) (*Network, error) {
	n, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *mockNetworkRepo) Update(_ context.Context, n *Network) error {
	if _, ok := m.store[n.ID]; !ok {
		return ErrNotFound
	}
	cp := *n
	m.store[n.ID] = &cp
	return nil
}

func (m *mockNetworkRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockNetworkRepo) List(_ context.Context, f NetworkFilter, limit, offset int) ([]*Network, int, error) {
	var out []*Network
	for _, n := range m.store {
		if f.ProviderID != nil && n.ProviderID != *f.ProviderID {
			continue
		}
		if f.PayerID != nil && n.PayerID != *f.PayerID {
			continue
		}
		if f.Status != "" && n.Status != f.Status {
			continue
		}
		out = append(out, n)
	}
	page, total := pagination.Slice(out, pagination.Params{Limit: limit, Offset: offset})
	return page, total, nil
}

func (m *mockNetworkRepo) ListAll(_ context.Context) ([]*Network, error) {
	var out []*Network
	for _, n := range m.store {
		out = append(out, n)
	}
	return out, nil
}
