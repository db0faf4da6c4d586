package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type ProviderRepository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	Update(ctx context.Context, p *Provider) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ProviderFilter, limit, offset int) ([]*Provider, int, error)
	ListAll(ctx context.Context) ([]*Provider, error)
}

type PayerRepository interface {
	Create(ctx context.Context, p *Payer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payer, error)
	Update(ctx context.Context, p *Payer) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Payer, int, error)
	ListAll(ctx context.Context) ([]*Payer, error)
}

type NetworkRepository interface {
	Create(ctx context.Context, n *Network) error
	GetByID(ctx context.Context, id uuid.UUID) (*Network, error)
	Update(ctx context.Context, n *Network) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f NetworkFilter, limit, offset int) ([]*Network, int, error)
	ListAll(ctx context.Context) ([]*Network, error)
}
