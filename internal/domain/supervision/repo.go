package supervision

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("supervision relationship not found")
	// ErrConflict is a storage-level rejection of an overlapping range or a
	// second active primary.
	ErrConflict = errors.New("conflicts with an existing active supervision relationship")
)

type Repository interface {
	Create(ctx context.Context, r *Relationship) error
	GetByID(ctx context.Context, id uuid.UUID) (*Relationship, error)
	Update(ctx context.Context, r *Relationship) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListActiveByResident(ctx context.Context, residentID uuid.UUID) ([]*Relationship, error)
	ListActive(ctx context.Context) ([]*Relationship, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Relationship, int, error)
}
