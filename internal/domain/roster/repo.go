package roster

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Replace swaps the whole bookable table for rows.
	Replace(ctx context.Context, rows []Bookable) error
	List(ctx context.Context, payerID *uuid.UUID) ([]Bookable, error)
	ProvidersForPayer(ctx context.Context, payerID uuid.UUID) ([]uuid.UUID, error)
}
