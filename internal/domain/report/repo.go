package report

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert creates the report row for an order, or refreshes the
	// generation metadata when one already exists.
	Upsert(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*Report, error)
	List(ctx context.Context, limit, offset int) ([]*Report, int, error)
}
