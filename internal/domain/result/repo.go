package result

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*Result, error)
	Update(ctx context.Context, r *Result) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Result, int, error)
	ListByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]*Result, error)
}
