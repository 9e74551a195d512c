package sample

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Sample) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sample, error)
	GetByBarcode(ctx context.Context, barcode string) (*Sample, error)
	Update(ctx context.Context, s *Sample) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Sample, int, error)
}
