package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Order, int, error)

	CreateItem(ctx context.Context, item *OrderItem) error
	GetItem(ctx context.Context, id uuid.UUID) (*OrderItem, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error)
	UpdateItemStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateItemStatusByOrder(ctx context.Context, orderID uuid.UUID, status string) error

	// HasProcessedSamples reports whether any sample of the order has been
	// collected or received. Cancellation is blocked once that happens.
	HasProcessedSamples(ctx context.Context, orderID uuid.UUID) (bool, error)

	// PatientForItem resolves the sex and date of birth of the patient an
	// order item belongs to. Used for reference range selection.
	PatientForItem(ctx context.Context, itemID uuid.UUID) (sex string, dob time.Time, err error)
}
