package numbering

import (
	"context"

	"github.com/google/uuid"
)

type TerminalRepository interface {
	Create(ctx context.Context, t *Terminal) error
	Update(ctx context.Context, t *Terminal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Terminal, error)
	GetByCode(ctx context.Context, code string) (*Terminal, error)
	// GetActiveForUpdate locks the terminal row for the rest of the enclosing
	// transaction. Returns ErrRangeUnavailable for missing and inactive codes
	// alike.
	GetActiveForUpdate(ctx context.Context, code string) (*Terminal, error)
	// UpdateCursor persists an advanced cursor. Only the allocator calls this.
	UpdateCursor(ctx context.Context, id uuid.UUID, cursor int64) error
	List(ctx context.Context, limit, offset int) ([]*Terminal, int, error)
	// FindOverlapping returns the first terminal whose [range_start, range_end]
	// intersects [start, end], excluding excludeID. Inactive terminals count
	// too, so reactivation cannot introduce a collision.
	FindOverlapping(ctx context.Context, start, end int64, excludeID uuid.UUID) (*Terminal, error)
}

type CounterRepository interface {
	// GetForUpdate creates the bucket row if absent, locks it for the rest of
	// the enclosing transaction and returns its current value.
	GetForUpdate(ctx context.Context, bucket string) (int64, error)
	Set(ctx context.Context, bucket string, value int64) error
}
