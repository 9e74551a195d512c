package report

import (
	"time"

	"github.com/google/uuid"
)

// Report marks an order whose results have been compiled into a PDF. The
// PDF itself is rendered on download from current data, so a report row is
// a publication record, not a stored file.
type Report struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"order_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	GeneratedBy *uuid.UUID `json:"generated_by,omitempty"`
}
