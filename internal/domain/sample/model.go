package sample

import (
	"time"

	"github.com/google/uuid"
)

// Sample statuses.
const (
	StatusPending   = "PENDING"
	StatusCollected = "COLLECTED"
	StatusReceived  = "RECEIVED"
	StatusRejected  = "REJECTED"
)

// Sample is a physical specimen for one order item, identified by a
// date-bucketed barcode (SAM-YYYYMMDD-NNNN).
type Sample struct {
	ID              uuid.UUID  `json:"id"`
	OrderItemID     uuid.UUID  `json:"order_item_id"`
	SampleType      string     `json:"sample_type"`
	Barcode         string     `json:"barcode"`
	Status          string     `json:"status"`
	CollectedAt     *time.Time `json:"collected_at,omitempty"`
	CollectedBy     *uuid.UUID `json:"collected_by,omitempty"`
	ReceivedAt      *time.Time `json:"received_at,omitempty"`
	ReceivedBy      *uuid.UUID `json:"received_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
