package result

import (
	"time"

	"github.com/google/uuid"
)

// Result statuses.
const (
	StatusDraft     = "DRAFT"
	StatusEntered   = "ENTERED"
	StatusVerified  = "VERIFIED"
	StatusPublished = "PUBLISHED"
)

// Abnormality flags.
const (
	FlagNormal       = "N"
	FlagLow          = "L"
	FlagHigh         = "H"
	FlagCriticalLow  = "CL"
	FlagCriticalHigh = "CH"
)

// Result holds the measured value for one order item, tracked through
// entry, verification and publication.
type Result struct {
	ID             uuid.UUID  `json:"id"`
	OrderItemID    uuid.UUID  `json:"order_item_id"`
	ParameterID    *uuid.UUID `json:"parameter_id,omitempty"`
	Value          string     `json:"value"`
	Unit           string     `json:"unit,omitempty"`
	ReferenceRange string     `json:"reference_range,omitempty"`
	Flags          string     `json:"flags,omitempty"`
	Status         string     `json:"status"`
	EnteredBy      *uuid.UUID `json:"entered_by,omitempty"`
	EnteredAt      *time.Time `json:"entered_at,omitempty"`
	VerifiedBy     *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
