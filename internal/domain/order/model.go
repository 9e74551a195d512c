package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	StatusNew       = "NEW"
	StatusCollected = "COLLECTED"
	StatusInProcess = "IN_PROCESS"
	StatusVerified  = "VERIFIED"
	StatusPublished = "PUBLISHED"
	StatusCancelled = "CANCELLED"
)

// Order priorities.
const (
	PriorityRoutine = "ROUTINE"
	PriorityUrgent  = "URGENT"
	PriorityStat    = "STAT"
)

var validPriorities = map[string]bool{
	PriorityRoutine: true,
	PriorityUrgent:  true,
	PriorityStat:    true,
}

// statusTransitions defines valid status transitions for orders and
// order items.
var statusTransitions = map[string][]string{
	StatusNew:       {StatusCollected, StatusInProcess, StatusCancelled},
	StatusCollected: {StatusInProcess, StatusCancelled},
	StatusInProcess: {StatusVerified, StatusPublished},
	StatusVerified:  {StatusPublished},
	StatusPublished: {},
	StatusCancelled: {},
}

// ValidateTransition checks if a status transition is valid.
func ValidateTransition(from, to string) error {
	allowed, ok := statusTransitions[from]
	if !ok {
		return fmt.Errorf("unknown from-status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s", from, to)
}

// Order is a patient's request for one or more lab tests. The order number
// is date-bucketed (ORD-YYYYMMDD-NNNN) and immutable once assigned.
type Order struct {
	ID        uuid.UUID    `json:"id"`
	OrderNo   string       `json:"order_no"`
	PatientID uuid.UUID    `json:"patient_id"`
	Priority  string       `json:"priority"`
	Status    string       `json:"status"`
	Notes     string       `json:"notes"`
	Items     []*OrderItem `json:"items,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// OrderItem is a single test within an order, tracked independently.
type OrderItem struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	TestID    uuid.UUID `json:"test_id"`
	TestCode  string    `json:"test_code,omitempty"`
	TestName  string    `json:"test_name,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
