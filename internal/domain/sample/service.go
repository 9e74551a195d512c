package sample

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medlab/lims/internal/domain/settings"
)

var ErrNotFound = errors.New("sample not found")

// NumberGenerator mints date-bucketed barcodes (SAM-YYYYMMDD-NNNN).
type NumberGenerator interface {
	Generate(ctx context.Context, prefix string) (string, error)
}

type WorkflowLoader interface {
	Workflow(ctx context.Context) (*settings.WorkflowSettings, error)
}

// ItemStatusSetter advances the owning order item as the sample moves
// through the workflow. Implemented by the order service.
type ItemStatusSetter interface {
	SetItemStatus(ctx context.Context, itemID uuid.UUID, status string) error
}

// Order item statuses this service drives. Kept as local strings so the
// sample and order packages stay decoupled.
const (
	itemStatusCollected = "COLLECTED"
	itemStatusInProcess = "IN_PROCESS"
)

type Service struct {
	repo     Repository
	numbers  NumberGenerator
	workflow WorkflowLoader
	items    ItemStatusSetter
	prefix   string
	now      func() time.Time
}

func NewService(repo Repository, numbers NumberGenerator, workflow WorkflowLoader, items ItemStatusSetter, prefix string) *Service {
	if prefix == "" {
		prefix = "SAM"
	}
	return &Service{
		repo:     repo,
		numbers:  numbers,
		workflow: workflow,
		items:    items,
		prefix:   prefix,
		now:      time.Now,
	}
}

// CreateForOrderItem creates the sample that accompanies a new order item.
// Disabled workflow steps are applied up front: with collection disabled
// the sample starts COLLECTED, with both sample steps disabled it starts
// RECEIVED and is immediately ready for result entry.
func (s *Service) CreateForOrderItem(ctx context.Context, orderItemID uuid.UUID, sampleType string) error {
	ws, err := s.workflow.Workflow(ctx)
	if err != nil {
		return fmt.Errorf("load workflow settings: %w", err)
	}

	sm := &Sample{
		OrderItemID: orderItemID,
		SampleType:  sampleType,
		Status:      StatusPending,
	}

	now := s.now()
	if !ws.EnableSampleCollection {
		sm.Status = StatusCollected
		sm.CollectedAt = &now
	}
	if !ws.EnableSampleCollection && !ws.EnableSampleReceive {
		sm.Status = StatusReceived
		sm.ReceivedAt = &now
	}

	barcode, err := s.numbers.Generate(ctx, s.prefix)
	if err != nil {
		return err
	}
	sm.Barcode = barcode

	return s.repo.Create(ctx, sm)
}

// Collect marks a pending sample as collected and advances the order item.
func (s *Service) Collect(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*Sample, error) {
	sm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sm.Status != StatusPending {
		return nil, fmt.Errorf("cannot collect sample with status %s", sm.Status)
	}

	now := s.now()
	sm.Status = StatusCollected
	sm.CollectedAt = &now
	sm.CollectedBy = userID

	if err := s.repo.Update(ctx, sm); err != nil {
		return nil, err
	}
	if err := s.items.SetItemStatus(ctx, sm.OrderItemID, itemStatusCollected); err != nil {
		return nil, err
	}
	return sm, nil
}

// Receive marks a collected sample as received in the lab and moves the
// order item into processing.
func (s *Service) Receive(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*Sample, error) {
	sm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sm.Status != StatusCollected {
		return nil, fmt.Errorf("cannot receive sample with status %s", sm.Status)
	}

	now := s.now()
	sm.Status = StatusReceived
	sm.ReceivedAt = &now
	sm.ReceivedBy = userID

	if err := s.repo.Update(ctx, sm); err != nil {
		return nil, err
	}
	if err := s.items.SetItemStatus(ctx, sm.OrderItemID, itemStatusInProcess); err != nil {
		return nil, err
	}
	return sm, nil
}

// Reject rejects a sample with a mandatory reason. Rejection is allowed
// from any non-terminal status.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Sample, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("rejection reason is required")
	}

	sm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sm.Status == StatusRejected {
		return nil, fmt.Errorf("sample is already rejected")
	}

	sm.Status = StatusRejected
	sm.RejectionReason = reason

	if err := s.repo.Update(ctx, sm); err != nil {
		return nil, err
	}
	return sm, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Sample, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByBarcode(ctx context.Context, barcode string) (*Sample, error) {
	return s.repo.GetByBarcode(ctx, barcode)
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Sample, int, error) {
	return s.repo.List(ctx, params, limit, offset)
}
