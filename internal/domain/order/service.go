package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medlab/lims/internal/domain/catalog"
	"github.com/medlab/lims/internal/domain/settings"
	"github.com/medlab/lims/internal/platform/db"
)

var ErrNotFound = errors.New("order not found")

// NumberGenerator mints date-bucketed identifiers (ORD-YYYYMMDD-NNNN).
type NumberGenerator interface {
	Generate(ctx context.Context, prefix string) (string, error)
}

// WorkflowLoader supplies the current workflow toggles, read at call time.
type WorkflowLoader interface {
	Workflow(ctx context.Context) (*settings.WorkflowSettings, error)
}

// TestLookup resolves catalog tests referenced by order items.
type TestLookup interface {
	GetTest(ctx context.Context, id uuid.UUID) (*catalog.LabTest, error)
}

// SampleFactory creates the sample record that accompanies a new order
// item. The sample domain decides the initial sample status from the
// workflow settings.
type SampleFactory interface {
	CreateForOrderItem(ctx context.Context, orderItemID uuid.UUID, sampleType string) error
}

// ResultFactory creates a draft result for an order item. Used when both
// sample steps are disabled so results can be entered immediately.
type ResultFactory interface {
	CreateDraft(ctx context.Context, orderItemID uuid.UUID) error
}

type Service struct {
	repo     Repository
	numbers  NumberGenerator
	workflow WorkflowLoader
	tests    TestLookup
	samples  SampleFactory
	results  ResultFactory
	pool     *pgxpool.Pool
	prefix   string
}

func NewService(repo Repository, numbers NumberGenerator, workflow WorkflowLoader, tests TestLookup, samples SampleFactory, results ResultFactory, pool *pgxpool.Pool, prefix string) *Service {
	if prefix == "" {
		prefix = "ORD"
	}
	return &Service{
		repo:     repo,
		numbers:  numbers,
		workflow: workflow,
		tests:    tests,
		samples:  samples,
		results:  results,
		pool:     pool,
		prefix:   prefix,
	}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}

// CreateRequest carries the data for a new order.
type CreateRequest struct {
	PatientID uuid.UUID
	TestIDs   []uuid.UUID
	Priority  string
	Notes     string
}

// Create places a new order. The order number, the order row, its items and
// their samples are all written in one transaction, so a failure at any
// step leaves no half-created order and no consumed number.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if len(req.TestIDs) == 0 {
		return nil, fmt.Errorf("at least one test is required")
	}
	if req.Priority == "" {
		req.Priority = PriorityRoutine
	}
	if !validPriorities[req.Priority] {
		return nil, fmt.Errorf("invalid priority: %s", req.Priority)
	}

	ws, err := s.workflow.Workflow(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workflow settings: %w", err)
	}

	// Disabled sample steps advance the initial status so the order is
	// immediately actionable at the next enabled step.
	initialStatus := StatusNew
	skipCollection := !ws.EnableSampleCollection
	skipReceive := !ws.EnableSampleReceive
	if skipCollection && skipReceive {
		initialStatus = StatusInProcess
	} else if skipCollection {
		initialStatus = StatusCollected
	}

	o := &Order{
		PatientID: req.PatientID,
		Priority:  req.Priority,
		Status:    initialStatus,
		Notes:     req.Notes,
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		orderNo, err := s.numbers.Generate(ctx, s.prefix)
		if err != nil {
			return err
		}
		o.OrderNo = orderNo

		if err := s.repo.Create(ctx, o); err != nil {
			return err
		}

		for _, testID := range req.TestIDs {
			test, err := s.tests.GetTest(ctx, testID)
			if err != nil {
				return fmt.Errorf("test %s not found", testID)
			}
			if !test.Active {
				return fmt.Errorf("test %s is not active", test.Code)
			}

			item := &OrderItem{
				OrderID:  o.ID,
				TestID:   test.ID,
				TestCode: test.Code,
				TestName: test.Name,
				Status:   initialStatus,
			}
			if err := s.repo.CreateItem(ctx, item); err != nil {
				return err
			}
			o.Items = append(o.Items, item)

			if err := s.samples.CreateForOrderItem(ctx, item.ID, test.SampleType); err != nil {
				return err
			}
			if skipCollection && skipReceive && s.results != nil {
				if err := s.results.CreateDraft(ctx, item.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByOrderNo(ctx context.Context, orderNo string) (*Order, error) {
	return s.repo.GetByOrderNo(ctx, orderNo)
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Order, int, error) {
	return s.repo.List(ctx, params, limit, offset)
}

// Cancel cancels an order and all its items. Cancellation is refused once
// any sample of the order has been collected or received.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled {
		return nil, fmt.Errorf("order %s is already cancelled", o.OrderNo)
	}

	processed, err := s.repo.HasProcessedSamples(ctx, id)
	if err != nil {
		return nil, err
	}
	if processed {
		return nil, fmt.Errorf("cannot cancel order %s after samples have been collected", o.OrderNo)
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
			return err
		}
		return s.repo.UpdateItemStatusByOrder(ctx, id, StatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// SetItemStatus advances an order item through the workflow, rejecting
// transitions the status machine does not allow.
func (s *Service) SetItemStatus(ctx context.Context, itemID uuid.UUID, to string) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status == to {
		return nil
	}
	if err := ValidateTransition(item.Status, to); err != nil {
		return err
	}
	return s.repo.UpdateItemStatus(ctx, itemID, to)
}

// GetItem returns a single order item.
func (s *Service) GetItem(ctx context.Context, itemID uuid.UUID) (*OrderItem, error) {
	return s.repo.GetItem(ctx, itemID)
}

// PatientForItem returns the sex and age in whole years of the patient an
// order item belongs to.
func (s *Service) PatientForItem(ctx context.Context, itemID uuid.UUID) (string, int, error) {
	sex, dob, err := s.repo.PatientForItem(ctx, itemID)
	if err != nil {
		return "", 0, err
	}

	now := time.Now()
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return sex, years, nil
}
