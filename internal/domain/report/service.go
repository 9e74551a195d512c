package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medlab/lims/internal/domain/order"
	"github.com/medlab/lims/internal/domain/patient"
	"github.com/medlab/lims/internal/domain/result"
)

var (
	ErrNotFound = errors.New("report not found")
	ErrNotReady = errors.New("order results are not published yet")
)

type OrderLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type ResultLookup interface {
	ListByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]*result.Result, error)
}

type Service struct {
	repo     Repository
	orders   OrderLookup
	patients PatientLookup
	results  ResultLookup
}

func NewService(repo Repository, orders OrderLookup, patients PatientLookup, results ResultLookup) *Service {
	return &Service{repo: repo, orders: orders, patients: patients, results: results}
}

// Generate records a report for an order once every active item carries a
// published result. Regenerating an existing report refreshes its metadata.
func (s *Service) Generate(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*Report, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == order.StatusCancelled {
		return nil, fmt.Errorf("cannot generate a report for a cancelled order")
	}

	if err := s.checkPublished(ctx, o); err != nil {
		return nil, err
	}

	rep := &Report{OrderID: orderID, GeneratedBy: userID}
	if err := s.repo.Upsert(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Service) checkPublished(ctx context.Context, o *order.Order) error {
	active := 0
	for _, item := range o.Items {
		if item.Status == order.StatusCancelled {
			continue
		}
		active++

		results, err := s.results.ListByOrderItem(ctx, item.ID)
		if err != nil {
			return err
		}
		published := false
		for _, res := range results {
			if res.Status == result.StatusPublished {
				published = true
				break
			}
		}
		if !published {
			return fmt.Errorf("%w: %s has no published result", ErrNotReady, item.TestCode)
		}
	}
	if active == 0 {
		return fmt.Errorf("%w: order has no active items", ErrNotReady)
	}
	return nil
}

// Render produces the PDF bytes for a generated report.
func (s *Service) Render(ctx context.Context, id uuid.UUID) ([]byte, *Report, error) {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	o, err := s.orders.Get(ctx, rep.OrderID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.patients.Get(ctx, o.PatientID)
	if err != nil {
		return nil, nil, err
	}

	data := &renderData{Order: o, Patient: p, GeneratedAt: rep.GeneratedAt}
	for _, item := range o.Items {
		if item.Status == order.StatusCancelled {
			continue
		}
		results, err := s.results.ListByOrderItem(ctx, item.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, res := range results {
			if res.Status != result.StatusPublished {
				continue
			}
			data.Rows = append(data.Rows, resultRow{
				TestName:       item.TestName,
				Value:          res.Value,
				Unit:           res.Unit,
				ReferenceRange: res.ReferenceRange,
				Flags:          res.Flags,
			})
		}
	}

	pdf, err := renderPDF(data)
	if err != nil {
		return nil, nil, err
	}
	return pdf, rep, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*Report, error) {
	return s.repo.GetByOrder(ctx, orderID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Report, int, error) {
	return s.repo.List(ctx, limit, offset)
}
