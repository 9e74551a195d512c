package result

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medlab/lims/internal/domain/catalog"
	"github.com/medlab/lims/internal/domain/settings"
)

var (
	ErrNotFound         = errors.New("result not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// PermissionChecker consults the role permission matrix.
type PermissionChecker interface {
	CanEnterResult(ctx context.Context, roles []string) bool
	CanVerify(ctx context.Context, roles []string) bool
	CanPublish(ctx context.Context, roles []string) bool
}

type WorkflowLoader interface {
	Workflow(ctx context.Context) (*settings.WorkflowSettings, error)
}

// RangeLookup picks the applicable reference range for a parameter.
type RangeLookup interface {
	RangeFor(ctx context.Context, parameterID uuid.UUID, sex string, ageYears int) (*catalog.ReferenceRange, error)
}

// PatientResolver resolves the patient demographics behind an order item.
type PatientResolver interface {
	PatientForItem(ctx context.Context, itemID uuid.UUID) (sex string, ageYears int, err error)
}

// ItemStatusSetter advances the owning order item on verify/publish.
type ItemStatusSetter interface {
	SetItemStatus(ctx context.Context, itemID uuid.UUID, status string) error
}

const (
	itemStatusVerified  = "VERIFIED"
	itemStatusPublished = "PUBLISHED"
)

type Service struct {
	repo     Repository
	perms    PermissionChecker
	workflow WorkflowLoader
	ranges   RangeLookup
	patients PatientResolver
	items    ItemStatusSetter
	now      func() time.Time
}

func NewService(repo Repository, perms PermissionChecker, workflow WorkflowLoader, ranges RangeLookup, patients PatientResolver, items ItemStatusSetter) *Service {
	return &Service{
		repo:     repo,
		perms:    perms,
		workflow: workflow,
		ranges:   ranges,
		patients: patients,
		items:    items,
		now:      time.Now,
	}
}

// CreateDraft creates an empty draft result for an order item.
func (s *Service) CreateDraft(ctx context.Context, orderItemID uuid.UUID) error {
	return s.repo.Create(ctx, &Result{
		OrderItemID: orderItemID,
		Status:      StatusDraft,
	})
}

// EnterInput carries the measured value for a result.
type EnterInput struct {
	Value       string
	Unit        string
	ParameterID *uuid.UUID
	Notes       string
}

// Enter records a measured value. When the value is numeric and a catalog
// parameter is attached, the result is flagged against the reference range
// matching the patient's sex and age.
func (s *Service) Enter(ctx context.Context, id uuid.UUID, in EnterInput, userID *uuid.UUID, roles []string) (*Result, error) {
	if !s.perms.CanEnterResult(ctx, roles) {
		return nil, fmt.Errorf("%w: enter results", ErrPermissionDenied)
	}
	if strings.TrimSpace(in.Value) == "" {
		return nil, fmt.Errorf("value is required")
	}

	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != StatusDraft && res.Status != StatusEntered {
		return nil, fmt.Errorf("cannot enter a result with status %s", res.Status)
	}

	res.Value = strings.TrimSpace(in.Value)
	res.Unit = in.Unit
	res.ParameterID = in.ParameterID
	if in.Notes != "" {
		res.Notes = in.Notes
	}

	if in.ParameterID != nil {
		if err := s.applyFlags(ctx, res); err != nil {
			return nil, err
		}
	}

	now := s.now()
	res.Status = StatusEntered
	res.EnteredAt = &now
	res.EnteredBy = userID

	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// applyFlags compares a numeric value against the applicable reference
// range and sets the flag and the rendered range string. Non-numeric
// values and parameters without a matching range are left unflagged.
func (s *Service) applyFlags(ctx context.Context, res *Result) error {
	value, err := strconv.ParseFloat(res.Value, 64)
	if err != nil {
		return nil
	}

	sex, age, err := s.patients.PatientForItem(ctx, res.OrderItemID)
	if err != nil {
		return err
	}

	rr, err := s.ranges.RangeFor(ctx, *res.ParameterID, sex, age)
	if err != nil {
		return err
	}
	if rr == nil {
		return nil
	}

	res.ReferenceRange = formatRange(rr)
	res.Flags = flagFor(value, rr)
	return nil
}

func formatRange(rr *catalog.ReferenceRange) string {
	low, high := "", ""
	if rr.NormalLow != nil {
		low = strconv.FormatFloat(*rr.NormalLow, 'f', -1, 64)
	}
	if rr.NormalHigh != nil {
		high = strconv.FormatFloat(*rr.NormalHigh, 'f', -1, 64)
	}
	r := low + "-" + high
	if rr.Unit != "" {
		r += " " + rr.Unit
	}
	return r
}

func flagFor(value float64, rr *catalog.ReferenceRange) string {
	switch {
	case rr.CriticalLow != nil && value < *rr.CriticalLow:
		return FlagCriticalLow
	case rr.CriticalHigh != nil && value > *rr.CriticalHigh:
		return FlagCriticalHigh
	case rr.NormalLow != nil && value < *rr.NormalLow:
		return FlagLow
	case rr.NormalHigh != nil && value > *rr.NormalHigh:
		return FlagHigh
	}
	return FlagNormal
}

// Verify marks an entered result as verified.
func (s *Service) Verify(ctx context.Context, id uuid.UUID, userID *uuid.UUID, roles []string) (*Result, error) {
	if !s.perms.CanVerify(ctx, roles) {
		return nil, fmt.Errorf("%w: verify results", ErrPermissionDenied)
	}

	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != StatusEntered {
		return nil, fmt.Errorf("result must be entered before verification")
	}

	now := s.now()
	res.Status = StatusVerified
	res.VerifiedAt = &now
	res.VerifiedBy = userID

	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	if err := s.items.SetItemStatus(ctx, res.OrderItemID, itemStatusVerified); err != nil {
		return nil, err
	}
	return res, nil
}

// Publish makes a result final. With verification enabled the result must
// be verified first; with verification disabled it publishes straight from
// the entered state.
func (s *Service) Publish(ctx context.Context, id uuid.UUID, roles []string) (*Result, error) {
	if !s.perms.CanPublish(ctx, roles) {
		return nil, fmt.Errorf("%w: publish results", ErrPermissionDenied)
	}

	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ws, err := s.workflow.Workflow(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workflow settings: %w", err)
	}

	// A verified result is always publishable. With verification disabled
	// an entered result publishes directly; a draft never does.
	switch {
	case res.Status == StatusVerified:
	case res.Status == StatusEntered && !ws.EnableVerification:
	case res.Status == StatusEntered:
		return nil, fmt.Errorf("result must be verified before publishing")
	default:
		return nil, fmt.Errorf("result must be entered before publishing")
	}

	now := s.now()
	res.Status = StatusPublished
	res.PublishedAt = &now

	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	if err := s.items.SetItemStatus(ctx, res.OrderItemID, itemStatusPublished); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Result, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Result, int, error) {
	return s.repo.List(ctx, params, limit, offset)
}

func (s *Service) ListByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]*Result, error) {
	return s.repo.ListByOrderItem(ctx, orderItemID)
}
