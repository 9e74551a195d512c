package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("catalog entry not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateTest(ctx context.Context, t *LabTest) error {
	if err := validateTest(t); err != nil {
		return err
	}
	return s.repo.CreateTest(ctx, t)
}

func (s *Service) UpdateTest(ctx context.Context, id uuid.UUID, t *LabTest) error {
	existing, err := s.repo.GetTestByID(ctx, id)
	if err != nil {
		return err
	}
	t.Code = existing.Code
	if err := validateTest(t); err != nil {
		return err
	}
	existing.Name = t.Name
	existing.Description = t.Description
	existing.Category = t.Category
	existing.SampleType = t.SampleType
	existing.Price = t.Price
	existing.TurnaroundTimeHours = t.TurnaroundTimeHours
	existing.Active = t.Active
	*t = *existing
	return s.repo.UpdateTest(ctx, existing)
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return s.repo.GetTestByID(ctx, id)
}

func (s *Service) GetTestByCode(ctx context.Context, code string) (*LabTest, error) {
	return s.repo.GetTestByCode(ctx, code)
}

func (s *Service) ListTests(ctx context.Context, params map[string]string, limit, offset int) ([]*LabTest, int, error) {
	return s.repo.ListTests(ctx, params, limit, offset)
}

func (s *Service) ListParametersForTest(ctx context.Context, testID uuid.UUID) ([]*Parameter, error) {
	return s.repo.ListParametersForTest(ctx, testID)
}

func (s *Service) ListReferenceRanges(ctx context.Context, parameterID uuid.UUID) ([]*ReferenceRange, error) {
	return s.repo.ListReferenceRanges(ctx, parameterID)
}

// RangeFor picks the reference range applicable to a patient. Returns nil
// when no range matches.
func (s *Service) RangeFor(ctx context.Context, parameterID uuid.UUID, sex string, ageYears int) (*ReferenceRange, error) {
	ranges, err := s.repo.ListReferenceRanges(ctx, parameterID)
	if err != nil {
		return nil, err
	}
	for _, rr := range ranges {
		if rr.AppliesTo(sex, ageYears) {
			return rr, nil
		}
	}
	return nil, nil
}

func validateTest(t *LabTest) error {
	if t.Code == "" {
		return fmt.Errorf("code is required")
	}
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	return nil
}
