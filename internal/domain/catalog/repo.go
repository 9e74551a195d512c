package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateTest(ctx context.Context, t *LabTest) error
	UpsertTest(ctx context.Context, t *LabTest) error
	GetTestByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	GetTestByCode(ctx context.Context, code string) (*LabTest, error)
	UpdateTest(ctx context.Context, t *LabTest) error
	ListTests(ctx context.Context, params map[string]string, limit, offset int) ([]*LabTest, int, error)

	UpsertParameter(ctx context.Context, p *Parameter) error
	GetParameterByCode(ctx context.Context, code string) (*Parameter, error)
	ListParametersForTest(ctx context.Context, testID uuid.UUID) ([]*Parameter, error)

	LinkTestParameter(ctx context.Context, tp *TestParameter) error

	UpsertReferenceRange(ctx context.Context, rr *ReferenceRange) error
	ListReferenceRanges(ctx context.Context, parameterID uuid.UUID) ([]*ReferenceRange, error)
}
