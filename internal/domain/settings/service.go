package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/medlab/lims/internal/platform/auth"
)

var ErrNotFound = errors.New("settings entry not found")

type Service struct {
	workflow    WorkflowRepository
	permissions PermissionRepository
}

func NewService(workflow WorkflowRepository, permissions PermissionRepository) *Service {
	return &Service{workflow: workflow, permissions: permissions}
}

// Workflow returns the current workflow toggles. Callers consult this on
// every request that needs it rather than holding on to the result.
func (s *Service) Workflow(ctx context.Context) (*WorkflowSettings, error) {
	return s.workflow.Load(ctx)
}

func (s *Service) UpdateWorkflow(ctx context.Context, ws *WorkflowSettings) error {
	return s.workflow.Update(ctx, ws)
}

func (s *Service) ListPermissions(ctx context.Context) ([]*RolePermission, error) {
	return s.permissions.List(ctx)
}

func (s *Service) UpsertPermission(ctx context.Context, rp *RolePermission) error {
	if !auth.ValidRoles[rp.Role] {
		return fmt.Errorf("invalid role: %s", rp.Role)
	}
	return s.permissions.Upsert(ctx, rp)
}

// permitted checks whether any of the caller's roles carries the grant
// selected by pick. ADMIN is always permitted.
func (s *Service) permitted(ctx context.Context, roles []string, pick func(*RolePermission) bool) bool {
	for _, role := range roles {
		if role == auth.RoleAdmin {
			return true
		}
		rp, err := s.permissions.GetByRole(ctx, role)
		if err != nil {
			continue
		}
		if pick(rp) {
			return true
		}
	}
	return false
}

func (s *Service) CanEnterResult(ctx context.Context, roles []string) bool {
	return s.permitted(ctx, roles, func(rp *RolePermission) bool { return rp.CanEnterResult })
}

func (s *Service) CanVerify(ctx context.Context, roles []string) bool {
	return s.permitted(ctx, roles, func(rp *RolePermission) bool { return rp.CanVerify })
}

func (s *Service) CanPublish(ctx context.Context, roles []string) bool {
	return s.permitted(ctx, roles, func(rp *RolePermission) bool { return rp.CanPublish })
}

func (s *Service) CanCollect(ctx context.Context, roles []string) bool {
	return s.permitted(ctx, roles, func(rp *RolePermission) bool { return rp.CanCollect })
}

// DefaultPermissions is the matrix seeded on first run.
func DefaultPermissions() []*RolePermission {
	return []*RolePermission{
		{Role: auth.RoleAdmin, CanRegister: true, CanCollect: true, CanEnterResult: true, CanVerify: true, CanPublish: true, CanEditCatalog: true, CanEditSettings: true},
		{Role: auth.RoleReception, CanRegister: true},
		{Role: auth.RolePhlebotomy, CanCollect: true},
		{Role: auth.RoleTechnologist, CanEnterResult: true},
		{Role: auth.RolePathologist, CanEnterResult: true, CanVerify: true, CanPublish: true},
	}
}
