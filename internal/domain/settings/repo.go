package settings

import "context"

type WorkflowRepository interface {
	// Load returns the singleton settings row, creating it with defaults
	// when it does not exist yet.
	Load(ctx context.Context) (*WorkflowSettings, error)
	Update(ctx context.Context, ws *WorkflowSettings) error
}

type PermissionRepository interface {
	GetByRole(ctx context.Context, role string) (*RolePermission, error)
	List(ctx context.Context) ([]*RolePermission, error)
	Upsert(ctx context.Context, rp *RolePermission) error
}
