package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medlab/lims/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type workflowRepoPG struct{ pool *pgxpool.Pool }

func NewWorkflowRepoPG(pool *pgxpool.Pool) WorkflowRepository {
	return &workflowRepoPG{pool: pool}
}

func (r *workflowRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *workflowRepoPG) Load(ctx context.Context) (*WorkflowSettings, error) {
	// The table is keyed on a fixed id so there is exactly one row.
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO workflow_settings (id, enable_sample_collection, enable_sample_receive, enable_verification)
		VALUES (1, true, true, true)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return nil, err
	}

	var ws WorkflowSettings
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT enable_sample_collection, enable_sample_receive, enable_verification, updated_at
		FROM workflow_settings WHERE id = 1`).
		Scan(&ws.EnableSampleCollection, &ws.EnableSampleReceive, &ws.EnableVerification, &ws.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *workflowRepoPG) Update(ctx context.Context, ws *WorkflowSettings) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO workflow_settings (id, enable_sample_collection, enable_sample_receive, enable_verification, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			enable_sample_collection = EXCLUDED.enable_sample_collection,
			enable_sample_receive = EXCLUDED.enable_sample_receive,
			enable_verification = EXCLUDED.enable_verification,
			updated_at = NOW()`,
		ws.EnableSampleCollection, ws.EnableSampleReceive, ws.EnableVerification)
	return err
}

type permissionRepoPG struct{ pool *pgxpool.Pool }

func NewPermissionRepoPG(pool *pgxpool.Pool) PermissionRepository {
	return &permissionRepoPG{pool: pool}
}

func (r *permissionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const permissionCols = `role, can_register, can_collect, can_enter_result, can_verify, can_publish, can_edit_catalog, can_edit_settings, updated_at`

func scanPermission(row pgx.Row) (*RolePermission, error) {
	var rp RolePermission
	err := row.Scan(&rp.Role, &rp.CanRegister, &rp.CanCollect, &rp.CanEnterResult, &rp.CanVerify,
		&rp.CanPublish, &rp.CanEditCatalog, &rp.CanEditSettings, &rp.UpdatedAt)
	return &rp, err
}

func (r *permissionRepoPG) GetByRole(ctx context.Context, role string) (*RolePermission, error) {
	rp, err := scanPermission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+permissionCols+` FROM role_permissions WHERE role = $1`, role))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rp, err
}

func (r *permissionRepoPG) List(ctx context.Context) ([]*RolePermission, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+permissionCols+` FROM role_permissions ORDER BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RolePermission
	for rows.Next() {
		rp, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (r *permissionRepoPG) Upsert(ctx context.Context, rp *RolePermission) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO role_permissions (role, can_register, can_collect, can_enter_result, can_verify, can_publish, can_edit_catalog, can_edit_settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (role) DO UPDATE SET
			can_register = EXCLUDED.can_register,
			can_collect = EXCLUDED.can_collect,
			can_enter_result = EXCLUDED.can_enter_result,
			can_verify = EXCLUDED.can_verify,
			can_publish = EXCLUDED.can_publish,
			can_edit_catalog = EXCLUDED.can_edit_catalog,
			can_edit_settings = EXCLUDED.can_edit_settings,
			updated_at = NOW()`,
		rp.Role, rp.CanRegister, rp.CanCollect, rp.CanEnterResult, rp.CanVerify,
		rp.CanPublish, rp.CanEditCatalog, rp.CanEditSettings)
	return err
}
