package result

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const resultCols = `id, order_item_id, parameter_id, value, unit, reference_range, flags, status, entered_by, entered_at, verified_by, verified_at, published_at, notes, created_at, updated_at`

func scanResult(row pgx.Row) (*Result, error) {
	var res Result
	err := row.Scan(&res.ID, &res.OrderItemID, &res.ParameterID, &res.Value, &res.Unit,
		&res.ReferenceRange, &res.Flags, &res.Status, &res.EnteredBy, &res.EnteredAt,
		&res.VerifiedBy, &res.VerifiedAt, &res.PublishedAt, &res.Notes, &res.CreatedAt, &res.UpdatedAt)
	return &res, err
}

func (r *repoPG) Create(ctx context.Context, res *Result) error {
	res.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO results (id, order_item_id, parameter_id, value, unit, reference_range, flags, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.ID, res.OrderItemID, res.ParameterID, res.Value, res.Unit, res.ReferenceRange, res.Flags, res.Status, res.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Result, error) {
	res, err := scanResult(r.conn(ctx).QueryRow(ctx,
		`SELECT `+resultCols+` FROM results WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

func (r *repoPG) Update(ctx context.Context, res *Result) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE results SET parameter_id=$2, value=$3, unit=$4, reference_range=$5, flags=$6, status=$7,
			entered_by=$8, entered_at=$9, verified_by=$10, verified_at=$11, published_at=$12, notes=$13,
			updated_at=NOW()
		WHERE id = $1`,
		res.ID, res.ParameterID, res.Value, res.Unit, res.ReferenceRange, res.Flags, res.Status,
		res.EnteredBy, res.EnteredAt, res.VerifiedBy, res.VerifiedAt, res.PublishedAt, res.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Result, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if v, ok := params["status"]; ok {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["order_item_id"]; ok {
		where += fmt.Sprintf(" AND order_item_id = $%d", idx)
		args = append(args, v)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM results"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM results%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		resultCols, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, res)
	}
	return out, total, rows.Err()
}

func (r *repoPG) ListByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]*Result, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+resultCols+` FROM results WHERE order_item_id = $1 ORDER BY created_at`, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
