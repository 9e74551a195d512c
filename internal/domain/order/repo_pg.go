package order

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const orderCols = `id, order_no, patient_id, priority, status, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNo, &o.PatientID, &o.Priority, &o.Status, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *repoPG) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO orders (id, order_no, patient_id, priority, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.OrderNo, o.PatientID, o.Priority, o.Status, o.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Items, err = r.ListItems(ctx, o.ID)
	return o, err
}

func (r *repoPG) GetByOrderNo(ctx context.Context, orderNo string) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE order_no = $1`, orderNo))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Items, err = r.ListItems(ctx, o.ID)
	return o, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Order, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if v, ok := params["patient_id"]; ok {
		where += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, v)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		orderCols, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

const itemCols = `oi.id, oi.order_id, oi.test_id, t.code, t.name, oi.status, oi.created_at, oi.updated_at`

func scanItem(row pgx.Row) (*OrderItem, error) {
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.TestID, &it.TestCode, &it.TestName, &it.Status, &it.CreatedAt, &it.UpdatedAt)
	return &it, err
}

func (r *repoPG) CreateItem(ctx context.Context, item *OrderItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO order_items (id, order_id, test_id, status)
		VALUES ($1, $2, $3, $4)`,
		item.ID, item.OrderID, item.TestID, item.Status)
	return err
}

func (r *repoPG) GetItem(ctx context.Context, id uuid.UUID) (*OrderItem, error) {
	it, err := scanItem(r.conn(ctx).QueryRow(ctx, `
		SELECT `+itemCols+` FROM order_items oi
		JOIN test_catalog t ON t.id = oi.test_id
		WHERE oi.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return it, err
}

func (r *repoPG) ListItems(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+` FROM order_items oi
		JOIN test_catalog t ON t.id = oi.test_id
		WHERE oi.order_id = $1 ORDER BY oi.created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*OrderItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *repoPG) UpdateItemStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE order_items SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateItemStatusByOrder(ctx context.Context, orderID uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE order_items SET status = $2, updated_at = NOW() WHERE order_id = $1`, orderID, status)
	return err
}

func (r *repoPG) PatientForItem(ctx context.Context, itemID uuid.UUID) (string, time.Time, error) {
	var sex string
	var dob time.Time
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT p.sex, p.dob FROM patients p
		JOIN orders o ON o.patient_id = p.id
		JOIN order_items oi ON oi.order_id = o.id
		WHERE oi.id = $1`, itemID).Scan(&sex, &dob)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, ErrNotFound
	}
	return sex, dob, err
}

func (r *repoPG) HasProcessedSamples(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM samples s
			JOIN order_items oi ON oi.id = s.order_item_id
			WHERE oi.order_id = $1 AND s.status IN ('COLLECTED', 'RECEIVED')
		)`, orderID).Scan(&exists)
	return exists, err
}
