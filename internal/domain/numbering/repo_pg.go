package numbering

import (
	"context"
	"errors"

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

// =========== Terminal Repository ===========

type terminalRepoPG struct{ pool *pgxpool.Pool }

func NewTerminalRepoPG(pool *pgxpool.Pool) TerminalRepository {
	return &terminalRepoPG{pool: pool}
}

func (r *terminalRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const terminalCols = `id, code, name, range_start, range_end, cursor, active, created_at, updated_at`

func scanTerminal(row pgx.Row) (*Terminal, error) {
	var t Terminal
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.RangeStart, &t.RangeEnd, &t.Cursor, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *terminalRepoPG) Create(ctx context.Context, t *Terminal) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_terminals (id, code, name, range_start, range_end, cursor, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Code, t.Name, t.RangeStart, t.RangeEnd, t.Cursor, t.Active)
	return err
}

func (r *terminalRepoPG) Update(ctx context.Context, t *Terminal) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_terminals SET name=$2, range_start=$3, range_end=$4, active=$5, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.RangeStart, t.RangeEnd, t.Active)
	return err
}

func (r *terminalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Terminal, error) {
	t, err := scanTerminal(r.conn(ctx).QueryRow(ctx,
		`SELECT `+terminalCols+` FROM lab_terminals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *terminalRepoPG) GetByCode(ctx context.Context, code string) (*Terminal, error) {
	t, err := scanTerminal(r.conn(ctx).QueryRow(ctx,
		`SELECT `+terminalCols+` FROM lab_terminals WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *terminalRepoPG) GetActiveForUpdate(ctx context.Context, code string) (*Terminal, error) {
	t, err := scanTerminal(r.conn(ctx).QueryRow(ctx,
		`SELECT `+terminalCols+` FROM lab_terminals WHERE code = $1 AND active = true FOR UPDATE`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		// Missing and inactive are indistinguishable to callers.
		return nil, ErrRangeUnavailable
	}
	return t, err
}

func (r *terminalRepoPG) UpdateCursor(ctx context.Context, id uuid.UUID, cursor int64) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE lab_terminals SET cursor=$2, updated_at=NOW() WHERE id = $1`, id, cursor)
	return err
}

func (r *terminalRepoPG) List(ctx context.Context, limit, offset int) ([]*Terminal, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_terminals`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+terminalCols+` FROM lab_terminals ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Terminal
	for rows.Next() {
		t, err := scanTerminal(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *terminalRepoPG) FindOverlapping(ctx context.Context, start, end int64, excludeID uuid.UUID) (*Terminal, error) {
	t, err := scanTerminal(r.conn(ctx).QueryRow(ctx, `
		SELECT `+terminalCols+` FROM lab_terminals
		WHERE range_start <= $2 AND range_end >= $1 AND id <> $3
		ORDER BY code LIMIT 1`,
		start, end, excludeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// =========== Sequence Counter Repository ===========

type counterRepoPG struct{ pool *pgxpool.Pool }

func NewCounterRepoPG(pool *pgxpool.Pool) CounterRepository {
	return &counterRepoPG{pool: pool}
}

func (r *counterRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *counterRepoPG) GetForUpdate(ctx context.Context, bucket string) (int64, error) {
	// Insert-if-absent first so the subsequent SELECT always has a row to lock.
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO sequence_counters (bucket, value) VALUES ($1, 0)
		ON CONFLICT (bucket) DO NOTHING`, bucket)
	if err != nil {
		return 0, err
	}

	var value int64
	err = r.conn(ctx).QueryRow(ctx,
		`SELECT value FROM sequence_counters WHERE bucket = $1 FOR UPDATE`, bucket).Scan(&value)
	return value, err
}

func (r *counterRepoPG) Set(ctx context.Context, bucket string, value int64) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE sequence_counters SET value=$2, updated_at=NOW() WHERE bucket = $1`, bucket, value)
	return err
}
