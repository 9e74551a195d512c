package catalog

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

const testCols = `id, code, name, description, category, sample_type, price, turnaround_time_hours, active, created_at, updated_at`

func scanTest(row pgx.Row) (*LabTest, error) {
	var t LabTest
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Description, &t.Category, &t.SampleType,
		&t.Price, &t.TurnaroundTimeHours, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *repoPG) CreateTest(ctx context.Context, t *LabTest) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_catalog (id, code, name, description, category, sample_type, price, turnaround_time_hours, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.Code, t.Name, t.Description, t.Category, t.SampleType, t.Price, t.TurnaroundTimeHours, t.Active)
	return err
}

func (r *repoPG) UpsertTest(ctx context.Context, t *LabTest) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_catalog (id, code, name, description, category, sample_type, price, turnaround_time_hours, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (code) DO UPDATE SET
			name=EXCLUDED.name, description=EXCLUDED.description, category=EXCLUDED.category,
			sample_type=EXCLUDED.sample_type, price=EXCLUDED.price,
			turnaround_time_hours=EXCLUDED.turnaround_time_hours, active=EXCLUDED.active,
			updated_at=NOW()`,
		t.ID, t.Code, t.Name, t.Description, t.Category, t.SampleType, t.Price, t.TurnaroundTimeHours, t.Active)
	return err
}

func (r *repoPG) GetTestByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	t, err := scanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+testCols+` FROM test_catalog WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *repoPG) GetTestByCode(ctx context.Context, code string) (*LabTest, error) {
	t, err := scanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+testCols+` FROM test_catalog WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *repoPG) UpdateTest(ctx context.Context, t *LabTest) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE test_catalog SET name=$2, description=$3, category=$4, sample_type=$5,
			price=$6, turnaround_time_hours=$7, active=$8, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.Category, t.SampleType, t.Price, t.TurnaroundTimeHours, t.Active)
	return err
}

func (r *repoPG) ListTests(ctx context.Context, params map[string]string, limit, offset int) ([]*LabTest, int, error) {
	query := `SELECT ` + testCols + ` FROM test_catalog WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM test_catalog WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["category"]; ok {
		query += fmt.Sprintf(` AND category = $%d`, idx)
		countQuery += fmt.Sprintf(` AND category = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["active"]; ok {
		query += fmt.Sprintf(` AND active = $%d`, idx)
		countQuery += fmt.Sprintf(` AND active = $%d`, idx)
		args = append(args, p == "true")
		idx++
	}
	if p, ok := params["q"]; ok {
		query += fmt.Sprintf(` AND (code ILIKE $%d OR name ILIKE $%d)`, idx, idx)
		countQuery += fmt.Sprintf(` AND (code ILIKE $%d OR name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+p+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY code LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*LabTest
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

const paramCols = `id, code, name, unit, data_type, decimal_places, active, created_at, updated_at`

func scanParameter(row pgx.Row) (*Parameter, error) {
	var p Parameter
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Unit, &p.DataType, &p.DecimalPlaces, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) UpsertParameter(ctx context.Context, p *Parameter) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO parameters (id, code, name, unit, data_type, decimal_places, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (code) DO UPDATE SET
			name=EXCLUDED.name, unit=EXCLUDED.unit, data_type=EXCLUDED.data_type,
			decimal_places=EXCLUDED.decimal_places, active=EXCLUDED.active, updated_at=NOW()`,
		p.ID, p.Code, p.Name, p.Unit, p.DataType, p.DecimalPlaces, p.Active)
	return err
}

func (r *repoPG) GetParameterByCode(ctx context.Context, code string) (*Parameter, error) {
	p, err := scanParameter(r.conn(ctx).QueryRow(ctx, `SELECT `+paramCols+` FROM parameters WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) ListParametersForTest(ctx context.Context, testID uuid.UUID) ([]*Parameter, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.code, p.name, p.unit, p.data_type, p.decimal_places, p.active, p.created_at, p.updated_at
		FROM parameters p
		JOIN test_parameters tp ON tp.parameter_id = p.id
		WHERE tp.test_id = $1
		ORDER BY tp.display_order`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Parameter
	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) LinkTestParameter(ctx context.Context, tp *TestParameter) error {
	if tp.ID == uuid.Nil {
		tp.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_parameters (id, test_id, parameter_id, display_order)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (test_id, parameter_id) DO UPDATE SET display_order=EXCLUDED.display_order`,
		tp.ID, tp.TestID, tp.ParameterID, tp.DisplayOrder)
	return err
}

func (r *repoPG) UpsertReferenceRange(ctx context.Context, rr *ReferenceRange) error {
	if rr.ID == uuid.Nil {
		rr.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO reference_ranges (id, parameter_id, sex, age_min, age_max, unit, normal_low, normal_high, critical_low, critical_high)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (parameter_id, sex, age_min, age_max) DO UPDATE SET
			unit=EXCLUDED.unit, normal_low=EXCLUDED.normal_low, normal_high=EXCLUDED.normal_high,
			critical_low=EXCLUDED.critical_low, critical_high=EXCLUDED.critical_high`,
		rr.ID, rr.ParameterID, rr.Sex, rr.AgeMin, rr.AgeMax, rr.Unit, rr.NormalLow, rr.NormalHigh, rr.CriticalLow, rr.CriticalHigh)
	return err
}

func (r *repoPG) ListReferenceRanges(ctx context.Context, parameterID uuid.UUID) ([]*ReferenceRange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, parameter_id, sex, age_min, age_max, unit, normal_low, normal_high, critical_low, critical_high
		FROM reference_ranges WHERE parameter_id = $1 ORDER BY age_min`, parameterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ReferenceRange
	for rows.Next() {
		var rr ReferenceRange
		if err := rows.Scan(&rr.ID, &rr.ParameterID, &rr.Sex, &rr.AgeMin, &rr.AgeMax, &rr.Unit,
			&rr.NormalLow, &rr.NormalHigh, &rr.CriticalLow, &rr.CriticalHigh); err != nil {
			return nil, err
		}
		items = append(items, &rr)
	}
	return items, rows.Err()
}
