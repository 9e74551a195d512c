package dashboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// Collect runs the dashboard counters in a single round trip. Everything is
// bounded by CURRENT_DATE where "today" applies, in the database timezone.
func (r *repoPG) Collect(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM patients WHERE created_at::date = CURRENT_DATE),
			(SELECT COUNT(*) FROM orders   WHERE created_at::date = CURRENT_DATE),
			(SELECT COUNT(*) FROM samples  WHERE status = 'PENDING'),
			(SELECT COUNT(*) FROM samples  WHERE status = 'COLLECTED'),
			(SELECT COUNT(*) FROM results  WHERE status = 'DRAFT'),
			(SELECT COUNT(*) FROM results  WHERE status = 'ENTERED'),
			(SELECT COUNT(*) FROM reports  WHERE generated_at::date = CURRENT_DATE)`,
	).Scan(&s.PatientsRegisteredToday, &s.OrdersCreatedToday,
		&s.SamplesPendingCollect, &s.SamplesAwaitingReceive,
		&s.ResultsAwaitingEntry, &s.ResultsAwaitingVerify,
		&s.ReportsPublishedToday)
	if err != nil {
		return nil, fmt.Errorf("collect dashboard stats: %w", err)
	}
	return &s, nil
}
