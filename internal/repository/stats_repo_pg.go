package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Statistics is the aggregation snapshot served to operators.
type Statistics struct {
	BookingsByState  map[string]int64 `json:"bookings_by_state"`
	DisputesByState  map[string]int64 `json:"disputes_by_state"`
	DisputesByCat    map[string]int64 `json:"disputes_by_category"`
	RefundsByStatus  map[string]int64 `json:"refunds_by_status"`
	RefundedCents    int64            `json:"refunded_cents_total"`
	AvgResolutionSec float64          `json:"avg_dispute_resolution_seconds"`
}

type StatsRepository interface {
	Collect(ctx context.Context) (*Statistics, error)
}

type PGStatsRepository struct {
	db *pgxpool.Pool
}

func NewStatsRepository(db *pgxpool.Pool) StatsRepository {
	return &PGStatsRepository{db: db}
}

func (r *PGStatsRepository) Collect(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		BookingsByState: map[string]int64{},
		DisputesByState: map[string]int64{},
		DisputesByCat:   map[string]int64{},
		RefundsByStatus: map[string]int64{},
	}

	if err := r.countInto(ctx, stats.BookingsByState, `SELECT state, count(*) FROM bookings GROUP BY state`); err != nil {
		return nil, err
	}
	if err := r.countInto(ctx, stats.DisputesByState, `SELECT state, count(*) FROM disputes GROUP BY state`); err != nil {
		return nil, err
	}
	if err := r.countInto(ctx, stats.DisputesByCat, `SELECT category, count(*) FROM disputes GROUP BY category`); err != nil {
		return nil, err
	}
	if err := r.countInto(ctx, stats.RefundsByStatus, `SELECT status, count(*) FROM refund_requests GROUP BY status`); err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(ctx, `
        SELECT coalesce(sum(amount_cents), 0) FROM ledger_entries
        WHERE from_account=$1 AND to_account=$2`,
		"platform_escrow", "customer").Scan(&stats.RefundedCents); err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(ctx, `
        SELECT coalesce(avg(extract(epoch FROM resolved_at - created_at)), 0)
        FROM disputes WHERE resolved_at IS NOT NULL`).Scan(&stats.AvgResolutionSec); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *PGStatsRepository) countInto(ctx context.Context, dest map[string]int64, query string) error {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dest[key] = count
	}
	return rows.Err()
}

var _ StatsRepository = (*PGStatsRepository)(nil)
