package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagehq/bookingcore/internal/domain"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking, audit domain.AuditRecord) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	// Update persists the transitioned booking guarded by the optimistic
	// version check; the audit record lands in the same transaction.
	Update(ctx context.Context, booking *domain.Booking, expectedVersion int64, audit domain.AuditRecord) error
	// ListExpired returns bookings still awaiting payment whose last change
	// predates the cutoff.
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, user_id, agent_id, itinerary_id, state, payment_state,
    total_amount_cents, booking_fee_cents, cancellation_reason, cancelled_by,
    provider_payment_ref, agent_confirmed_at, trip_started_at, trip_completed_at,
    settled_at, dispute_id, version, created_at, updated_at`

func (r *PGBookingRepository) Create(ctx context.Context, b *domain.Booking, audit domain.AuditRecord) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        INSERT INTO bookings
            (id, user_id, agent_id, itinerary_id, state, payment_state,
             total_amount_cents, booking_fee_cents, cancellation_reason, cancelled_by,
             provider_payment_ref, dispute_id, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		b.ID, b.UserID, b.AgentID, b.ItineraryID, b.State, b.PaymentState,
		b.TotalAmountCents, b.BookingFeeCents, b.CancellationReason, b.CancelledBy,
		b.ProviderPaymentRef, b.DisputeID, b.Version, b.CreatedAt, b.UpdatedAt); err != nil {
		return err
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) Update(ctx context.Context, b *domain.Booking, expectedVersion int64, audit domain.AuditRecord) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
        UPDATE bookings
        SET state=$1, payment_state=$2, cancellation_reason=$3, cancelled_by=$4,
            provider_payment_ref=$5, agent_confirmed_at=$6, trip_started_at=$7,
            trip_completed_at=$8, settled_at=$9, dispute_id=$10, version=$11,
            updated_at=$12
        WHERE id=$13 AND version=$14`,
		b.State, b.PaymentState, b.CancellationReason, b.CancelledBy,
		b.ProviderPaymentRef, b.AgentConfirmedAt, b.TripStartedAt,
		b.TripCompletedAt, b.SettledAt, b.DisputeID, b.Version,
		b.UpdatedAt, b.ID, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &domain.ConcurrentModificationError{EntityType: "booking", EntityID: b.ID, ExpectedVersion: expectedVersion}
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+bookingColumns+`
        FROM bookings
        WHERE updated_at <= $1 AND state = ANY($2)
        ORDER BY updated_at
        LIMIT $3`,
		cutoff, []string{string(domain.BookingStatePendingPayment), string(domain.BookingStatePaymentProcessing)}, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, *b)
	}
	return stale, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.AgentID, &b.ItineraryID, &b.State,
		&b.PaymentState, &b.TotalAmountCents, &b.BookingFeeCents,
		&b.CancellationReason, &b.CancelledBy, &b.ProviderPaymentRef,
		&b.AgentConfirmedAt, &b.TripStartedAt, &b.TripCompletedAt, &b.SettledAt,
		&b.DisputeID, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
