package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagehq/bookingcore/internal/domain"
)

type RefundRepository interface {
	Create(ctx context.Context, refund *domain.RefundRequest, audit domain.AuditRecord) error
	GetByID(ctx context.Context, id string) (*domain.RefundRequest, error)
	Update(ctx context.Context, refund *domain.RefundRequest, expectedVersion int64, audit domain.AuditRecord) error
	// MarkProcessed writes the processed refund, its audit record and the
	// money-movement ledger entry in one transaction.
	MarkProcessed(ctx context.Context, refund *domain.RefundRequest, expectedVersion int64, audit domain.AuditRecord, entry domain.LedgerEntry) error
	LedgerEntriesForRefund(ctx context.Context, refundID string) ([]domain.LedgerEntry, error)
}

type PGRefundRepository struct {
	db *pgxpool.Pool
}

func NewRefundRepository(db *pgxpool.Pool) RefundRepository {
	return &PGRefundRepository{db: db}
}

const refundColumns = `id, booking_id, dispute_id, status, reason, amount_cents,
    is_partial, requires_admin_approval, approved_by, approved_at, approval_reason,
    denied_by, denied_at, denial_reason, processed_at, provider_refund_id,
    version, created_at, updated_at`

func (r *PGRefundRepository) Create(ctx context.Context, rr *domain.RefundRequest, audit domain.AuditRecord) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        INSERT INTO refund_requests
            (id, booking_id, dispute_id, status, reason, amount_cents, is_partial,
             requires_admin_approval, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rr.ID, rr.BookingID, rr.DisputeID, rr.Status, rr.Reason, rr.AmountCents,
		rr.IsPartial, rr.RequiresAdminApproval, rr.Version, rr.CreatedAt, rr.UpdatedAt); err != nil {
		return err
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGRefundRepository) GetByID(ctx context.Context, id string) (*domain.RefundRequest, error) {
	row := r.db.QueryRow(ctx, `SELECT `+refundColumns+` FROM refund_requests WHERE id=$1`, id)
	rr, err := scanRefund(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rr, nil
}

func (r *PGRefundRepository) Update(ctx context.Context, rr *domain.RefundRequest, expectedVersion int64, audit domain.AuditRecord) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.updateInTx(ctx, tx, rr, expectedVersion); err != nil {
		return err
	}
	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGRefundRepository) MarkProcessed(ctx context.Context, rr *domain.RefundRequest, expectedVersion int64, audit domain.AuditRecord, entry domain.LedgerEntry) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.updateInTx(ctx, tx, rr, expectedVersion); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO ledger_entries
            (id, refund_id, booking_id, from_account, to_account, amount_cents,
             provider_ref, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, entry.RefundID, entry.BookingID, entry.FromAccount,
		entry.ToAccount, entry.AmountCents, entry.ProviderRef, entry.CreatedAt); err != nil {
		return err
	}
	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGRefundRepository) updateInTx(ctx context.Context, tx pgx.Tx, rr *domain.RefundRequest, expectedVersion int64) error {
	cmd, err := tx.Exec(ctx, `
        UPDATE refund_requests
        SET status=$1, approved_by=$2, approved_at=$3, approval_reason=$4,
            denied_by=$5, denied_at=$6, denial_reason=$7, processed_at=$8,
            provider_refund_id=$9, version=$10, updated_at=$11
        WHERE id=$12 AND version=$13`,
		rr.Status, rr.ApprovedBy, rr.ApprovedAt, rr.ApprovalReason,
		rr.DeniedBy, rr.DeniedAt, rr.DenialReason, rr.ProcessedAt,
		rr.ProviderRefundID, rr.Version, rr.UpdatedAt, rr.ID, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &domain.ConcurrentModificationError{EntityType: "refund", EntityID: rr.ID, ExpectedVersion: expectedVersion}
	}
	return nil
}

func (r *PGRefundRepository) LedgerEntriesForRefund(ctx context.Context, refundID string) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, refund_id, booking_id, from_account, to_account, amount_cents,
               provider_ref, created_at
        FROM ledger_entries WHERE refund_id=$1 ORDER BY created_at`, refundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.RefundID, &e.BookingID, &e.FromAccount,
			&e.ToAccount, &e.AmountCents, &e.ProviderRef, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanRefund(row rowScanner) (*domain.RefundRequest, error) {
	var rr domain.RefundRequest
	if err := row.Scan(&rr.ID, &rr.BookingID, &rr.DisputeID, &rr.Status, &rr.Reason,
		&rr.AmountCents, &rr.IsPartial, &rr.RequiresAdminApproval,
		&rr.ApprovedBy, &rr.ApprovedAt, &rr.ApprovalReason,
		&rr.DeniedBy, &rr.DeniedAt, &rr.DenialReason,
		&rr.ProcessedAt, &rr.ProviderRefundID,
		&rr.Version, &rr.CreatedAt, &rr.UpdatedAt); err != nil {
		return nil, err
	}
	return &rr, nil
}

var _ RefundRepository = (*PGRefundRepository)(nil)
