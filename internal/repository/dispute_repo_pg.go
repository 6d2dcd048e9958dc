package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagehq/bookingcore/internal/domain"
)

type DisputeRepository interface {
	Create(ctx context.Context, dispute *domain.Dispute, audit domain.AuditRecord) error
	GetByID(ctx context.Context, id string) (*domain.Dispute, error)
	Update(ctx context.Context, dispute *domain.Dispute, expectedVersion int64, audit domain.AuditRecord) error
	// AppendEvidence writes the evidence row, the dispute state change and the
	// audit record in one transaction: a version conflict commits nothing.
	AppendEvidence(ctx context.Context, dispute *domain.Dispute, expectedVersion int64, audit domain.AuditRecord, evidence *domain.Evidence) error
	// Delete compensates a create whose booking-side follow-up failed. The
	// creation audit record stays: the trail is append-only.
	Delete(ctx context.Context, id string) error
	// ListOverdue returns non-terminal disputes whose agent response deadline
	// has passed, still awaiting evidence or a response.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error)
	CountEvidence(ctx context.Context, disputeID string) (int, error)
}

type PGDisputeRepository struct {
	db *pgxpool.Pool
}

func NewDisputeRepository(db *pgxpool.Pool) DisputeRepository {
	return &PGDisputeRepository{db: db}
}

const disputeColumns = `id, booking_id, traveler_id, agent_id, state, category,
    description, is_subjective_complaint, admin_assigned_id, resolution,
    fault_split_percent, agent_response_deadline, version, created_at,
    updated_at, resolved_at`

func (r *PGDisputeRepository) Create(ctx context.Context, d *domain.Dispute, audit domain.AuditRecord) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        INSERT INTO disputes
            (id, booking_id, traveler_id, agent_id, state, category, description,
             is_subjective_complaint, admin_assigned_id, resolution,
             fault_split_percent, agent_response_deadline, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		d.ID, d.BookingID, d.TravelerID, d.AgentID, d.State, d.Category, d.Description,
		d.IsSubjectiveComplaint, d.AdminAssignedID, d.Resolution,
		d.FaultSplitPercent, d.AgentResponseDeadline, d.Version, d.CreatedAt, d.UpdatedAt); err != nil {
		return err
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGDisputeRepository) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	row := r.db.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id=$1`, id)
	d, err := scanDispute(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *PGDisputeRepository) Update(ctx context.Context, d *domain.Dispute, expectedVersion int64, audit domain.AuditRecord) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
        UPDATE disputes
        SET state=$1, admin_assigned_id=$2, resolution=$3, fault_split_percent=$4,
            version=$5, updated_at=$6, resolved_at=$7
        WHERE id=$8 AND version=$9`,
		d.State, d.AdminAssignedID, d.Resolution, d.FaultSplitPercent,
		d.Version, d.UpdatedAt, d.ResolvedAt, d.ID, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &domain.ConcurrentModificationError{EntityType: "dispute", EntityID: d.ID, ExpectedVersion: expectedVersion}
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGDisputeRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+disputeColumns+`
        FROM disputes
        WHERE agent_response_deadline <= $1 AND state = ANY($2)
        ORDER BY agent_response_deadline
        LIMIT $3`,
		now, []string{string(domain.DisputeStatePendingEvidence), string(domain.DisputeStateEvidenceSubmitted)}, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overdue []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		overdue = append(overdue, *d)
	}
	return overdue, rows.Err()
}

func (r *PGDisputeRepository) AppendEvidence(ctx context.Context, d *domain.Dispute, expectedVersion int64, audit domain.AuditRecord, e *domain.Evidence) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
        UPDATE disputes
        SET state=$1, admin_assigned_id=$2, resolution=$3, fault_split_percent=$4,
            version=$5, updated_at=$6, resolved_at=$7
        WHERE id=$8 AND version=$9`,
		d.State, d.AdminAssignedID, d.Resolution, d.FaultSplitPercent,
		d.Version, d.UpdatedAt, d.ResolvedAt, d.ID, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &domain.ConcurrentModificationError{EntityType: "dispute", EntityID: d.ID, ExpectedVersion: expectedVersion}
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO dispute_evidence
            (id, dispute_id, uploader_id, filename, mime_type, size_bytes, file_url, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.DisputeID, e.UploaderID, e.Filename, e.MIMEType, e.SizeBytes, e.FileURL, e.CreatedAt); err != nil {
		return err
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGDisputeRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM disputes WHERE id=$1`, id)
	return err
}

func (r *PGDisputeRepository) CountEvidence(ctx context.Context, disputeID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM dispute_evidence WHERE dispute_id=$1`, disputeID).Scan(&count)
	return count, err
}

func scanDispute(row rowScanner) (*domain.Dispute, error) {
	var d domain.Dispute
	if err := row.Scan(&d.ID, &d.BookingID, &d.TravelerID, &d.AgentID, &d.State,
		&d.Category, &d.Description, &d.IsSubjectiveComplaint, &d.AdminAssignedID,
		&d.Resolution, &d.FaultSplitPercent, &d.AgentResponseDeadline,
		&d.Version, &d.CreatedAt, &d.UpdatedAt, &d.ResolvedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

var _ DisputeRepository = (*PGDisputeRepository)(nil)
