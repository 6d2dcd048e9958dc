package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagehq/bookingcore/internal/domain"
)

// insertAudit appends the audit record inside the caller's transaction. Every
// entity write path goes through a repository method that takes an
// AuditRecord parameter, so a state change without its audit pair cannot be
// expressed. A failed insert aborts the whole transaction.
func insertAudit(ctx context.Context, tx pgx.Tx, rec domain.AuditRecord) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO audit_records
            (id, entity_type, entity_id, action, actor_type, actor_id,
             previous_state, new_state, reason, correlation_id, version, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rec.ID, rec.EntityType, rec.EntityID, rec.Action, rec.ActorType, rec.ActorID,
		rec.PreviousState, rec.NewState, rec.Reason, rec.CorrelationID, rec.Version, rec.CreatedAt)
	if err != nil {
		return &domain.AuditWriteError{Err: err}
	}
	return nil
}

type AuditRepository interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditRecord, error)
}

type PGAuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) AuditRepository {
	return &PGAuditRepository{db: db}
}

// ListByEntity returns the entity's audit trail ordered by version, which is
// the entity's total mutation order.
func (r *PGAuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditRecord, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, entity_type, entity_id, action, actor_type, actor_id,
               previous_state, new_state, reason, correlation_id, version, created_at
        FROM audit_records
        WHERE entity_type=$1 AND entity_id=$2
        ORDER BY version`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Action,
			&rec.ActorType, &rec.ActorID, &rec.PreviousState, &rec.NewState,
			&rec.Reason, &rec.CorrelationID, &rec.Version, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ AuditRepository = (*PGAuditRepository)(nil)
