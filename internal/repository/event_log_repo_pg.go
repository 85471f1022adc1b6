package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGEventLogRepository struct {
	pgStore
}

func NewEventLogRepository(db *pgxpool.Pool) EventLogRepository {
	return &PGEventLogRepository{pgStore: newPGStore(db, nil)}
}

// Append stores the entry once; redelivered events are ignored.
func (r *PGEventLogRepository) Append(ctx context.Context, entry domain.EventLogEntry) error {
	_, err := r.q(ctx).Exec(ctx, `
INSERT INTO event_log (id, type, entity, entity_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Type, entry.Entity, entry.EntityID, []byte(entry.Payload), entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

var _ EventLogRepository = (*PGEventLogRepository)(nil)
