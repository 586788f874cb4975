package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	actionSplit = "split"
	actionMerge = "merge"
)

// AuditRepository records split and merge lineage so retired orders can be
// traced to their replacements.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository instance.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{
		pool: pool,
	}
}

// RecordSplit links a retired source order to the orders the split produced.
func (r *AuditRepository) RecordSplit(ctx context.Context, sourceID uuid.UUID, resultIDs []uuid.UUID, actor string, at time.Time) error {
	return r.record(ctx, actionSplit, sourceID, resultIDs, actor, at)
}

// RecordMerge links a merged order to the retired sources it absorbed.
func (r *AuditRepository) RecordMerge(ctx context.Context, mergedID uuid.UUID, sourceIDs []uuid.UUID, actor string, at time.Time) error {
	return r.record(ctx, actionMerge, mergedID, sourceIDs, actor, at)
}

func (r *AuditRepository) record(ctx context.Context, action string, targetID uuid.UUID, relatedIDs []uuid.UUID, actor string, at time.Time) error {
	related, err := json.Marshal(relatedIDs)
	if err != nil {
		return fmt.Errorf("encode related order ids for %s: %w", targetID, err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO order_audit (id, action, target_order_id, related_order_ids, actor, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), action, targetID, related, actor, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s for order %s: %w", action, targetID, err)
	}

	return nil
}
