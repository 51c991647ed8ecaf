package db

import (
	"context"

	"ordercast/internal/types"
)

// DedupLedgerRepository provides access to the notification_dedup table,
// the engine's sole concurrency-control primitive. The table carries a
// uniqueness constraint over (tenant_id, rule_id, entity_id, scope_key); a
// claim that loses the insert race is reported as not-claimed, never as an
// error.
//
// The scope key partitions claims: live dispatch claims under the rule's
// dedupe scope, backfill claims under "backfill_<job_id>". A customer can
// therefore be notified once per live trigger plus once per backfill job.
//
// All scheduling paths (live dispatch and backfill) MUST pass through
// TryClaim before creating any notification.
type DedupLedgerRepository struct {
	db DBTX
}

// NewDedupLedgerRepository creates a new DedupLedgerRepository backed by
// the given database connection (pool or transaction).
func NewDedupLedgerRepository(db DBTX) *DedupLedgerRepository {
	return &DedupLedgerRepository{db: db}
}

// TryClaim attempts to append a claim for (tenant, rule, entity, scope).
// Returns true if this caller won the claim, false if a row for the tuple
// already exists. Safe under concurrent callers: the decision is made by
// the storage-level uniqueness constraint, not by a check-then-insert in
// application code.
func (r *DedupLedgerRepository) TryClaim(ctx context.Context, entry types.DedupLedgerEntry) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO notification_dedup
		 (tenant_id, rule_id, entity_type, entity_id, scope_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (tenant_id, rule_id, entity_id, scope_key) DO NOTHING`,
		entry.TenantID,
		entry.RuleID,
		entry.EntityType,
		entry.EntityID,
		entry.ScopeKey,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim dedup ledger entry", err)
	}

	// RowsAffected is 1 when the insert landed, 0 when the tuple was
	// already claimed (conflict swallowed by DO NOTHING).
	return tag.RowsAffected() > 0, nil
}
