package db

import (
	"context"
	"time"

	"ordercast/internal/types"
)

// BackfillRepository provides data access for the backfill_jobs and
// backfill_items tables. A job is a fixed snapshot of target customers
// taken at creation time; items are the unit of idempotent progress and
// the only rows the processor mutates.
type BackfillRepository struct {
	db DBTX
}

// NewBackfillRepository creates a new BackfillRepository backed by the
// given database connection (pool or transaction).
func NewBackfillRepository(db DBTX) *BackfillRepository {
	return &BackfillRepository{db: db}
}

// CreateJob inserts a job and one pending item per customer in the
// snapshot. scheduledFor is the initial due time for every item (typically
// "now"). The customer list is fixed at creation; customers added to the
// tenant later are not picked up.
func (r *BackfillRepository) CreateJob(ctx context.Context, tenantID string, customerIDs []string, scheduledFor time.Time) (*types.BackfillJob, error) {
	job := &types.BackfillJob{
		ID:             newID("bfjob"),
		TenantID:       tenantID,
		Status:         types.JobPending,
		TotalCustomers: len(customerIDs),
		CreatedAt:      time.Now().UTC(),
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO backfill_jobs
		 (id, tenant_id, status, total_customers, processed_customers, created_at)
		 VALUES ($1, $2, $3, $4, 0, $5)`,
		job.ID,
		job.TenantID,
		string(job.Status),
		job.TotalCustomers,
		job.CreatedAt,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create backfill job", err)
	}

	for _, customerID := range customerIDs {
		_, err := r.db.Exec(ctx,
			`INSERT INTO backfill_items
			 (id, job_id, tenant_id, customer_id, status, scheduled_for)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			newID("bfitem"),
			job.ID,
			tenantID,
			customerID,
			string(types.ItemPending),
			scheduledFor,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create backfill item", err)
		}
	}

	return job, nil
}

// GetJob fetches a job scoped to the tenant. Returns (nil, nil) when no
// job matches.
func (r *BackfillRepository) GetJob(ctx context.Context, tenantID, jobID string) (*types.BackfillJob, error) {
	var (
		job         types.BackfillJob
		status      string
		completedAt *time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, status, total_customers, processed_customers,
		        completed_at, created_at
		 FROM backfill_jobs
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID,
		jobID,
	).Scan(&job.ID, &job.TenantID, &status, &job.TotalCustomers,
		&job.ProcessedCustomers, &completedAt, &job.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get backfill job", err)
	}
	job.Status = types.BackfillJobStatus(status)
	job.CompletedAt = completedAt
	return &job, nil
}

// ListDueItems returns up to limit pending items whose scheduled_for has
// passed, earliest due first (fairness across jobs and tenants).
func (r *BackfillRepository) ListDueItems(ctx context.Context, limit int) ([]*types.BackfillItem, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, job_id, tenant_id, customer_id, status, scheduled_for,
		        processed_at, error_message
		 FROM backfill_items
		 WHERE status = 'pending' AND scheduled_for <= NOW()
		 ORDER BY scheduled_for ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due backfill items", err)
	}
	defer rows.Close()

	var result []*types.BackfillItem
	for rows.Next() {
		var (
			item        types.BackfillItem
			status      string
			processedAt *time.Time
			errMsg      *string
		)
		err := rows.Scan(&item.ID, &item.JobID, &item.TenantID, &item.CustomerID,
			&status, &item.ScheduledFor, &processedAt, &errMsg)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan backfill item row", err)
		}
		item.Status = types.BackfillItemStatus(status)
		item.ProcessedAt = processedAt
		if errMsg != nil {
			item.ErrorMessage = *errMsg
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating backfill item rows", err)
	}

	return result, nil
}

// MarkItemCompleted transitions an item pending -> completed.
func (r *BackfillRepository) MarkItemCompleted(ctx context.Context, itemID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE backfill_items
		 SET status = 'completed', processed_at = $2, error_message = NULL
		 WHERE id = $1 AND status = 'pending'`,
		itemID,
		at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark backfill item completed", err)
	}
	return nil
}

// MarkItemSkipped transitions an item pending -> skipped with a
// human-readable reason.
func (r *BackfillRepository) MarkItemSkipped(ctx context.Context, itemID, reason string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE backfill_items
		 SET status = 'skipped', processed_at = $2, error_message = $3
		 WHERE id = $1 AND status = 'pending'`,
		itemID,
		at,
		reason,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark backfill item skipped", err)
	}
	return nil
}

// IncrementProcessed bumps the job's processed_customers counter. The
// increment happens at the storage layer so it remains correct under
// concurrent batch calls.
func (r *BackfillRepository) IncrementProcessed(ctx context.Context, jobID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE backfill_jobs
		 SET processed_customers = processed_customers + 1
		 WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to increment processed counter", err)
	}
	return nil
}

// CountPendingItems returns the number of items still pending for a job.
func (r *BackfillRepository) CountPendingItems(ctx context.Context, jobID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM backfill_items WHERE job_id = $1 AND status = 'pending'`,
		jobID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count pending items", err)
	}
	return count, nil
}

// CompleteJob transitions a job pending -> completed and stamps
// completed_at. A no-op if the job is already completed, so overlapping
// batch calls that both observe zero pending items converge safely.
func (r *BackfillRepository) CompleteJob(ctx context.Context, jobID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE backfill_jobs
		 SET status = 'completed', completed_at = $2
		 WHERE id = $1 AND status = 'pending'`,
		jobID,
		at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to complete backfill job", err)
	}
	return nil
}
