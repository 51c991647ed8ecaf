package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/klauspost/compress/zstd"

	"ordercast/internal/types"
)

// logEncoder compresses full rendered bodies for the audit table. A single
// encoder is safe for concurrent EncodeAll calls.
var logEncoder, _ = zstd.NewWriter(nil)

// NotificationRepository provides data access for the notifications and
// notification_logs tables. A notification is the durable send intent the
// external delivery worker consumes; the log is the denormalized audit
// mirror used for reporting.
//
// notifications.dedupe_key carries a uniqueness constraint scoped to the
// tenant; Create uses ON CONFLICT DO NOTHING on it as defense in depth
// behind the dedup ledger.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository backed by
// the given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts the notification and its mirrored audit log row. If a
// notification with the same dedupe key already exists (a racing insert
// slipped past the Exists check), the insert is a silent no-op and no log
// row is written.
func (r *NotificationRepository) Create(ctx context.Context, n *types.Notification, log *types.NotificationLog) error {
	if n.ID == "" {
		n.ID = newID("notif")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.MaxAttempts == 0 {
		n.MaxAttempts = types.DefaultMaxAttempts
	}

	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to marshal notification payload", err)
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO notifications
		 (id, tenant_id, rule_id, channel, recipient, payload, status,
		  scheduled_for, next_attempt_at, attempt_count, max_attempts,
		  dedupe_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (tenant_id, dedupe_key) DO NOTHING`,
		n.ID,
		n.TenantID,
		n.RuleID,
		string(n.Channel),
		n.Recipient,
		payload,
		string(n.Status),
		n.ScheduledFor,
		n.NextAttemptAt,
		n.AttemptCount,
		n.MaxAttempts,
		n.DedupeKey,
		n.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	if tag.RowsAffected() == 0 {
		// Duplicate intent; treated as a normal skip, not an error.
		return nil
	}

	if log == nil {
		return nil
	}
	return r.createLog(ctx, n, log)
}

// createLog inserts the audit mirror. The full rendered body is stored
// zstd-compressed next to a short plain preview.
func (r *NotificationRepository) createLog(ctx context.Context, n *types.Notification, log *types.NotificationLog) error {
	if log.ID == "" {
		log.ID = newID("nlog")
	}
	log.NotificationID = n.ID
	if log.CreatedAt.IsZero() {
		log.CreatedAt = n.CreatedAt
	}
	log.BodyCompressed = logEncoder.EncodeAll([]byte(n.Payload.Body), nil)

	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_logs
		 (id, tenant_id, notification_id, rule_id, rule_type, channel,
		  customer_id, recipient, preview, body_zstd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		log.ID,
		log.TenantID,
		log.NotificationID,
		log.RuleID,
		string(log.RuleType),
		string(log.Channel),
		nilIfEmpty(log.CustomerID),
		log.Recipient,
		log.Preview,
		log.BodyCompressed,
		log.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create notification log", err)
	}
	return nil
}

// ExistsByDedupeKey reports whether a notification with the given dedupe
// key already exists for the tenant.
func (r *NotificationRepository) ExistsByDedupeKey(ctx context.Context, tenantID, dedupeKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM notifications WHERE tenant_id = $1 AND dedupe_key = $2
		 )`,
		tenantID,
		dedupeKey,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check dedupe key", err)
	}
	return exists, nil
}

// ListDue returns scheduled notifications whose next_attempt_at has
// passed, earliest first. This is the poll query of the outbound contract
// for the external delivery worker.
func (r *NotificationRepository) ListDue(ctx context.Context, limit int) ([]*types.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, rule_id, channel, recipient, payload, status,
		        scheduled_for, next_attempt_at, attempt_count, max_attempts,
		        dedupe_key, created_at
		 FROM notifications
		 WHERE status = 'scheduled' AND next_attempt_at <= NOW()
		 ORDER BY next_attempt_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due notifications", err)
	}
	defer rows.Close()

	var result []*types.Notification
	for rows.Next() {
		var (
			n       types.Notification
			channel string
			payload []byte
			status  string
		)
		err := rows.Scan(
			&n.ID,
			&n.TenantID,
			&n.RuleID,
			&channel,
			&n.Recipient,
			&payload,
			&status,
			&n.ScheduledFor,
			&n.NextAttemptAt,
			&n.AttemptCount,
			&n.MaxAttempts,
			&n.DedupeKey,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification row", err)
		}
		n.Channel = types.Channel(channel)
		n.Status = types.NotificationStatus(status)
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode notification payload", err)
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification rows", err)
	}

	return result, nil
}
