package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"ordercast/internal/rules"
	"ordercast/internal/types"
)

// RuleRepository provides data access for the notification_rules table.
// The write path is the enforcement point for the rule derivation
// invariants: trigger_event_type, dedupe_scope, and the normalized
// delay_seconds are recomputed via rules.Derive on every insert and
// update, so they can never drift from (rule_type, trigger_condition)
// and (delay value, delay_unit).
type RuleRepository struct {
	db DBTX
}

// NewRuleRepository creates a new RuleRepository backed by the given
// database connection (pool or transaction).
func NewRuleRepository(db DBTX) *RuleRepository {
	return &RuleRepository{db: db}
}

// ruleColumns is the shared select list for rule queries.
const ruleColumns = `id, tenant_id, name, is_enabled, rule_type, trigger_condition,
	trigger_event_type, channels, email_subject, email_body, whatsapp_body,
	delay_seconds, delay_unit, product_scope, product_ids, priority,
	dedupe_scope, created_at, updated_at`

// Create inserts a new rule. delayValue is the delay as authored, in
// r.DelayUnit; the stored delay_seconds is normalized here. The derived
// fields on r are overwritten before insert.
func (r *RuleRepository) Create(ctx context.Context, rule *types.NotificationRule, delayValue int64) error {
	rules.Derive(rule, delayValue)

	if rule.ID == "" {
		rule.ID = newID("rule")
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_rules
		 (id, tenant_id, name, is_enabled, rule_type, trigger_condition,
		  trigger_event_type, channels, email_subject, email_body, whatsapp_body,
		  delay_seconds, delay_unit, product_scope, product_ids, priority,
		  dedupe_scope, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		         $15, $16, $17, $18, $19)`,
		rule.ID,
		rule.TenantID,
		rule.Name,
		rule.IsEnabled,
		string(rule.RuleType),
		nilIfEmpty(string(rule.TriggerCondition)),
		string(rule.TriggerEventType),
		channelStrings(rule.Channels),
		nilIfEmpty(rule.EmailSubject),
		nilIfEmpty(rule.EmailBody),
		nilIfEmpty(rule.WhatsAppBody),
		rule.DelaySeconds,
		string(rule.DelayUnit),
		string(rule.ProductScope),
		rule.ProductIDs,
		rule.Priority,
		string(rule.DedupeScope),
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create rule", err)
	}
	return nil
}

// Update rewrites a rule, re-deriving the dependent fields. Returns
// not-found if the rule does not exist for the tenant.
func (r *RuleRepository) Update(ctx context.Context, rule *types.NotificationRule, delayValue int64) error {
	rules.Derive(rule, delayValue)
	rule.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx,
		`UPDATE notification_rules SET
			name = $1, is_enabled = $2, rule_type = $3, trigger_condition = $4,
			trigger_event_type = $5, channels = $6, email_subject = $7,
			email_body = $8, whatsapp_body = $9, delay_seconds = $10,
			delay_unit = $11, product_scope = $12, product_ids = $13,
			priority = $14, dedupe_scope = $15, updated_at = $16
		 WHERE id = $17 AND tenant_id = $18`,
		rule.Name,
		rule.IsEnabled,
		string(rule.RuleType),
		nilIfEmpty(string(rule.TriggerCondition)),
		string(rule.TriggerEventType),
		channelStrings(rule.Channels),
		nilIfEmpty(rule.EmailSubject),
		nilIfEmpty(rule.EmailBody),
		nilIfEmpty(rule.WhatsAppBody),
		rule.DelaySeconds,
		string(rule.DelayUnit),
		string(rule.ProductScope),
		rule.ProductIDs,
		rule.Priority,
		string(rule.DedupeScope),
		rule.UpdatedAt,
		rule.ID,
		rule.TenantID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update rule", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRule, "rule not found", nil)
	}
	return nil
}

// ListEnabledByEvent returns the tenant's enabled rules whose derived
// trigger_event_type matches, ordered by priority descending (higher
// priority evaluated first); ties break on creation time for stability.
func (r *RuleRepository) ListEnabledByEvent(ctx context.Context, tenantID string, eventType types.EventType) ([]*types.NotificationRule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ruleColumns+`
		 FROM notification_rules
		 WHERE tenant_id = $1 AND trigger_event_type = $2 AND is_enabled
		 ORDER BY priority DESC, created_at ASC`,
		tenantID,
		string(eventType),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list rules by event", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// ListEnabledPostSale returns the tenant's enabled post_sale rules ordered
// by normalized delay ascending. The backfill processor anchors the
// sequence's relative spacing on the first (smallest-delay) rule.
func (r *RuleRepository) ListEnabledPostSale(ctx context.Context, tenantID string) ([]*types.NotificationRule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ruleColumns+`
		 FROM notification_rules
		 WHERE tenant_id = $1 AND rule_type = $2 AND is_enabled
		 ORDER BY delay_seconds ASC, created_at ASC`,
		tenantID,
		string(types.RuleTypePostSale),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list post_sale rules", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// GetByID fetches a single rule scoped to the tenant. Returns (nil, nil)
// when no rule matches.
func (r *RuleRepository) GetByID(ctx context.Context, tenantID, ruleID string) (*types.NotificationRule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ruleColumns+`
		 FROM notification_rules
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID,
		ruleID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get rule", err)
	}
	defer rows.Close()

	list, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// scanRules drains a rule result set.
func scanRules(rows pgx.Rows) ([]*types.NotificationRule, error) {
	var result []*types.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan rule row", err)
		}
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating rule rows", err)
	}
	return result, nil
}

// scanRule scans a single notification_rules row. Nullable text columns are
// read through pointers.
func scanRule(rows pgx.Rows) (*types.NotificationRule, error) {
	var (
		rule             types.NotificationRule
		ruleType         string
		triggerCondition *string
		eventType        string
		channels         []string
		emailSubject     *string
		emailBody        *string
		whatsAppBody     *string
		delayUnit        string
		productScope     string
		dedupeScope      string
	)

	err := rows.Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.Name,
		&rule.IsEnabled,
		&ruleType,
		&triggerCondition,
		&eventType,
		&channels,
		&emailSubject,
		&emailBody,
		&whatsAppBody,
		&rule.DelaySeconds,
		&delayUnit,
		&productScope,
		&rule.ProductIDs,
		&rule.Priority,
		&dedupeScope,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.RuleType = types.RuleType(ruleType)
	if triggerCondition != nil {
		rule.TriggerCondition = types.TriggerCondition(*triggerCondition)
	}
	rule.TriggerEventType = types.EventType(eventType)
	rule.Channels = make([]types.Channel, len(channels))
	for i, c := range channels {
		rule.Channels[i] = types.Channel(c)
	}
	if emailSubject != nil {
		rule.EmailSubject = *emailSubject
	}
	if emailBody != nil {
		rule.EmailBody = *emailBody
	}
	if whatsAppBody != nil {
		rule.WhatsAppBody = *whatsAppBody
	}
	rule.DelayUnit = types.DelayUnit(delayUnit)
	rule.ProductScope = types.ProductScope(productScope)
	rule.DedupeScope = types.DedupeScope(dedupeScope)

	return &rule, nil
}

// channelStrings converts typed channels to a text[] parameter.
func channelStrings(channels []types.Channel) []string {
	out := make([]string, len(channels))
	for i, c := range channels {
		out[i] = string(c)
	}
	return out
}
