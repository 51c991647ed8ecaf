// Package types defines the shared domain model for the Ordercast
// notification engine: tenant-authored rules, the dedup ledger, scheduled
// notifications, and backfill jobs. It also carries the application error
// type and small cross-cutting interfaces.
//
// This package has no dependencies on other internal packages so that every
// layer (repositories, engine, API) can share it without cycles.
package types

import "time"

// NotificationRule is a tenant-owned configuration mapping a business
// condition to one or more channel messages and a delay.
//
// Invariants maintained by the rule write path (internal/rules.Derive):
//   - TriggerEventType and DedupeScope are always derivable from
//     (RuleType, TriggerCondition) and are never hand-edited.
//   - DelaySeconds is always normalized to seconds; DelayUnit is retained
//     only for display.
//
// The engine treats rules as read-only.
type NotificationRule struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	Name             string           `json:"name"`
	IsEnabled        bool             `json:"is_enabled"`
	RuleType         RuleType         `json:"rule_type"`
	TriggerCondition TriggerCondition `json:"trigger_condition,omitempty"`
	TriggerEventType EventType        `json:"trigger_event_type"`
	Channels         []Channel        `json:"channels"`

	// Per-channel message templates. Email uses subject + body; WhatsApp a
	// single body. Templates use {{variable}} placeholders.
	EmailSubject string `json:"email_subject,omitempty"`
	EmailBody    string `json:"email_body,omitempty"`
	WhatsAppBody string `json:"whatsapp_body,omitempty"`

	DelaySeconds int64     `json:"delay_seconds"`
	DelayUnit    DelayUnit `json:"delay_unit"`

	ProductScope ProductScope `json:"product_scope"`
	ProductIDs   []string     `json:"product_ids,omitempty"`

	Priority    int         `json:"priority"`
	DedupeScope DedupeScope `json:"dedupe_scope"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasChannel reports whether the rule is configured for the given channel.
func (r *NotificationRule) HasChannel(c Channel) bool {
	for _, ch := range r.Channels {
		if ch == c {
			return true
		}
	}
	return false
}

// DedupLedgerEntry is an append-only claim fact. At most one row may exist
// per (tenant_id, rule_id, entity_id); the storage-level uniqueness
// constraint over that triple is the engine's sole concurrency primitive.
type DedupLedgerEntry struct {
	TenantID   string    `json:"tenant_id"`
	RuleID     string    `json:"rule_id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	ScopeKey   string    `json:"scope_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationPayload is the rendered content plus provenance stored on a
// notification row and handed to the external delivery worker.
type NotificationPayload struct {
	Subject   string            `json:"subject,omitempty"`
	Body      string            `json:"body"`
	Variables map[string]string `json:"variables,omitempty"`
	Source    string            `json:"source"`
	JobID     string            `json:"job_id,omitempty"`
}

// Notification is one durable send intent per (rule, entity, channel).
// Created with status "scheduled"; consumed and mutated by the external
// delivery worker, which polls on status=scheduled AND next_attempt_at<=now.
type Notification struct {
	ID            string              `json:"id"`
	TenantID      string              `json:"tenant_id"`
	RuleID        string              `json:"rule_id"`
	Channel       Channel             `json:"channel"`
	Recipient     string              `json:"recipient"`
	Payload       NotificationPayload `json:"payload"`
	Status        NotificationStatus  `json:"status"`
	ScheduledFor  time.Time           `json:"scheduled_for"`
	NextAttemptAt time.Time           `json:"next_attempt_at"`
	AttemptCount  int                 `json:"attempt_count"`
	MaxAttempts   int                 `json:"max_attempts"`
	DedupeKey     string              `json:"dedupe_key"`
	CreatedAt     time.Time           `json:"created_at"`
}

// NotificationLog is a denormalized audit row mirroring a notification for
// reporting. Preview holds a short plain excerpt; BodyCompressed holds the
// full rendered body, zstd-compressed. The log never mutates the ledger or
// the notification itself.
type NotificationLog struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	NotificationID string    `json:"notification_id"`
	RuleID         string    `json:"rule_id"`
	RuleType       RuleType  `json:"rule_type"`
	Channel        Channel   `json:"channel"`
	CustomerID     string    `json:"customer_id,omitempty"`
	Recipient      string    `json:"recipient"`
	Preview        string    `json:"preview"`
	BodyCompressed []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// BackfillJob is a retroactive application of a tenant's post_sale rule
// sequence to a fixed snapshot of customers.
type BackfillJob struct {
	ID                 string            `json:"id"`
	TenantID           string            `json:"tenant_id"`
	Status             BackfillJobStatus `json:"status"`
	TotalCustomers     int               `json:"total_customers"`
	ProcessedCustomers int               `json:"processed_customers"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// BackfillItem is the unit of idempotent backfill progress: one row per
// customer in the job's snapshot.
type BackfillItem struct {
	ID           string             `json:"id"`
	JobID        string             `json:"job_id"`
	TenantID     string             `json:"tenant_id"`
	CustomerID   string             `json:"customer_id"`
	Status       BackfillItemStatus `json:"status"`
	ScheduledFor time.Time          `json:"scheduled_for"`
	ProcessedAt  *time.Time         `json:"processed_at,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// Customer is the read-only projection of the customer store the engine
// consumes for recipient resolution and template variables.
type Customer struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}
