package types

import "time"

// EventEntity identifies the business entity an inbound event refers to.
type EventEntity struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required,oneof=order customer cart"`
}

// Event is the inbound business-event contract consumed from the
// order/payment/shipment state machines. EventType must be one of the
// canonical strings produced by the rule compiler (e.g. "order.paid").
//
// Context carries free-form template variables and recipient hints. Well
// known keys the engine reads:
//
//	customer_id    string  used for ledger claims with customer scope
//	customer_email string  email recipient
//	customer_phone string  whatsapp recipient
//	product_ids    []any   product ids referenced by the entity, used by
//	                       product-scope filtering
type Event struct {
	TenantID  string         `json:"tenant_id" validate:"required"`
	EventType EventType      `json:"event_type" validate:"required"`
	Entity    EventEntity    `json:"entity" validate:"required"`
	Context   map[string]any `json:"context,omitempty"`
}

// DispatchResult summarizes one Dispatch call. Per-channel failures are
// counted here and never propagated to the event source.
type DispatchResult struct {
	RulesMatched         int `json:"rules_matched"`
	RulesClaimed         int `json:"rules_claimed"`
	NotificationsCreated int `json:"notifications_created"`
	ChannelsSkipped      int `json:"channels_skipped"`
	Errors               int `json:"errors"`
}

// BackfillStats summarizes one ProcessBatch call.
type BackfillStats struct {
	ItemsProcessed       int `json:"items_processed"`
	NotificationsCreated int `json:"notifications_created"`
	ItemsSkipped         int `json:"items_skipped"`
	JobsCompleted        int `json:"jobs_completed"`
	Errors               int `json:"errors"`
}

// ScheduledMessage is the best-effort wake-up payload published to the
// delivery-worker queue after notifications have been durably scheduled.
// Losing this message is harmless: the worker also polls on
// status=scheduled AND next_attempt_at <= now.
type ScheduledMessage struct {
	TenantID        string    `json:"tenant_id"`
	NotificationIDs []string  `json:"notification_ids"`
	Source          string    `json:"source"`
	ScheduledAt     time.Time `json:"scheduled_at"`
}
