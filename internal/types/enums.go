package types

// RuleType identifies the business family a notification rule belongs to.
// The dedupe scope of a rule is a pure function of its RuleType.
type RuleType string

const (
	RuleTypePayment           RuleType = "payment"
	RuleTypeShipping          RuleType = "shipping"
	RuleTypeAbandonedCheckout RuleType = "abandoned_checkout"
	RuleTypePostSale          RuleType = "post_sale"
)

// TriggerCondition is the rule-authoring sub-condition within a RuleType.
// Rule types without sub-conditions (abandoned_checkout, post_sale) use the
// empty string.
type TriggerCondition string

// Payment conditions.
const (
	ConditionPaymentApproved TriggerCondition = "payment_approved"
	ConditionPixGenerated    TriggerCondition = "pix_generated"
	ConditionBoletoGenerated TriggerCondition = "boleto_generated"
	ConditionPaymentDeclined TriggerCondition = "payment_declined"
	ConditionPaymentExpired  TriggerCondition = "payment_expired"
)

// Shipping conditions.
const (
	ConditionPosted         TriggerCondition = "posted"
	ConditionInTransit      TriggerCondition = "in_transit"
	ConditionOutForDelivery TriggerCondition = "out_for_delivery"
	ConditionAwaitingPickup TriggerCondition = "awaiting_pickup"
	ConditionReturning      TriggerCondition = "returning"
	ConditionIssue          TriggerCondition = "issue"
	ConditionDelivered      TriggerCondition = "delivered"
)

// EventType is the canonical business-event vocabulary. Event producers emit
// these strings; rules match on them via their derived trigger_event_type.
type EventType string

const (
	EventOrderPaid            EventType = "order.paid"
	EventOrderPixCreated      EventType = "order.pix_created"
	EventOrderBoletoCreated   EventType = "order.boleto_created"
	EventOrderPaymentDeclined EventType = "order.payment_declined"
	EventOrderPaymentExpired  EventType = "order.payment_expired"
	EventOrderShipped         EventType = "order.shipped"
	EventOrderInTransit       EventType = "order.in_transit"
	EventOrderOutForDelivery  EventType = "order.out_for_delivery"
	EventOrderAwaitingPickup  EventType = "order.awaiting_pickup"
	EventOrderReturning       EventType = "order.returning"
	EventOrderDeliveryIssue   EventType = "order.delivery_issue"
	EventOrderDelivered       EventType = "order.delivered"
	EventCheckoutAbandoned    EventType = "checkout.abandoned"
	EventCustomerFirstOrder   EventType = "customer.first_order"
)

// DedupeScope is the entity granularity at which "already notified" is
// tracked for a rule. Derived solely from RuleType, never set directly.
type DedupeScope string

const (
	ScopeOrder    DedupeScope = "order"
	ScopeCustomer DedupeScope = "customer"
	ScopeCart     DedupeScope = "cart"
	ScopeNone     DedupeScope = "none"
)

// Channel is a delivery channel for a notification.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// DelayUnit is the display unit a rule author picked for the delay.
// Stored delay_seconds is always normalized; the unit is retained only
// so the authoring UI can round-trip the original value.
type DelayUnit string

const (
	UnitMinutes DelayUnit = "minutes"
	UnitHours   DelayUnit = "hours"
	UnitDays    DelayUnit = "days"
)

// ProductScope controls which products a rule applies to.
type ProductScope string

const (
	ProductScopeAll      ProductScope = "all"
	ProductScopeSpecific ProductScope = "specific"
)

// NotificationStatus is the lifecycle state of a notification row. The
// engine only ever writes "scheduled"; the external delivery worker owns
// the transitions beyond that.
type NotificationStatus string

const (
	NotificationScheduled NotificationStatus = "scheduled"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
)

// BackfillJobStatus is the lifecycle state of a backfill job.
type BackfillJobStatus string

const (
	JobPending   BackfillJobStatus = "pending"
	JobCompleted BackfillJobStatus = "completed"
)

// BackfillItemStatus is the lifecycle state of a single backfill item.
type BackfillItemStatus string

const (
	ItemPending   BackfillItemStatus = "pending"
	ItemCompleted BackfillItemStatus = "completed"
	ItemSkipped   BackfillItemStatus = "skipped"
)

// Notification payload provenance values.
const (
	SourceLive     = "live"
	SourceBackfill = "post_sale_backfill"
)

// DefaultMaxAttempts is the default delivery attempt budget for a
// notification. The external worker decrements against this.
const DefaultMaxAttempts = 3
