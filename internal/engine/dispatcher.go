// Package engine implements the live trigger path of the notification
// engine: given a canonical business event, it finds the matching enabled
// rules for the tenant, claims each (rule, entity) pair through the dedup
// ledger, and durably schedules one notification per channel.
//
// The ledger claim — a storage-level uniqueness constraint — is the sole
// concurrency primitive: two racing dispatches for the same entity resolve
// to exactly one scheduled notification without application locks.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ordercast/internal/render"
	"ordercast/internal/rules"
	"ordercast/internal/types"
)

// RuleSource provides enabled-rule lookup by canonical event type, ordered
// by priority descending.
type RuleSource interface {
	ListEnabledByEvent(ctx context.Context, tenantID string, eventType types.EventType) ([]*types.NotificationRule, error)
}

// Ledger is the dedup ledger gate. TryClaim returns false (not an error)
// when the (tenant, rule, entity, scope) tuple has already been claimed.
type Ledger interface {
	TryClaim(ctx context.Context, entry types.DedupLedgerEntry) (bool, error)
}

// NotificationStore persists notifications and their mirrored audit logs.
type NotificationStore interface {
	// ExistsByDedupeKey reports whether a notification with the given dedupe
	// key already exists for the tenant. Defense in depth beyond the ledger.
	ExistsByDedupeKey(ctx context.Context, tenantID, dedupeKey string) (bool, error)

	// Create inserts the notification and its audit log row.
	Create(ctx context.Context, n *types.Notification, log *types.NotificationLog) error
}

// DedupeCache is an optional fast-path in front of the notification store's
// dedupe-key lookup. It is advisory only: cache errors and misses fall
// through to the authoritative storage checks.
type DedupeCache interface {
	// Claim marks the key seen and reports whether this caller was first.
	Claim(ctx context.Context, tenantID, dedupeKey string) (bool, error)
}

// Waker announces freshly scheduled notifications to the external delivery
// worker. Implementations are best-effort and must never block scheduling;
// failures are logged, not returned.
type Waker interface {
	NotifyScheduled(ctx context.Context, tenantID string, notificationIDs []string, source string)
}

// Metrics records dispatch outcomes. Implementations are best-effort.
type Metrics interface {
	RecordDispatch(ctx context.Context, tenantID string, eventType types.EventType, result types.DispatchResult)
}

// Dispatcher is the live trigger dispatcher. Rules, Ledger, and Store are
// required; Cache, Wake, and Stats are optional and may be nil.
type Dispatcher struct {
	Rules  RuleSource
	Ledger Ledger
	Store  NotificationStore
	Cache  DedupeCache
	Wake   Waker
	Stats  Metrics
	Clock  types.Clock
	Log    *slog.Logger
}

// NewDispatcher creates a Dispatcher with a real clock and the given
// required collaborators. Optional fields can be set directly.
func NewDispatcher(ruleSource RuleSource, ledger Ledger, store NotificationStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Rules:  ruleSource,
		Ledger: ledger,
		Store:  store,
		Clock:  types.RealClock{},
		Log:    logger,
	}
}

// Dispatch processes one inbound business event. It evaluates matching
// rules in priority order and schedules notifications behind the ledger
// gate. Per-rule and per-channel failures are isolated: they are counted in
// the result and never abort the remaining rules or channels. Only a
// failure of the initial rule lookup is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, event types.Event) (types.DispatchResult, error) {
	var result types.DispatchResult

	matched, err := d.Rules.ListEnabledByEvent(ctx, event.TenantID, event.EventType)
	if err != nil {
		return result, fmt.Errorf("dispatch: failed to look up rules for %s: %w", event.EventType, err)
	}

	vars := templateVariables(event.Context)
	var createdIDs []string

	for _, rule := range matched {
		if !ruleAppliesToProducts(rule, event.Context) {
			continue
		}
		result.RulesMatched++

		entityID := claimEntityID(rule.DedupeScope, event)
		claimed, err := d.Ledger.TryClaim(ctx, types.DedupLedgerEntry{
			TenantID:   event.TenantID,
			RuleID:     rule.ID,
			EntityType: claimEntityType(rule.DedupeScope, event),
			EntityID:   entityID,
			ScopeKey:   string(rule.DedupeScope),
		})
		if err != nil {
			result.Errors++
			d.Log.ErrorContext(ctx, "ledger claim failed, skipping rule",
				"tenant_id", event.TenantID,
				"rule_id", rule.ID,
				"entity_id", entityID,
				"error", err,
			)
			continue
		}
		if !claimed {
			// Already scheduled for this entity; a normal skip, not an error.
			d.Log.DebugContext(ctx, "rule already claimed for entity",
				"tenant_id", event.TenantID,
				"rule_id", rule.ID,
				"entity_id", entityID,
			)
			continue
		}
		result.RulesClaimed++

		// DelaySeconds is already normalized at rule-save time.
		scheduledFor := d.Clock.Now().Add(rules.Delay(rule))

		for _, channel := range rule.Channels {
			ids, skipped, errs := d.scheduleChannel(ctx, rule, event, channel, vars, entityID, scheduledFor)
			createdIDs = append(createdIDs, ids...)
			result.NotificationsCreated += len(ids)
			result.ChannelsSkipped += skipped
			result.Errors += errs
		}
	}

	if len(createdIDs) > 0 && d.Wake != nil {
		d.Wake.NotifyScheduled(ctx, event.TenantID, createdIDs, types.SourceLive)
	}
	if d.Stats != nil {
		d.Stats.RecordDispatch(ctx, event.TenantID, event.EventType, result)
	}

	return result, nil
}

// scheduleChannel creates the notification for one (rule, channel) pair.
// Returns the created IDs (zero or one), skip count, and error count.
func (d *Dispatcher) scheduleChannel(
	ctx context.Context,
	rule *types.NotificationRule,
	event types.Event,
	channel types.Channel,
	vars map[string]string,
	entityID string,
	scheduledFor time.Time,
) (ids []string, skipped, errs int) {
	recipient := resolveRecipient(channel, event.Context)
	if recipient == "" {
		// Missing recipient skips this channel only, never the whole rule.
		d.Log.WarnContext(ctx, "no recipient for channel, skipping",
			"tenant_id", event.TenantID,
			"rule_id", rule.ID,
			"channel", string(channel),
		)
		return nil, 1, 0
	}

	dedupeKey := DedupeKey(event.TenantID, rule.ID, entityID, channel, types.SourceLive)

	if d.Cache != nil {
		if first, err := d.Cache.Claim(ctx, event.TenantID, dedupeKey); err == nil && !first {
			return nil, 1, 0
		}
		// Cache errors fall through; storage uniqueness stays authoritative.
	}

	exists, err := d.Store.ExistsByDedupeKey(ctx, event.TenantID, dedupeKey)
	if err != nil {
		d.Log.ErrorContext(ctx, "dedupe key lookup failed",
			"tenant_id", event.TenantID,
			"rule_id", rule.ID,
			"channel", string(channel),
			"error", err,
		)
		return nil, 0, 1
	}
	if exists {
		return nil, 1, 0
	}

	subject, body := renderMessage(rule, channel, vars)
	now := d.Clock.Now()

	notif := &types.Notification{
		TenantID:  event.TenantID,
		RuleID:    rule.ID,
		Channel:   channel,
		Recipient: recipient,
		Payload: types.NotificationPayload{
			Subject:   subject,
			Body:      body,
			Variables: vars,
			Source:    types.SourceLive,
		},
		Status:        types.NotificationScheduled,
		ScheduledFor:  scheduledFor,
		NextAttemptAt: scheduledFor,
		MaxAttempts:   types.DefaultMaxAttempts,
		DedupeKey:     dedupeKey,
		CreatedAt:     now,
	}
	log := &types.NotificationLog{
		TenantID:   event.TenantID,
		RuleID:     rule.ID,
		RuleType:   rule.RuleType,
		Channel:    channel,
		CustomerID: stringFromContext(event.Context, "customer_id"),
		Recipient:  recipient,
		Preview:    render.Preview(body, 140),
		CreatedAt:  now,
	}

	if err := d.Store.Create(ctx, notif, log); err != nil {
		d.Log.ErrorContext(ctx, "failed to create notification",
			"tenant_id", event.TenantID,
			"rule_id", rule.ID,
			"channel", string(channel),
			"error", err,
		)
		return nil, 0, 1
	}

	return []string{notif.ID}, 0, 0
}

// renderMessage renders the rule's template for the channel. Email renders
// subject and body; WhatsApp a single body.
func renderMessage(rule *types.NotificationRule, channel types.Channel, vars map[string]string) (subject, body string) {
	switch channel {
	case types.ChannelEmail:
		return render.Render(rule.EmailSubject, vars), render.Render(rule.EmailBody, vars)
	case types.ChannelWhatsApp:
		return "", render.Render(rule.WhatsAppBody, vars)
	default:
		return "", ""
	}
}

// resolveRecipient pulls the channel's recipient address from the event
// context. Returns "" when the entity has no usable address.
func resolveRecipient(channel types.Channel, eventContext map[string]any) string {
	switch channel {
	case types.ChannelEmail:
		return stringFromContext(eventContext, "customer_email")
	case types.ChannelWhatsApp:
		return stringFromContext(eventContext, "customer_phone")
	default:
		return ""
	}
}

// claimEntityID resolves the ledger entity for a rule's dedupe scope.
// Order- and cart-scoped rules claim on the triggering entity; customer-
// scoped rules claim on the customer so repeat orders do not re-notify.
func claimEntityID(scope types.DedupeScope, event types.Event) string {
	if scope == types.ScopeCustomer {
		if id := stringFromContext(event.Context, "customer_id"); id != "" {
			return id
		}
	}
	return event.Entity.ID
}

// claimEntityType mirrors claimEntityID for the stored entity_type column.
func claimEntityType(scope types.DedupeScope, event types.Event) string {
	if scope == types.ScopeCustomer && stringFromContext(event.Context, "customer_id") != "" {
		return "customer"
	}
	return event.Entity.Type
}

// ruleAppliesToProducts applies the product-scope filter: a rule scoped to
// specific products matches only when the triggering entity references at
// least one of them.
func ruleAppliesToProducts(rule *types.NotificationRule, eventContext map[string]any) bool {
	if rule.ProductScope != types.ProductScopeSpecific {
		return true
	}
	if len(rule.ProductIDs) == 0 {
		return false
	}

	eventProducts := stringSliceFromContext(eventContext, "product_ids")
	for _, pid := range eventProducts {
		for _, want := range rule.ProductIDs {
			if pid == want {
				return true
			}
		}
	}
	return false
}

// templateVariables flattens the event context into string template
// variables. Scalar values are stringified; nested structures are ignored
// (templates address scalars only).
func templateVariables(eventContext map[string]any) map[string]string {
	vars := make(map[string]string, len(eventContext))
	for k, v := range eventContext {
		switch val := v.(type) {
		case string:
			vars[k] = val
		case bool, int, int64, float64:
			vars[k] = fmt.Sprint(val)
		}
	}
	return vars
}

func stringFromContext(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// stringSliceFromContext handles both []string and the []any produced by
// JSON decoding.
func stringSliceFromContext(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
