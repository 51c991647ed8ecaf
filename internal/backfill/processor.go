// Package backfill implements the repeatable, paginated job runner that
// retroactively applies a tenant's post_sale rule sequence to a fixed
// population of existing customers. Each ProcessBatch call is
// self-contained: it drains due items through the same dedup ledger,
// delay, and render path the live dispatcher uses, then updates job
// progress and detects completion.
//
// Safety under overlap: two concurrent ProcessBatch calls (for example two
// cron ticks) may pick up the same item, but the ledger's storage-level
// uniqueness makes the duplicate pass produce zero additional
// notifications.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ordercast/internal/engine"
	"ordercast/internal/render"
	"ordercast/internal/rules"
	"ordercast/internal/types"
)

// DefaultBatchLimit bounds the items handled per ProcessBatch call when
// the caller passes a non-positive limit.
const DefaultBatchLimit = 100

// ItemStore provides the backfill item and job operations the processor
// drives. Implemented by db.BackfillRepository.
type ItemStore interface {
	ListDueItems(ctx context.Context, limit int) ([]*types.BackfillItem, error)
	MarkItemCompleted(ctx context.Context, itemID string, at time.Time) error
	MarkItemSkipped(ctx context.Context, itemID, reason string, at time.Time) error
	IncrementProcessed(ctx context.Context, jobID string) error
	CountPendingItems(ctx context.Context, jobID string) (int, error)
	CompleteJob(ctx context.Context, jobID string, at time.Time) error
}

// CustomerSource resolves the read-only customer projection. GetByID
// returns (nil, nil) for a missing customer.
type CustomerSource interface {
	GetByID(ctx context.Context, tenantID, customerID string) (*types.Customer, error)
}

// RuleSource lists a tenant's enabled post_sale rules ordered by
// normalized delay ascending.
type RuleSource interface {
	ListEnabledPostSale(ctx context.Context, tenantID string) ([]*types.NotificationRule, error)
}

// Metrics records batch outcomes. Implementations are best-effort.
type Metrics interface {
	RecordBackfill(ctx context.Context, stats types.BackfillStats)
}

// Processor walks due backfill items and schedules their notifications.
// Items, Customers, Rules, Ledger, and Store are required; Wake, Stats,
// Clock, and Log default sensibly when nil.
type Processor struct {
	Items     ItemStore
	Customers CustomerSource
	Rules     RuleSource
	Ledger    engine.Ledger
	Store     engine.NotificationStore
	Wake      engine.Waker
	Stats     Metrics
	Clock     types.Clock
	Log       *slog.Logger
}

// NewProcessor creates a Processor with a real clock.
func NewProcessor(items ItemStore, customers CustomerSource, ruleSource RuleSource, ledger engine.Ledger, store engine.NotificationStore, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Items:     items,
		Customers: customers,
		Rules:     ruleSource,
		Ledger:    ledger,
		Store:     store,
		Clock:     types.RealClock{},
		Log:       logger,
	}
}

// ProcessBatch handles up to limit due items and returns the batch
// summary. Per-item failures never abort the batch: a failed item is
// counted and left pending for the next run, a structurally unprocessable
// item (missing customer, no applicable rules) is marked skipped with a
// reason. After the batch, every job touched is checked for completion.
func (p *Processor) ProcessBatch(ctx context.Context, limit int) (types.BackfillStats, error) {
	var stats types.BackfillStats
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	items, err := p.Items.ListDueItems(ctx, limit)
	if err != nil {
		return stats, fmt.Errorf("backfill: failed to list due items: %w", err)
	}
	if len(items) == 0 {
		return stats, nil
	}

	// Bulk-fetch each tenant's post_sale sequence once per batch.
	ruleCache := make(map[string][]*types.NotificationRule)
	touchedJobs := make(map[string]struct{})

	for _, item := range items {
		touchedJobs[item.JobID] = struct{}{}

		tenantRules, ok := ruleCache[item.TenantID]
		if !ok {
			tenantRules, err = p.Rules.ListEnabledPostSale(ctx, item.TenantID)
			if err != nil {
				stats.Errors++
				p.Log.ErrorContext(ctx, "failed to load post_sale rules, leaving item pending",
					"tenant_id", item.TenantID,
					"item_id", item.ID,
					"error", err,
				)
				continue
			}
			ruleCache[item.TenantID] = tenantRules
		}

		p.processItem(ctx, item, tenantRules, &stats)
	}

	// Completion detection for every job touched in this call.
	for jobID := range touchedJobs {
		pending, err := p.Items.CountPendingItems(ctx, jobID)
		if err != nil {
			stats.Errors++
			p.Log.ErrorContext(ctx, "failed to count pending items",
				"job_id", jobID,
				"error", err,
			)
			continue
		}
		if pending > 0 {
			continue
		}
		if err := p.Items.CompleteJob(ctx, jobID, p.Clock.Now()); err != nil {
			stats.Errors++
			p.Log.ErrorContext(ctx, "failed to complete job",
				"job_id", jobID,
				"error", err,
			)
			continue
		}
		stats.JobsCompleted++
		p.Log.InfoContext(ctx, "backfill job completed", "job_id", jobID)
	}

	if p.Stats != nil {
		p.Stats.RecordBackfill(ctx, stats)
	}

	p.Log.InfoContext(ctx, "backfill batch complete",
		"items_processed", stats.ItemsProcessed,
		"notifications_created", stats.NotificationsCreated,
		"items_skipped", stats.ItemsSkipped,
		"jobs_completed", stats.JobsCompleted,
		"errors", stats.Errors,
	)

	return stats, nil
}

// processItem handles one customer item against the tenant's post_sale
// sequence. The item transitions to completed only if every rule was
// handled without a storage error; otherwise it stays pending and is
// retried on the next run (the ledger prevents duplicates for the rules
// that already succeeded).
func (p *Processor) processItem(ctx context.Context, item *types.BackfillItem, tenantRules []*types.NotificationRule, stats *types.BackfillStats) {
	now := p.Clock.Now()

	if len(tenantRules) == 0 {
		p.skipItem(ctx, item, "no enabled post_sale rules for tenant", stats)
		return
	}

	customer, err := p.Customers.GetByID(ctx, item.TenantID, item.CustomerID)
	if err != nil {
		stats.Errors++
		p.Log.ErrorContext(ctx, "customer lookup failed, leaving item pending",
			"item_id", item.ID,
			"customer_id", item.CustomerID,
			"error", err,
		)
		return
	}
	if customer == nil {
		p.skipItem(ctx, item, fmt.Sprintf("customer %s not found", item.CustomerID), stats)
		return
	}

	// The first rule (smallest normalized delay) anchors the sequence: its
	// delay is subtracted from every rule so the authored relative spacing
	// is preserved while the whole sequence starts at "now".
	baseDelay := tenantRules[0].DelaySeconds

	// Claims and dedupe keys are scoped to the job, so the same customer
	// can be re-targeted by a later backfill job.
	scopeKey := fmt.Sprintf("backfill_%s", item.JobID)
	vars := customerVariables(customer)

	var createdIDs []string
	itemFailed := false

	for _, rule := range tenantRules {
		claimed, err := p.Ledger.TryClaim(ctx, types.DedupLedgerEntry{
			TenantID:   item.TenantID,
			RuleID:     rule.ID,
			EntityType: "customer",
			EntityID:   item.CustomerID,
			ScopeKey:   scopeKey,
		})
		if err != nil {
			itemFailed = true
			stats.Errors++
			p.Log.ErrorContext(ctx, "ledger claim failed",
				"item_id", item.ID,
				"rule_id", rule.ID,
				"error", err,
			)
			continue
		}
		if !claimed {
			// Already scheduled for this customer within this job. Normal on
			// a retried item or an overlapping batch run.
			continue
		}

		scheduledFor := now.Add(rules.RelativeDelay(rule.DelaySeconds, baseDelay))

		for _, channel := range rule.Channels {
			created, failed := p.scheduleChannel(ctx, item, rule, customer, channel, scopeKey, vars, scheduledFor, now, stats)
			if failed {
				itemFailed = true
			}
			createdIDs = append(createdIDs, created...)
		}
	}

	if itemFailed {
		// Leave the item pending; the next run retries what's left.
		return
	}

	if err := p.Items.MarkItemCompleted(ctx, item.ID, p.Clock.Now()); err != nil {
		stats.Errors++
		p.Log.ErrorContext(ctx, "failed to mark item completed",
			"item_id", item.ID,
			"error", err,
		)
		return
	}
	if err := p.Items.IncrementProcessed(ctx, item.JobID); err != nil {
		stats.Errors++
		p.Log.ErrorContext(ctx, "failed to increment job progress",
			"job_id", item.JobID,
			"error", err,
		)
	}

	stats.ItemsProcessed++
	stats.NotificationsCreated += len(createdIDs)

	if len(createdIDs) > 0 && p.Wake != nil {
		p.Wake.NotifyScheduled(ctx, item.TenantID, createdIDs, types.SourceBackfill)
	}
}

// scheduleChannel creates one notification for (rule, customer, channel),
// with the same missing-recipient and dedupe-key defenses as the live
// path. Returns the created IDs (zero or one) and whether a storage error
// occurred.
func (p *Processor) scheduleChannel(
	ctx context.Context,
	item *types.BackfillItem,
	rule *types.NotificationRule,
	customer *types.Customer,
	channel types.Channel,
	scopeKey string,
	vars map[string]string,
	scheduledFor time.Time,
	now time.Time,
	stats *types.BackfillStats,
) (created []string, failed bool) {
	recipient := recipientFor(channel, customer)
	if recipient == "" {
		p.Log.WarnContext(ctx, "customer has no recipient for channel, skipping",
			"customer_id", customer.ID,
			"rule_id", rule.ID,
			"channel", string(channel),
		)
		return nil, false
	}

	// The job-qualified source keeps keys from colliding across jobs and
	// with live sends.
	dedupeKey := engine.DedupeKey(item.TenantID, rule.ID, customer.ID, channel, scopeKey)

	exists, err := p.Store.ExistsByDedupeKey(ctx, item.TenantID, dedupeKey)
	if err != nil {
		stats.Errors++
		return nil, true
	}
	if exists {
		return nil, false
	}

	var subject, body string
	switch channel {
	case types.ChannelEmail:
		subject = render.Render(rule.EmailSubject, vars)
		body = render.Render(rule.EmailBody, vars)
	case types.ChannelWhatsApp:
		body = render.Render(rule.WhatsAppBody, vars)
	}

	notif := &types.Notification{
		TenantID:  item.TenantID,
		RuleID:    rule.ID,
		Channel:   channel,
		Recipient: recipient,
		Payload: types.NotificationPayload{
			Subject:   subject,
			Body:      body,
			Variables: vars,
			Source:    types.SourceBackfill,
			JobID:     item.JobID,
		},
		Status:        types.NotificationScheduled,
		ScheduledFor:  scheduledFor,
		NextAttemptAt: scheduledFor,
		MaxAttempts:   types.DefaultMaxAttempts,
		DedupeKey:     dedupeKey,
		CreatedAt:     now,
	}
	log := &types.NotificationLog{
		TenantID:   item.TenantID,
		RuleID:     rule.ID,
		RuleType:   rule.RuleType,
		Channel:    channel,
		CustomerID: customer.ID,
		Recipient:  recipient,
		Preview:    render.Preview(body, 140),
		CreatedAt:  now,
	}

	if err := p.Store.Create(ctx, notif, log); err != nil {
		stats.Errors++
		p.Log.ErrorContext(ctx, "failed to create backfill notification",
			"item_id", item.ID,
			"rule_id", rule.ID,
			"channel", string(channel),
			"error", err,
		)
		return nil, true
	}

	return []string{notif.ID}, false
}

// skipItem marks an item skipped with a reason and counts it.
func (p *Processor) skipItem(ctx context.Context, item *types.BackfillItem, reason string, stats *types.BackfillStats) {
	if err := p.Items.MarkItemSkipped(ctx, item.ID, reason, p.Clock.Now()); err != nil {
		stats.Errors++
		p.Log.ErrorContext(ctx, "failed to mark item skipped",
			"item_id", item.ID,
			"error", err,
		)
		return
	}
	stats.ItemsSkipped++
	p.Log.InfoContext(ctx, "backfill item skipped",
		"item_id", item.ID,
		"job_id", item.JobID,
		"reason", reason,
	)
}

// recipientFor resolves the channel address from the customer projection.
func recipientFor(channel types.Channel, customer *types.Customer) string {
	switch channel {
	case types.ChannelEmail:
		return customer.Email
	case types.ChannelWhatsApp:
		return customer.Phone
	default:
		return ""
	}
}

// customerVariables builds the template variable map for a customer.
func customerVariables(c *types.Customer) map[string]string {
	return map[string]string{
		"name":           c.Name,
		"customer_name":  c.Name,
		"customer_email": c.Email,
		"customer_phone": c.Phone,
	}
}
