// Package queue provides the SQS-based wake-up producer that nudges the
// external delivery worker after notifications have been scheduled.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"ordercast/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// WakeupMetrics counts failed wake-up publishes. Implementations are
// best-effort.
type WakeupMetrics interface {
	RecordWakeupFailure(ctx context.Context, tenantID, source string)
}

// WakeupPublisher sends ScheduledMessage payloads to the delivery-worker
// queue. Delivery of the wake-up is best-effort: the worker also polls on
// next_attempt_at, so a lost message only delays a notification, never
// drops it. NotifyScheduled therefore logs failures instead of returning
// them, keeping the scheduling path non-blocking.
//
// Stats is optional and may be set after construction.
type WakeupPublisher struct {
	Stats WakeupMetrics

	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewWakeupPublisher creates a publisher for the given delivery queue URL.
func NewWakeupPublisher(client SQSSender, queueURL string, logger *slog.Logger) *WakeupPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &WakeupPublisher{
		client:   client,
		queueURL: queueURL,
		clock:    types.RealClock{},
		logger:   logger,
	}
}

// NotifyScheduled publishes a wake-up for freshly scheduled notifications.
// The send happens in a goroutine detached from the request's cancellation
// so a slow queue never holds up the dispatch response.
func (p *WakeupPublisher) NotifyScheduled(ctx context.Context, tenantID string, notificationIDs []string, source string) {
	if len(notificationIDs) == 0 {
		return
	}

	msg := types.ScheduledMessage{
		TenantID:        tenantID,
		NotificationIDs: notificationIDs,
		Source:          source,
		ScheduledAt:     p.clock.Now(),
	}

	go func(ctx context.Context) {
		if err := p.send(ctx, msg); err != nil {
			p.logger.ErrorContext(ctx, "wake-up publish failed",
				"tenant_id", tenantID,
				"notification_count", len(notificationIDs),
				"source", source,
				"error", err,
			)
			if p.Stats != nil {
				p.Stats.RecordWakeupFailure(ctx, tenantID, source)
			}
		}
	}(context.WithoutCancel(ctx))
}

// send serializes the ScheduledMessage to JSON and dispatches it.
func (p *WakeupPublisher) send(ctx context.Context, msg types.ScheduledMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal ScheduledMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"source": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Source),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send ScheduledMessage to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "wake-up message sent",
		"queue_url", p.queueURL,
		"tenant_id", msg.TenantID,
		"notification_count", len(msg.NotificationIDs),
		"source", msg.Source,
	)

	return nil
}
