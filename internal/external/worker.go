package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"ordercast/internal/types"
)

// WorkerClient nudges the delivery worker over HTTP. It is the wake-up
// transport used in deployments without an SQS queue: the worker exposes
// a /wake endpoint and otherwise relies on its own next_attempt_at poll,
// so this call is best-effort by contract.
type WorkerClient struct {
	base    *BaseClient
	wakeURL string
	clock   types.Clock
	logger  *slog.Logger
}

// NewWorkerClient creates a WorkerClient posting to wakeURL.
func NewWorkerClient(httpClient *http.Client, wakeURL string, logger *slog.Logger, opts ...BaseClientOption) *WorkerClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerClient{
		base:    NewBaseClient(httpClient, "delivery-worker", DefaultRetryPolicy(), "ordercast/1.0", opts...),
		wakeURL: wakeURL,
		clock:   types.RealClock{},
		logger:  logger,
	}
}

// NotifyScheduled posts a wake-up for freshly scheduled notifications.
// The call runs detached from the request's cancellation and failures are
// only logged; a missed wake-up just means the worker picks the rows up
// on its next poll.
func (w *WorkerClient) NotifyScheduled(ctx context.Context, tenantID string, notificationIDs []string, source string) {
	if len(notificationIDs) == 0 {
		return
	}

	msg := types.ScheduledMessage{
		TenantID:        tenantID,
		NotificationIDs: notificationIDs,
		Source:          source,
		ScheduledAt:     w.clock.Now(),
	}

	go func(ctx context.Context) {
		if err := w.wake(ctx, msg); err != nil {
			w.logger.ErrorContext(ctx, "worker wake-up failed",
				"tenant_id", tenantID,
				"notification_count", len(notificationIDs),
				"source", source,
				"error", err,
			)
		}
	}(context.WithoutCancel(ctx))
}

func (w *WorkerClient) wake(ctx context.Context, msg types.ScheduledMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("external: failed to marshal wake payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.wakeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("external: failed to build wake request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("external: worker wake returned %d", resp.StatusCode)
	}
	return nil
}
