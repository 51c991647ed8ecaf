package external

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ordercast/internal/types"
)

func TestWorkerClient_NotifyScheduledPostsWakePayload(t *testing.T) {
	received := make(chan types.ScheduledMessage, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg types.ScheduledMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("bad wake payload: %v", err)
		}
		received <- msg
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewWorkerClient(server.Client(), server.URL+"/wake", slog.New(slog.NewTextHandler(io.Discard, nil)), WithSleepFunc(noopSleep))

	client.NotifyScheduled(context.Background(), "tenant_1", []string{"notif_1", "notif_2"}, types.SourceLive)

	select {
	case msg := <-received:
		if msg.TenantID != "tenant_1" {
			t.Errorf("tenant_id = %q", msg.TenantID)
		}
		if len(msg.NotificationIDs) != 2 {
			t.Errorf("notification ids = %v", msg.NotificationIDs)
		}
		if msg.Source != types.SourceLive {
			t.Errorf("source = %q", msg.Source)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for wake call")
	}
}

func TestWorkerClient_NotifyScheduledEmptyIDsIsNoOp(t *testing.T) {
	called := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
	}))
	defer server.Close()

	client := NewWorkerClient(server.Client(), server.URL+"/wake", slog.New(slog.NewTextHandler(io.Discard, nil)))

	client.NotifyScheduled(context.Background(), "tenant_1", nil, types.SourceLive)

	select {
	case <-called:
		t.Fatal("unexpected wake call for empty id list")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorkerClient_WakeFailureIsSwallowed(t *testing.T) {
	done := make(chan struct{}, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done <- struct{}{}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewWorkerClient(server.Client(), server.URL+"/wake", slog.New(slog.NewTextHandler(io.Discard, nil)), WithSleepFunc(noopSleep))

	// Must not panic; errors are logged only. Retries drain through the
	// base client before giving up.
	client.NotifyScheduled(context.Background(), "tenant_1", []string{"notif_1"}, types.SourceBackfill)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wake call never reached the server")
	}
}
