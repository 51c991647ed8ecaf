// Package handlers contains the HTTP handler implementations for the
// Ordercast API: event ingestion, rule management, and backfill jobs.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ordercast/internal/core"
	"ordercast/internal/types"
)

// EventDispatcher runs the trigger pipeline for one inbound event.
// Mirrors engine.Dispatcher.Dispatch.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event types.Event) (types.DispatchResult, error)
}

// DispatchEventRequest is the request body for POST /v1/events.
type DispatchEventRequest struct {
	TenantID  string            `json:"tenant_id" validate:"required"`
	EventType string            `json:"event_type" validate:"required"`
	Entity    types.EventEntity `json:"entity" validate:"required"`
	Context   map[string]any    `json:"context,omitempty"`
}

// EventsHandler ingests business events and hands them to the dispatcher.
type EventsHandler struct {
	dispatcher EventDispatcher
	validator  *core.Validator
	logger     *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(dispatcher EventDispatcher, v *core.Validator, l *slog.Logger) *EventsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &EventsHandler{
		dispatcher: dispatcher,
		validator:  v,
		logger:     l,
	}
}

// RegisterRoutes mounts event routes on the provided chi.Router.
func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/events", h.Dispatch)
}

// Dispatch handles POST /v1/events. The response summarizes what the
// engine did; per-channel failures are counted in the result rather than
// failing the request so the event source never retries on our behalf.
func (h *EventsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchEventRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	event := types.Event{
		TenantID:  req.TenantID,
		EventType: types.EventType(req.EventType),
		Entity:    req.Entity,
		Context:   req.Context,
	}

	result, err := h.dispatcher.Dispatch(r.Context(), event)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "event dispatched",
		"tenant_id", event.TenantID,
		"event_type", string(event.EventType),
		"entity_id", event.Entity.ID,
		"rules_matched", result.RulesMatched,
		"notifications_created", result.NotificationsCreated,
	)

	core.JSON(w, r, http.StatusAccepted, core.APIResponse{Data: result})
}
