package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ordercast/internal/core"
	"ordercast/internal/types"
)

// maxBackfillCustomers caps the snapshot size of a single job.
const maxBackfillCustomers = 10000

// JobStore is the data access contract for backfill job management.
// Mirrors the concrete db.BackfillRepository methods used here.
type JobStore interface {
	CreateJob(ctx context.Context, tenantID string, customerIDs []string, scheduledFor time.Time) (*types.BackfillJob, error)
	GetJob(ctx context.Context, tenantID, jobID string) (*types.BackfillJob, error)
}

// CreateBackfillJobRequest is the request body for POST /v1/backfill/jobs.
type CreateBackfillJobRequest struct {
	TenantID    string   `json:"tenant_id" validate:"required"`
	CustomerIDs []string `json:"customer_ids" validate:"required,min=1,dive,required"`
}

// BackfillHandler manages backfill job creation and inspection. Item
// processing happens asynchronously in the backfill runner, never in the
// request path.
type BackfillHandler struct {
	store     JobStore
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewBackfillHandler creates a BackfillHandler with a real clock.
func NewBackfillHandler(store JobStore, v *core.Validator, l *slog.Logger) *BackfillHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BackfillHandler{
		store:     store,
		validator: v,
		clock:     types.RealClock{},
		logger:    l,
	}
}

// RegisterRoutes mounts backfill routes on the provided chi.Router.
func (h *BackfillHandler) RegisterRoutes(r chi.Router) {
	r.Route("/backfill/jobs", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
	})
}

// Create handles POST /v1/backfill/jobs. The customer list is snapshotted
// at creation time; items become due immediately.
func (h *BackfillHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBackfillJobRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if len(req.CustomerIDs) > maxBackfillCustomers {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBatchSize,
			"too many customers in one job",
			nil,
			map[string]any{"max": maxBackfillCustomers, "got": len(req.CustomerIDs)},
		))
		return
	}

	job, err := h.store.CreateJob(r.Context(), req.TenantID, dedupeIDs(req.CustomerIDs), h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "backfill job created",
		"tenant_id", job.TenantID,
		"job_id", job.ID,
		"total_customers", job.TotalCustomers,
	)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: job})
}

// Get handles GET /v1/backfill/jobs/{id}. The tenant is taken from the
// tenant_id query parameter.
func (h *BackfillHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"tenant_id query parameter is required",
			nil,
		))
		return
	}

	job, err := h.store.GetJob(r.Context(), tenantID, jobID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if job == nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundJob,
			"backfill job not found",
			nil,
		))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: job})
}

// dedupeIDs removes duplicate customer IDs while preserving order, so a
// sloppy export cannot double-count a customer in the job total.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
