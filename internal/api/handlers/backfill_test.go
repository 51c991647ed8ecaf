package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordercast/internal/core"
	"ordercast/internal/types"
)

// mockJobStore implements JobStore for testing.
type mockJobStore struct {
	createJobFn func(ctx context.Context, tenantID string, customerIDs []string, scheduledFor time.Time) (*types.BackfillJob, error)
	getJobFn    func(ctx context.Context, tenantID, jobID string) (*types.BackfillJob, error)

	capturedCustomerIDs []string
}

func (m *mockJobStore) CreateJob(ctx context.Context, tenantID string, customerIDs []string, scheduledFor time.Time) (*types.BackfillJob, error) {
	m.capturedCustomerIDs = customerIDs
	if m.createJobFn != nil {
		return m.createJobFn(ctx, tenantID, customerIDs, scheduledFor)
	}
	return &types.BackfillJob{
		ID:             "bfj_1",
		TenantID:       tenantID,
		Status:         types.JobPending,
		TotalCustomers: len(customerIDs),
		CreatedAt:      scheduledFor,
	}, nil
}

func (m *mockJobStore) GetJob(ctx context.Context, tenantID, jobID string) (*types.BackfillJob, error) {
	if m.getJobFn != nil {
		return m.getJobFn(ctx, tenantID, jobID)
	}
	return nil, nil
}

func newBackfillRouter(store *mockJobStore) http.Handler {
	logger := slog.Default()
	h := NewBackfillHandler(store, core.NewValidator(logger), logger)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestBackfillHandler_Create_Success(t *testing.T) {
	store := &mockJobStore{}
	router := newBackfillRouter(store)

	body, err := json.Marshal(CreateBackfillJobRequest{
		TenantID:    "tenant_1",
		CustomerIDs: []string{"cust_1", "cust_2"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/backfill/jobs", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data types.BackfillJob `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bfj_1", resp.Data.ID)
	assert.Equal(t, 2, resp.Data.TotalCustomers)
}

func TestBackfillHandler_Create_DeduplicatesCustomerIDs(t *testing.T) {
	store := &mockJobStore{}
	router := newBackfillRouter(store)

	body, err := json.Marshal(CreateBackfillJobRequest{
		TenantID:    "tenant_1",
		CustomerIDs: []string{"cust_1", "cust_2", "cust_1", "cust_3", "cust_2"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/backfill/jobs", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"cust_1", "cust_2", "cust_3"}, store.capturedCustomerIDs)
}

func TestBackfillHandler_Create_EmptyCustomerList(t *testing.T) {
	router := newBackfillRouter(&mockJobStore{})

	body, err := json.Marshal(CreateBackfillJobRequest{
		TenantID:    "tenant_1",
		CustomerIDs: []string{},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/backfill/jobs", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackfillHandler_Create_TooManyCustomers(t *testing.T) {
	store := &mockJobStore{}
	router := newBackfillRouter(store)

	ids := make([]string, maxBackfillCustomers+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("cust_%d", i)
	}
	body, err := json.Marshal(CreateBackfillJobRequest{TenantID: "tenant_1", CustomerIDs: ids})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/backfill/jobs", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, store.capturedCustomerIDs)

	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeValidationBatchSize), resp.Error.Code)
	assert.EqualValues(t, maxBackfillCustomers, resp.Error.Details["max"])
}

func TestBackfillHandler_Get_Success(t *testing.T) {
	store := &mockJobStore{
		getJobFn: func(_ context.Context, tenantID, jobID string) (*types.BackfillJob, error) {
			assert.Equal(t, "tenant_1", tenantID)
			assert.Equal(t, "bfj_1", jobID)
			return &types.BackfillJob{
				ID:                 "bfj_1",
				TenantID:           "tenant_1",
				Status:             types.JobPending,
				TotalCustomers:     100,
				ProcessedCustomers: 40,
			}, nil
		},
	}
	router := newBackfillRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/backfill/jobs/bfj_1?tenant_id=tenant_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data types.BackfillJob `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.Data.ProcessedCustomers)
}

func TestBackfillHandler_Get_MissingTenantParam(t *testing.T) {
	router := newBackfillRouter(&mockJobStore{})

	req := httptest.NewRequest(http.MethodGet, "/backfill/jobs/bfj_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackfillHandler_Get_NotFound(t *testing.T) {
	router := newBackfillRouter(&mockJobStore{})

	req := httptest.NewRequest(http.MethodGet, "/backfill/jobs/bfj_missing?tenant_id=tenant_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
