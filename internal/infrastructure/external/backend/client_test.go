package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": status < 300,
		"data":    data,
		"error":   errMsg,
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 2 * time.Second
	cfg.BreakerConsecutiveFailures = 2

	c, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestClient_LookupByBatchNumber(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, APIPrefix+"/transactions", r.URL.Path)
		switch r.URL.Query().Get("batch_number") {
		case "777":
			writeEnvelope(w, http.StatusOK, entity.BatchTransaction{ID: 1, BatchNumber: 777, Status: entity.TransactionAccepted}, "")
		default:
			writeEnvelope(w, http.StatusNotFound, nil, "transaction not found")
		}
	})

	tx, err := c.LookupByBatchNumber(context.Background(), 777)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, entity.TransactionAccepted, tx.Status)

	absent, err := c.LookupByBatchNumber(context.Background(), 778)
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{"bad request", http.StatusBadRequest, entity.ErrValidation},
		{"conflict", http.StatusConflict, entity.ErrConflict},
		{"server error", http.StatusInternalServerError, entity.ErrNetwork},
		{"bad gateway", http.StatusBadGateway, entity.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.status, nil, "rejected")
			})

			entry := &entity.WorkEntry{
				Date:        time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
				WorkTypeID:  1,
				WorkedHours: decimal.NewFromInt(8),
				DriverID:    2,
			}
			_, err := c.CreateEntry(context.Background(), 7, entry)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.target == entity.ErrNetwork, entity.IsRetryable(err))
		})
	}
}

func TestClient_BreakerOpensOnNetworkFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusServiceUnavailable, nil, "down")
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := c.FetchSingleEntries(ctx, 7)
		require.ErrorIs(t, err, entity.ErrNetwork)
	}

	_, err := c.FetchSingleEntries(ctx, 7)
	require.ErrorIs(t, err, entity.ErrNetwork)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestClient_ConflictsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusConflict, nil, "already used")
	})

	payload := &entity.NewTransaction{BatchNumber: 5}
	for i := 0; i < 4; i++ {
		_, err := c.CreateTransaction(context.Background(), payload)
		require.ErrorIs(t, err, entity.ErrConflict)
	}
	assert.Equal(t, int32(4), calls.Load())
}

func TestClient_FetchEntriesDecodesDecimalHours(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, APIPrefix+"/equipment/7/entries", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":3,"equipment_id":7,"date":"2024-03-05T00:00:00Z","work_type_id":1,"worked_hours":"7.25","driver_id":2,"source_kind":"single","persistence":"persisted"}]}`))
	})

	entries, err := c.FetchSingleEntries(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].WorkedHours.Equal(decimal.RequireFromString("7.25")))
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.BaseURL = "::not a url"
	_, err := NewClient(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestClient_LookupRouteNotFoundIsNetworkError(t *testing.T) {
	c := newTestClient(t, http.NotFound)

	tx, err := c.LookupByBatchNumber(context.Background(), 12345)
	require.Error(t, err)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, entity.ErrNetwork)
	assert.True(t, entity.IsRetryable(err))
}

func TestClient_MissingDataIsNetworkError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	tx, err := c.LookupByBatchNumber(context.Background(), 777)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, entity.ErrNetwork)

	entries, err := c.FetchSingleEntries(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
