package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// APIPrefix is the path prefix of the backend REST API
const APIPrefix = "/backend/v1"

// ClientConfig holds remote backend settings
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration

	// Circuit breaker
	BreakerMaxRequests         uint32
	BreakerInterval            time.Duration
	BreakerTimeout             time.Duration
	BreakerConsecutiveFailures uint32
}

// DefaultClientConfig returns the default remote backend settings
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:                    "http://localhost:8080",
		Timeout:                    10 * time.Second,
		BreakerMaxRequests:         1,
		BreakerInterval:            time.Minute,
		BreakerTimeout:             30 * time.Second,
		BreakerConsecutiveFailures: 5,
	}
}

// envelope mirrors the JSON body every backend endpoint returns
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client implements port.Backend against a remote backend over REST.
// Transport failures, 5xx responses and an open breaker all surface as
// *entity.NetworkError; 4xx responses keep their business meaning.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates a remote backend client
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + APIPrefix,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.BreakerConsecutiveFailures > 0 &&
				counts.ConsecutiveFailures >= cfg.BreakerConsecutiveFailures
		},
		// Business rejections say nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, entity.ErrNetwork)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Backend circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return c, nil
}

// FetchSingleEntries implements port.WorkEntrySource
func (c *Client) FetchSingleEntries(ctx context.Context, equipmentID int64) ([]*entity.WorkEntry, error) {
	var entries []*entity.WorkEntry
	path := fmt.Sprintf("/equipment/%d/entries", equipmentID)
	if err := c.list(ctx, "fetch single entries", path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// FetchRangeEntries implements port.WorkEntrySource
func (c *Client) FetchRangeEntries(ctx context.Context, equipmentID int64) ([]*entity.RangeGroup, error) {
	var groups []*entity.RangeGroup
	path := fmt.Sprintf("/equipment/%d/ranges", equipmentID)
	if err := c.list(ctx, "fetch range entries", path, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateEntry implements port.WorkEntrySource
func (c *Client) CreateEntry(ctx context.Context, equipmentID int64, entry *entity.WorkEntry) (*entity.WorkEntry, error) {
	var created entity.WorkEntry
	path := fmt.Sprintf("/equipment/%d/entries", equipmentID)
	if err := c.do(ctx, "create entry", http.MethodPost, path, entry, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateEntry implements port.WorkEntrySource
func (c *Client) UpdateEntry(ctx context.Context, id int64, entry *entity.WorkEntry) (*entity.WorkEntry, error) {
	var updated entity.WorkEntry
	path := fmt.Sprintf("/entries/%d", id)
	if err := c.do(ctx, "update entry", http.MethodPut, path, entry, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteEntry implements port.WorkEntrySource
func (c *Client) DeleteEntry(ctx context.Context, id int64) error {
	return c.do(ctx, "delete entry", http.MethodDelete, fmt.Sprintf("/entries/%d", id), nil, nil)
}

// LookupByBatchNumber implements port.TransactionSource. A 404 carrying the
// backend envelope means the batch number is free and is reported as nil, nil.
// Any other 404 is a routing failure and surfaces as a NetworkError.
func (c *Client) LookupByBatchNumber(ctx context.Context, batchNumber int64) (*entity.BatchTransaction, error) {
	var tx entity.BatchTransaction
	path := "/transactions?batch_number=" + strconv.FormatInt(batchNumber, 10)
	err := c.do(ctx, "lookup batch", http.MethodGet, path, nil, &tx)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// SubmitValidationDecision implements port.TransactionSource
func (c *Client) SubmitValidationDecision(ctx context.Context, transactionID int64, decision *entity.ValidationDecision) (*entity.BatchTransaction, error) {
	var tx entity.BatchTransaction
	path := fmt.Sprintf("/transactions/%d/decision", transactionID)
	if err := c.do(ctx, "submit decision", http.MethodPost, path, decision, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// CreateTransaction implements port.TransactionSource
func (c *Client) CreateTransaction(ctx context.Context, payload *entity.NewTransaction) (*entity.BatchTransaction, error) {
	var tx entity.BatchTransaction
	if err := c.do(ctx, "create transaction", http.MethodPost, "/transactions", payload, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// do runs one request through the circuit breaker and decodes the envelope
// data into out. When out is set the response must carry data.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	return c.call(ctx, op, method, path, body, out, out != nil)
}

// list is a GET whose data may be absent, which decodes as an empty list
func (c *Client) list(ctx context.Context, op, path string, out interface{}) error {
	return c.call(ctx, op, http.MethodGet, path, nil, out, false)
}

func (c *Client) call(ctx context.Context, op, method, path string, body, out interface{}, requireData bool) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, op, method, path, body, out, requireData)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Error("Backend request rejected by circuit breaker", zap.String("op", op), zap.Error(err))
		return entity.NewNetworkError(op, 0, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, out interface{}, requireData bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Backend request failed", zap.String("op", op), zap.Error(err))
		return entity.NewNetworkError(op, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.NewNetworkError(op, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	var env envelope
	decoded := false
	if len(raw) > 0 {
		err := json.Unmarshal(raw, &env)
		if err != nil && resp.StatusCode < 300 {
			return entity.NewNetworkError(op, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
		}
		decoded = err == nil && env.Success != nil
	}

	if resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusNotFound && (!decoded || *env.Success) {
			c.logger.Error("Backend answered 404 without an envelope", zap.String("op", op), zap.String("path", path))
			return entity.NewNetworkError(op, resp.StatusCode, errors.New("backend route not found"))
		}
		return statusError(op, resp.StatusCode, env.Error)
	}

	if out == nil {
		return nil
	}
	if !hasData(env.Data) {
		if requireData {
			return entity.NewNetworkError(op, resp.StatusCode, errors.New("response carries no data"))
		}
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return entity.NewNetworkError(op, resp.StatusCode, fmt.Errorf("failed to decode data: %w", err))
	}
	return nil
}

func hasData(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// statusError maps a non-2xx backend status onto the error taxonomy
func statusError(op string, status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return entity.NewNotFoundError(op, message)
	case status == http.StatusConflict:
		return entity.NewConflictError(op, message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return entity.NewValidationError("", nil, message)
	case status == http.StatusForbidden:
		return fmt.Errorf("%s: %s: %w", op, message, entity.ErrPermissionDenied)
	default:
		return entity.NewNetworkError(op, status, errors.New(message))
	}
}

// Verify interface compliance
var _ port.Backend = (*Client)(nil)
