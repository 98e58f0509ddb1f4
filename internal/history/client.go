// Package history fetches raw account history from the banking backend.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mbbsolutions/com.shovibam-sub000/internal/types"
)

// Request identifies whose history to fetch. An empty AccountNo asks the
// backend for all of the customer's accounts.
type Request struct {
	CustomerID string `json:"customerId"`
	AccountNo  string `json:"accountNo,omitempty"`
	Limit      int    `json:"limit"`
}

// Response is the backend's history envelope. On Success the Transactions
// list is the raw feed; otherwise Error carries the backend's message and
// ErrorDetail whatever structure it attached.
type Response struct {
	Success      bool              `json:"success"`
	Transactions []types.RawRecord `json:"transactions,omitempty"`
	Error        string            `json:"error,omitempty"`
	ErrorDetail  json.RawMessage   `json:"errorDetail,omitempty"`
}

// Source is the boundary the presenter fetches history through
type Source interface {
	FetchHistory(ctx context.Context, req Request) (*Response, error)
}

// ClientConfig configures the HTTP history client
type ClientConfig struct {
	// BaseURL is the root of the banking backend API
	BaseURL string
	// Timeout bounds a single HTTP attempt
	Timeout time.Duration
	// RetryAttempts is the total number of attempts per fetch
	RetryAttempts uint
	// Concurrency limits parallel account fetches in FetchAll
	Concurrency int
}

// Client is the HTTP implementation of Source
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a history client for the given backend
func NewClient(logger *log.Logger, config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.Concurrency == 0 {
		config.Concurrency = 4
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// FetchHistory calls the backend history endpoint, retrying transient
// failures with backoff. A decoded envelope with Success=false is returned
// to the caller as-is; only transport and server failures are errors.
func (c *Client) FetchHistory(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history request: %w", err)
	}

	start := time.Now()
	var response *Response
	err = retry.Do(
		func() error {
			resp, err := c.doRequest(ctx, body)
			if err != nil {
				return err
			}
			response = resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("Retrying history fetch",
				"attempt", n+1,
				"max_attempts", c.config.RetryAttempts,
				"customer_id", req.CustomerID,
				"account_no", req.AccountNo,
				"error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	c.logger.Debug("Fetched history",
		"customer_id", req.CustomerID,
		"account_no", req.AccountNo,
		"success", response.Success,
		"count", len(response.Transactions),
		"duration", time.Since(start))

	return response, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/transactions/history", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to build history request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		io.Copy(io.Discard, httpResp.Body)
		return nil, fmt.Errorf("history endpoint returned %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK {
		// client errors won't get better on retry
		io.Copy(io.Discard, httpResp.Body)
		return nil, retry.Unrecoverable(fmt.Errorf("history endpoint returned %d", httpResp.StatusCode))
	}

	var response Response
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}

	return &response, nil
}

// FetchAll fetches history for several accounts concurrently and returns the
// raw feed per account number. One failed account fails the whole call.
func (c *Client) FetchAll(ctx context.Context, customerID string, accountNos []string, limit int, progress Progress) (map[string][]types.RawRecord, error) {
	if progress == nil {
		progress = NewNoopProgress()
	}
	defer progress.Close()

	var mu sync.Mutex
	feeds := make(map[string][]types.RawRecord, len(accountNos))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)

	for _, accountNo := range accountNos {
		accountNo := accountNo
		g.Go(func() error {
			resp, err := c.FetchHistory(gCtx, Request{
				CustomerID: customerID,
				AccountNo:  accountNo,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("history fetch rejected for account %s: %s", accountNo, resp.Error)
			}

			mu.Lock()
			feeds[accountNo] = resp.Transactions
			mu.Unlock()

			return progress.Add(1)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return feeds, nil
}

// Ensure Client implements the Source interface
var _ Source = (*Client)(nil)
