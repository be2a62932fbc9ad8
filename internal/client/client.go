// Package client implements the HTTP contract with the checkout
// endpoints: start, verify, and cancel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/my3rdstory/satoshop-sub001/internal/apperr"
	"github.com/my3rdstory/satoshop-sub001/internal/model"
)

// CSRFHeader carries the anti-forgery token on every mutating request.
const CSRFHeader = "X-CSRF-Token"

// Client talks to the checkout gateway. All three calls are mutating
// and require the anti-forgery token; a missing token fails before any
// network attempt.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// New creates a checkout client. A nil httpClient gets a 10s-timeout
// default; a nil logger gets a nop logger.
func New(baseURL, csrfToken string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   csrfToken,
		http:    httpClient,
		log:     log,
	}
}

// Start opens a new payment transaction: the server reserves inventory
// and issues an invoice atomically.
func (c *Client) Start(ctx context.Context) (*model.StartResponse, error) {
	var out model.StartResponse
	if err := c.post(ctx, "/api/checkout/start", nil, &out); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return &out, nil
}

// Verify asks the server for the latest payment status of txnID.
func (c *Client) Verify(ctx context.Context, txnID string) (*model.VerifyResponse, error) {
	var out model.VerifyResponse
	if err := c.post(ctx, "/api/checkout/"+txnID+"/verify", nil, &out); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	return &out, nil
}

// Cancel abandons txnID with the given reason. The caller treats the
// outcome as advisory: local cleanup happens regardless.
func (c *Client) Cancel(ctx context.Context, txnID, reason string) (*model.CancelResponse, error) {
	var out model.CancelResponse
	body := model.CancelRequest{Reason: reason}
	if err := c.post(ctx, "/api/checkout/"+txnID+"/cancel", &body, &out); err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.token == "" {
		return apperr.ErrMissingToken
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CSRFHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		// transport failures are transient; classification matters more
		// than the cause for the workflow
		return fmt.Errorf("%w: %v", apperr.ErrNetwork, err)
	}
	defer resp.Body.Close()

	// error envelopes arrive with non-2xx codes and still decode
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Warn("checkout response did not decode",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", apperr.ErrMalformedResponse, err)
	}
	return nil
}
