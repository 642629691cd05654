package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rfpgpt/rfpgpt/internal/auth"
	"go.uber.org/zap"
)

// Client is the REST transport for the RFP GPT backend. Every request
// carries the current bearer token; a 401 triggers exactly one token
// refresh and, if the refreshed token differs, one retry.
type Client struct {
	baseURL   string
	http      *http.Client
	streaming *http.Client
	tokens    *auth.Holder
	refresher auth.Refresher
	logger    *zap.Logger
}

// New creates a transport client for the given base URL.
func New(baseURL string, tokens *auth.Holder, refresher auth.Refresher, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Streams stay open for the duration of a reply; no overall timeout.
		streaming: &http.Client{},
		tokens:    tokens,
		refresher: refresher,
		logger:    logger,
	}
}

// Request performs a JSON request against the backend and returns the raw
// response body. On 401 it refreshes the token once and retries once with
// the new token; if the refresh yields no new token it fails with
// ErrAuthExpired. Any other non-2xx response fails with *APIError.
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	token := c.tokens.Get()
	raw, status, statusText, err := c.do(ctx, method, path, payload, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		newToken, err := c.refreshOnce(ctx, token)
		if err != nil {
			return nil, err
		}
		raw, status, statusText, err = c.do(ctx, method, path, payload, newToken)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status > 299 {
		return nil, &APIError{Status: status, StatusText: statusText}
	}
	return raw, nil
}

// refreshOnce asks the identity provider for a fresh token. A refresh that
// fails or returns the token already in use exhausts the retry budget.
func (c *Client) refreshOnce(ctx context.Context, usedToken string) (string, error) {
	newToken, err := c.refresher.Refresh(ctx)
	if err != nil {
		c.logger.Warn("token refresh failed", zap.Error(err))
		return "", fmt.Errorf("%w: %s", ErrAuthExpired, err)
	}
	if newToken == "" || newToken == usedToken {
		return "", ErrAuthExpired
	}
	c.tokens.Set(newToken)
	c.logger.Info("bearer token refreshed")
	return newToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, token string) (json.RawMessage, int, string, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, "", fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, resp.Status, nil
}
