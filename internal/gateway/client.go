// Package gateway implements the domain.Parser contract against the external
// language-model parsing service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"example.com/workoutlog/internal/domain"
)

// ErrUnavailable is returned when the gateway could not produce a usable
// response after exhausting retries. ErrRejected is returned when the gateway
// answered with a non-transient error status; retrying the same request will
// not help.
var (
	ErrUnavailable = errors.New("parsing gateway unavailable")
	ErrRejected    = errors.New("parsing gateway rejected request")
)

// Config carries the HTTP client tunables.
type Config struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

// Client calls the parsing gateway over HTTP. Transient statuses are retried
// with exponential backoff up to MaxAttempts; retries never cross the
// idempotency boundary because the ingestion service invokes the client at
// most once per unique key.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a Client with sane defaults.
func NewClient(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type parseRequestBody struct {
	RawText         string    `json:"raw_text"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Mode            string    `json:"mode"`
	WorkoutTypeHint string    `json:"workout_type_hint,omitempty"`
	TimezoneHint    string    `json:"timezone_hint,omitempty"`
	Model           string    `json:"model,omitempty"`
}

// Parse submits the raw log for structuring. The returned ParseLog is non-nil
// whenever the gateway answered, independent of parse success.
func (c *Client) Parse(ctx context.Context, req domain.ParseRequest) (*domain.ParseOutcome, *domain.ParseLog, error) {
	body, err := json.Marshal(parseRequestBody{
		RawText:         req.RawText,
		SubmittedAt:     req.SubmittedAt,
		Mode:            req.Mode,
		WorkoutTypeHint: req.WorkoutTypeHint,
		TimezoneHint:    req.TimezoneHint,
		Model:           c.cfg.Model,
	})
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	attempts := 0
	var respBody []byte
	var lastErr error

	for attempts < c.cfg.MaxAttempts {
		attempts++

		respBody, lastErr = c.post(ctx, body)
		if lastErr == nil {
			break
		}
		if !isTransient(lastErr) {
			return nil, c.parseLog(attempts, start, body, respBody), fmt.Errorf("%w: %v", ErrRejected, lastErr)
		}
		if attempts >= c.cfg.MaxAttempts {
			return nil, c.parseLog(attempts, start, body, respBody), fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
		}

		delay := c.cfg.BaseDelay << (attempts - 1)
		select {
		case <-ctx.Done():
			return nil, c.parseLog(attempts, start, body, nil), ctx.Err()
		case <-time.After(delay):
		}
	}

	var outcome domain.ParseOutcome
	if err := json.Unmarshal(respBody, &outcome); err != nil {
		return nil, c.parseLog(attempts, start, body, respBody), fmt.Errorf("decoding gateway response: %w", err)
	}

	return &outcome, c.parseLog(attempts, start, body, respBody), nil
}

func (c *Client) parseLog(attempts int, start time.Time, reqBody, respBody []byte) *domain.ParseLog {
	return &domain.ParseLog{
		Model:       c.cfg.Model,
		Attempts:    attempts,
		DurationMs:  time.Since(start).Milliseconds(),
		RawRequest:  string(reqBody),
		RawResponse: string(respBody),
		CreatedAt:   time.Now().UTC(),
	}
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/parse", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode, body: string(data)}
	}
	return data, nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway status %d: %s", e.status, e.body)
}

// isTransient reports whether the failure is worth retrying: connection
// errors and the fixed set of transient HTTP statuses.
func isTransient(err error) bool {
	if se, ok := err.(*statusError); ok {
		switch se.status {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	return true
}
