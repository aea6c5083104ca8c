// Package syncclient talks to the backend on behalf of the device. Every call is
// attempted once and retried on a fixed delay; local state stays authoritative
// when the backend cannot be reached.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lakbay-kasaysayan/internal/appsession"
	"lakbay-kasaysayan/internal/ledger"
	"lakbay-kasaysayan/internal/observability"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
	defaultTimeout    = 15 * time.Second
)

var (
	// ErrNetworkFailure is returned once every attempt has failed.
	ErrNetworkFailure = errors.New("network failure")
	// ErrAuthFailure means the token was rejected; the user has to sign in again.
	ErrAuthFailure = errors.New("authentication failure")
)

// APIError is a non-2xx response. Message comes from the {"error": ...} body when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL   string
	http      *http.Client
	session   *appsession.Context
	artifacts *ledger.Artifacts
	logger    *zap.Logger

	retries  int
	delay    time.Duration
	newTimer func() backoff.Timer
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetry sets how many times a failed call is retried and the pause between attempts.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.retries = retries
		}
		if delay >= 0 {
			c.delay = delay
		}
	}
}

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(c *Client) { c.newTimer = newTimer }
}

// WithLedger lets PersistArtifactCollection record collections locally before syncing.
func WithLedger(a *ledger.Artifacts) Option {
	return func(c *Client) { c.artifacts = a }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API rooted at baseURL (for example http://host:8080/api).
func New(baseURL string, session *appsession.Context, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		session: session,
		logger:  zap.NewNop(),
		retries: DefaultRetries,
		delay:   DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one request with retries and decodes a 2xx body into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = raw
	}

	attempt := 0
	op := func() error {
		attempt++
		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			observability.RecordSyncAttempt("ok")
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			observability.RecordSyncAttempt("auth")
			return backoff.Permanent(fmt.Errorf("%w: %w", ErrAuthFailure, err))
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		observability.RecordSyncAttempt("retry")
		c.logger.Warn("sync attempt failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.delay), uint64(c.retries)), ctx)
	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(op, policy, notify, timer)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAuthFailure):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		observability.RecordSyncAttempt("failed")
		return fmt.Errorf("%w: %s %s after %d attempts: %w", ErrNetworkFailure, method, path, attempt, err)
	}
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Message = body.Error
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode %s %s: %w", method, path, err))
	}
	return nil
}
