// Package feed talks to the event and live video endpoints of a connected
// backend.
package feed

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

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/models"
	"github.com/visenty/companion/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/oauth2"
)

const maxResponseBytes = 4 << 20

var (
	// ErrNoSession is returned when the session has no server or access key.
	ErrNoSession = errors.New("no connected server")
	// ErrUnauthorized is returned when the backend refuses the access key.
	ErrUnauthorized = errors.New("access key refused by server")
	// ErrNotFound is returned for an unknown event or a missing endpoint.
	ErrNotFound = errors.New("not found")
	// ErrUnexpectedStatus wraps any other non-success status.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// RetryConfig controls retries of transient read failures.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the retry policy used by NewClient.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        3,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Client reads events from the backend of a session. Requests carry the
// access key as a bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	retry   RetryConfig
}

// NewClient creates a client for sess on top of base, which supplies the
// transport chain and timeout.
func NewClient(base *http.Client, sess *models.Session, retry RetryConfig) (*Client, error) {
	if sess == nil || sess.ServerBaseURL == "" || sess.AccessKey == "" {
		return nil, ErrNoSession
	}
	if base == nil {
		base = http.DefaultClient
	}
	if retry.MaxTries == 0 {
		retry = DefaultRetryConfig()
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: sess.AccessKey, TokenType: "Bearer"})

	return &Client{
		baseURL: sess.ServerBaseURL,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: base.Transport},
			Timeout:   base.Timeout,
		},
		retry: retry,
	}, nil
}

// Events returns the most recent events, newest first as sent by the server.
func (c *Client) Events(ctx context.Context, limit int) ([]models.Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.getWithRetry(ctx, "/events?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return decodeEvents(body)
}

// Event returns a single event.
func (c *Client) Event(ctx context.Context, id string) (*models.Event, error) {
	body, err := c.getWithRetry(ctx, "/events/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}

	var ev models.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", id, err)
	}
	return &ev, nil
}

// MarkReviewed flags an event as reviewed on the server.
func (c *Client) MarkReviewed(ctx context.Context, id string) error {
	payload, err := json.Marshal(map[string]bool{"reviewed": true})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/events/"+url.PathEscape(id), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("failed to mark event %s reviewed: %w", id, err)
	}

	log.Debug().Str("event_id", id).Msg("marked event reviewed")

	return nil
}

// decodeEvents accepts {"events": [...]} as well as a bare array.
func decodeEvents(body []byte) ([]models.Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []models.Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
		return events, nil
	}

	var resp struct {
		Events []models.Event `json:"events"`
	}
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return resp.Events, nil
}

// getWithRetry performs a GET and retries transport failures, 429 and 5xx
// responses with exponential backoff.
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		body, err := c.do(req)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.retry.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			telemetry.GetMetrics().EventFetchRetriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("path", routeOf(path))))
			log.Debug().Err(err).Dur("next", next).Str("path", routeOf(path)).Msg("retrying feed request")
		}),
	)
}

// statusError is a non-success HTTP status.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: HTTP %d", e.err, e.status)
}

func (e *statusError) Unwrap() error {
	return e.err
}

// do sends req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, &statusError{status: resp.StatusCode, err: ErrUnauthorized}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &statusError{status: resp.StatusCode, err: ErrNotFound}
	default:
		return nil, &statusError{status: resp.StatusCode, err: ErrUnexpectedStatus}
	}
}

// retryable reports whether a failed request may succeed when repeated.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// routeOf drops the query string and ids for metric and log labels.
func routeOf(path string) string {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	if strings.HasPrefix(path, "/events/") {
		return "/events/{id}"
	}
	return path
}
