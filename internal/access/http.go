package access

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds every request made while validating a key.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// HTTPDoer is the part of *http.Client the authenticator depends on.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// fetcher issues bounded GET requests.
type fetcher struct {
	client  HTTPDoer
	timeout time.Duration
}

// get performs a GET and returns the status code and body. A non-nil error
// means no HTTP response was received.
func (f fetcher) get(ctx context.Context, rawURL string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}
