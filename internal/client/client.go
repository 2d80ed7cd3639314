package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// InstallIDHeader identifies this client installation to the backend.
const InstallIDHeader = "X-Visenty-Install-Id"

// Config holds common client configuration
type Config struct {
	Timeout   time.Duration
	CacheDir  string
	InstallID string
	UserAgent string

	// Base is the innermost transport. Nil uses http.DefaultTransport.
	Base http.RoundTripper
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "visenty-companion",
	}
}

// New creates the HTTP client shared by every backend call. Requests are
// traced, logged and answered from the HTTP cache when the backend allows it.
func New(config Config) *http.Client {
	base := config.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var transport http.RoundTripper = &headerTransport{
		installID: config.InstallID,
		userAgent: config.UserAgent,
		next:      base,
	}
	transport = newCachingTransport(config.CacheDir, transport)
	transport = logger.NewTransport(log.Logger, transport)
	transport = &restoreURLTransport{next: transport}
	transport = otelhttp.NewTransport(transport)
	transport = &redactURLTransport{next: transport}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

// headerTransport stamps client identification headers on each request.
type headerTransport struct {
	installID string
	userAgent string
	next      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if t.installID != "" {
		req.Header.Set(InstallIDHeader, t.installID)
	}
	return t.next.RoundTrip(req)
}

type originalURLKey struct{}

// redactURLTransport hands the tracing layer a request whose URL carries no
// access key. restoreURLTransport puts the real URL back below it.
type redactURLTransport struct {
	next http.RoundTripper
}

func (t *redactURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := context.WithValue(req.Context(), originalURLKey{}, req.URL)
	redacted := req.Clone(ctx)
	redacted.URL = logger.RedactURL(req.URL)
	return t.next.RoundTrip(redacted)
}

type restoreURLTransport struct {
	next http.RoundTripper
}

func (t *restoreURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	original, ok := req.Context().Value(originalURLKey{}).(*url.URL)
	if !ok {
		return t.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.URL = original
	return t.next.RoundTrip(req)
}
