package logger

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

// New builds the logger writing to w. JSON at info level, or a console
// writer at debug level in dev mode.
func New(w io.Writer, dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Caller().Stack().Logger()
	}

	return logger
}

var _ http.RoundTripper = (*Transport)(nil)

// Transport logs each outbound request. Access keys travel in the query
// string and in /access/{key} paths; neither is logged.
type Transport struct {
	logger zerolog.Logger
	next   http.RoundTripper
}

// NewTransport wraps next, or http.DefaultTransport when next is nil.
func NewTransport(logger zerolog.Logger, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{logger: logger, next: next}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	logger := t.logger.With().
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Str("path", redactPath(req.URL.Path)).
		Logger()

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		logger.Debug().
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("http request failed")

		return resp, err
	}

	event := logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started))
	if resp.Header.Get("X-From-Cache") == "1" {
		event = event.Bool("cached", true)
	}
	event.Msg("http request")

	return resp, nil
}

// RedactURL returns a copy of u with access keys masked in the path and the
// access_key query parameter. User info is dropped.
func RedactURL(u *url.URL) *url.URL {
	redacted := *u
	redacted.User = nil
	redacted.Path = redactPath(u.Path)
	redacted.RawPath = ""

	query := u.Query()
	if query.Has("access_key") {
		query.Set("access_key", "REDACTED")
		redacted.RawQuery = query.Encode()
	}
	return &redacted
}

// redactPath masks everything after an "access" path segment.
func redactPath(path string) string {
	segments := strings.Split(path, "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "access" && segments[i+1] != "" {
			return strings.Join(append(segments[:i+1], "REDACTED"), "/")
		}
	}
	return path
}
