package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/visenty/companion/internal/telemetry"
)

// DefaultMaxFrameBytes bounds a single frame.
const DefaultMaxFrameBytes = 8 << 20

// ErrEmptyFrame is returned when the stream carried no image data.
var ErrEmptyFrame = errors.New("empty frame")

// Frame is a single still image taken from a live feed.
type Frame struct {
	ContentType string
	Data        []byte
	FetchedAt   time.Time
}

// FrameFetcher grabs the current frame of a live feed URL.
type FrameFetcher struct {
	client   *http.Client
	url      string
	maxBytes int64
}

// NewFrameFetcher creates a fetcher for streamURL.
func NewFrameFetcher(client *http.Client, streamURL string) *FrameFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &FrameFetcher{client: client, url: streamURL, maxBytes: DefaultMaxFrameBytes}
}

// Fetch reads one frame. For a multipart/x-mixed-replace stream only the
// first part is read and the connection is closed; any other response is
// treated as a single image.
func (f *FrameFetcher) Fetch(ctx context.Context) (*Frame, error) {
	frame, err := f.fetch(ctx)
	m := telemetry.GetMetrics()
	if err != nil {
		m.LiveFrameErrorsTotal.Add(ctx, 1)
		return nil, err
	}
	m.LiveFramesTotal.Add(ctx, 1)
	return frame, nil
}

func (f *FrameFetcher) fetch(ctx context.Context) (*Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &statusError{status: resp.StatusCode, err: ErrUnauthorized}
		}
		return nil, &statusError{status: resp.StatusCode, err: ErrUnexpectedStatus}
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		return f.firstPart(resp.Body, params["boundary"])
	}

	data, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Frame{ContentType: resp.Header.Get("Content-Type"), Data: data, FetchedAt: time.Now()}, nil
}

func (f *FrameFetcher) firstPart(body io.Reader, boundary string) (*Frame, error) {
	if boundary == "" {
		return nil, fmt.Errorf("multipart stream without boundary")
	}

	part, err := multipart.NewReader(body, strings.TrimPrefix(boundary, "--")).NextPart()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream part: %w", err)
	}
	defer part.Close()

	data, err := f.readLimited(part)
	if err != nil {
		return nil, err
	}
	return &Frame{ContentType: part.Header.Get("Content-Type"), Data: data, FetchedAt: time.Now()}, nil
}

func (f *FrameFetcher) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("frame exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	return data, nil
}
