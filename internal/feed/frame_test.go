package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameFetcher_MultipartStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		for _, body := range []string{"first-jpeg", "second-jpeg"} {
			_, _ = fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n%s\r\n", body)
		}
		_, _ = fmt.Fprint(w, "--frame--\r\n")
	}))
	defer srv.Close()

	frame, err := NewFrameFetcher(srv.Client(), srv.URL+"/video_feed").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", frame.ContentType)
	assert.Equal(t, []byte("first-jpeg"), frame.Data)
	assert.False(t, frame.FetchedAt.IsZero())
}

func TestFrameFetcher_SingleImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	frame, err := NewFrameFetcher(srv.Client(), srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", frame.ContentType)
	assert.Equal(t, []byte("jpeg-bytes"), frame.Data)
}

func TestFrameFetcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "refused key",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
			wantErr: ErrUnauthorized,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantErr: ErrUnexpectedStatus,
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Header().Set("Content-Type", "image/jpeg") },
			wantErr: ErrEmptyFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewFrameFetcher(srv.Client(), srv.URL).Fetch(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFrameFetcher_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	f := NewFrameFetcher(srv.Client(), srv.URL)
	f.maxBytes = 16

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}
