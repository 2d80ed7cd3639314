package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visenty/companion/internal/models"
)

const eventsBody = `{"events": [
	{"id": "evt-2", "type": "SHOPLIFTING", "timestamp": "2026-10-16T09:30:00Z", "store": {"id": "3", "name": "Main Street"}, "summary": "Concealment", "metadata": {"location": "Aisle 4"}},
	{"id": "evt-1", "type": "PAST_OFFENDER", "timestamp": "2026-10-16T08:00:00Z", "store": {"id": "3", "name": "Main Street"}, "summary": "Known offender", "offender": {"id": "off-1", "name": "J. Smith", "totalIncidents": 4}}
]}`

var fastRetry = RetryConfig{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.Client(), &models.Session{ServerBaseURL: srv.URL, AccessKey: "xK9mP3nQ"}, fastRetry)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		sess *models.Session
	}{
		{"nil", nil},
		{"legacy", &models.Session{Legacy: true}},
		{"missing key", &models.Session{ServerBaseURL: "http://192.168.1.20:5000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(nil, tt.sess, RetryConfig{})
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestClient_Events(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer xK9mP3nQ", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, eventsBody)
	})

	events, err := c.Events(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "evt-2", events[0].ID)
	assert.Equal(t, models.EventTypeShoplifting, events[0].Type)
	assert.Equal(t, "Aisle 4", events[0].Location())
	assert.Equal(t, time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC), events[0].Timestamp)

	require.NotNil(t, events[1].Offender)
	assert.Equal(t, "J. Smith", events[1].Offender.Name)
	assert.Empty(t, events[1].Location())
}

func TestClient_EventsBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id": "evt-1", "type": "SHOPLIFTING", "timestamp": "2026-10-16T08:00:00Z"}]`)
	})

	events, err := c.Events(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
}

func TestClient_EventsRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, eventsBody)
	})

	events, err := c.Events(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_EventsGivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Events(context.Background(), 50)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_PermanentFailuresAreNotRetried(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"bad request", http.StatusBadRequest, ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})

			_, err := c.Event(context.Background(), "evt-1")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestClient_Event(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/evt-1", r.URL.Path)
		_, _ = io.WriteString(w, `{"id": "evt-1", "type": "PAST_OFFENDER", "timestamp": "2026-10-16T08:00:00Z", "summary": "Known offender"}`)
	})

	ev, err := c.Event(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "Known offender", ev.Summary)
	assert.Equal(t, models.EventTypePastOffender, ev.Type)
}

func TestClient_MarkReviewed(t *testing.T) {
	var got map[string]bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/events/evt-1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer xK9mP3nQ", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.MarkReviewed(context.Background(), "evt-1"))
	assert.Equal(t, map[string]bool{"reviewed": true}, got)
}

func TestClient_MarkReviewedFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.MarkReviewed(context.Background(), "evt-1")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestRouteOf(t *testing.T) {
	assert.Equal(t, "/events", routeOf("/events?limit=50"))
	assert.Equal(t, "/events/{id}", routeOf("/events/evt-1"))
}
