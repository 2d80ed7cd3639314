// Package tracker keeps the set of events the user has already opened.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/store"
)

// KeyViewedEvents holds the viewed set as a JSON array of event ids.
const KeyViewedEvents = "visenty:viewed_events"

// Tracker records viewed event ids in a store.KV. The persisted set is the
// source of truth; it is re-read on every call so a restarted process sees
// the same state. Calls are serialized within the process.
type Tracker struct {
	mu sync.Mutex
	kv store.KV
}

// New creates a tracker over kv.
func New(kv store.KV) *Tracker {
	return &Tracker{kv: kv}
}

// IsViewed reports whether eventID has been opened.
func (t *Tracker) IsViewed(ctx context.Context, eventID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	viewed, err := t.load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := viewed[eventID]
	return ok, nil
}

// MarkViewed adds eventID to the viewed set. Marking an already viewed
// event is a no-op.
func (t *Tracker) MarkViewed(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	viewed, err := t.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := viewed[eventID]; ok {
		return nil
	}

	viewed[eventID] = struct{}{}
	return t.save(ctx, viewed)
}

// UnreadCount returns how many of ids are not in the viewed set. Each element
// is counted, so a repeated unread id counts more than once.
func (t *Tracker) UnreadCount(ctx context.Context, ids []string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	viewed, err := t.load(ctx)
	if err != nil {
		return 0, err
	}

	unread := 0
	for _, id := range ids {
		if _, ok := viewed[id]; !ok {
			unread++
		}
	}
	return unread, nil
}

// Viewed returns the viewed ids in sorted order.
func (t *Tracker) Viewed(ctx context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	viewed, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	return sortedIDs(viewed), nil
}

// Clear forgets every viewed event.
func (t *Tracker) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.kv.Delete(ctx, KeyViewedEvents); err != nil {
		return fmt.Errorf("failed to clear viewed events: %w", err)
	}
	return nil
}

func (t *Tracker) load(ctx context.Context) (map[string]struct{}, error) {
	raw, err := t.kv.Get(ctx, KeyViewedEvents)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return make(map[string]struct{}), nil
		}
		return nil, fmt.Errorf("failed to read viewed events: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Warn().Err(err).Msg("viewed events are unreadable, starting with an empty set")
		return make(map[string]struct{}), nil
	}

	viewed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		viewed[id] = struct{}{}
	}
	return viewed, nil
}

func (t *Tracker) save(ctx context.Context, viewed map[string]struct{}) error {
	raw, err := json.Marshal(sortedIDs(viewed))
	if err != nil {
		return fmt.Errorf("failed to marshal viewed events: %w", err)
	}

	if err := t.kv.Set(ctx, KeyViewedEvents, string(raw)); err != nil {
		return fmt.Errorf("failed to save viewed events: %w", err)
	}
	return nil
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
