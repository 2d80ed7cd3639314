package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visenty/companion/internal/store/file"
	"github.com/visenty/companion/internal/store/memory"
)

func TestTracker_MarkViewed(t *testing.T) {
	ctx := context.Background()
	tr := New(memory.NewKV())

	viewed, err := tr.IsViewed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, viewed)

	require.NoError(t, tr.MarkViewed(ctx, "evt-1"))
	require.NoError(t, tr.MarkViewed(ctx, "evt-1"))

	viewed, err = tr.IsViewed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, viewed)

	ids, err := tr.Viewed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"evt-1"}, ids)

	assert.Error(t, tr.MarkViewed(ctx, ""))
}

func TestTracker_UnreadCount(t *testing.T) {
	ctx := context.Background()
	tr := New(memory.NewKV())
	require.NoError(t, tr.MarkViewed(ctx, "b"))
	require.NoError(t, tr.MarkViewed(ctx, "z"))

	tests := []struct {
		name string
		ids  []string
		want int
	}{
		{"empty", nil, 0},
		{"all unread", []string{"a", "c"}, 2},
		{"some viewed", []string{"a", "b", "c"}, 2},
		{"all viewed", []string{"b"}, 0},
		{"viewed ids outside list are ignored", []string{"a"}, 1},
		{"duplicates count per element", []string{"a", "a", "b"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.UnreadCount(ctx, tt.ids)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTracker_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv, err := file.NewKV(dir)
	require.NoError(t, err)
	require.NoError(t, New(kv).MarkViewed(ctx, "evt-9"))

	reopened, err := file.NewKV(dir)
	require.NoError(t, err)

	viewed, err := New(reopened).IsViewed(ctx, "evt-9")
	require.NoError(t, err)
	assert.True(t, viewed)
}

func TestTracker_ConcurrentMarks(t *testing.T) {
	ctx := context.Background()
	tr := New(memory.NewKV())

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.MarkViewed(ctx, fmt.Sprintf("evt-%d", i)))
		}()
	}
	wg.Wait()

	ids, err := tr.Viewed(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 50)
}

func TestTracker_UnreadableSetStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	require.NoError(t, kv.Set(ctx, KeyViewedEvents, "not json"))

	tr := New(kv)
	count, err := tr.UnreadCount(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, tr.MarkViewed(ctx, "a"))
	raw, err := kv.Get(ctx, KeyViewedEvents)
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, raw)
}

func TestTracker_Clear(t *testing.T) {
	ctx := context.Background()
	tr := New(memory.NewKV())
	require.NoError(t, tr.MarkViewed(ctx, "a"))
	require.NoError(t, tr.Clear(ctx))

	count, err := tr.UnreadCount(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
