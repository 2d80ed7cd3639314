package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingPoller(config PollerConfig) (*Poller, *atomic.Int32) {
	var calls atomic.Int32
	p := NewPoller(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, config)
	return p, &calls
}

func TestPoller_PollsAtInterval(t *testing.T) {
	p, calls := countingPoller(PollerConfig{Interval: 5 * time.Millisecond})
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, p.Running())
}

func TestPoller_WaitsForStartDelay(t *testing.T) {
	p, calls := countingPoller(PollerConfig{Interval: 5 * time.Millisecond, StartDelay: time.Hour})
	require.NoError(t, p.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	p.Stop()
	assert.False(t, p.Running())
}

func TestPoller_PauseStopsFetching(t *testing.T) {
	p, calls := countingPoller(PollerConfig{Interval: 2 * time.Millisecond})
	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)

	p.Pause()
	assert.True(t, p.Paused())
	assert.False(t, p.Running())

	paused := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, paused, calls.Load())

	require.NoError(t, p.Resume(context.Background()))
	assert.False(t, p.Paused())
	assert.Eventually(t, func() bool { return calls.Load() > paused }, time.Second, time.Millisecond)

	p.Stop()
}

func TestPoller_StopIsFinal(t *testing.T) {
	p, calls := countingPoller(PollerConfig{Interval: 2 * time.Millisecond})
	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)

	p.Stop()
	p.Stop()

	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())

	assert.ErrorIs(t, p.Start(context.Background()), ErrPollerStopped)
	assert.ErrorIs(t, p.Resume(context.Background()), ErrPollerStopped)
}

func TestPoller_StartTwiceRunsOneLoop(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	p := NewPoller(func(ctx context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(time.Millisecond)
		return nil
	}, PollerConfig{Interval: time.Millisecond})

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestPoller_ErrorsDoNotStopPolling(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller(func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("frame unavailable")
	}, PollerConfig{Interval: 2 * time.Millisecond})

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestPoller_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, _ := countingPoller(PollerConfig{Interval: 2 * time.Millisecond})
	require.NoError(t, p.Start(ctx))

	cancel()
	assert.Eventually(t, func() bool { return !p.Running() }, time.Second, time.Millisecond)

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())
	p.Stop()
}
