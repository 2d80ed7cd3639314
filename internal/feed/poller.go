package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = 300 * time.Millisecond
	DefaultStartDelay   = time.Second
)

// ErrPollerStopped is returned when starting a poller after Stop.
var ErrPollerStopped = errors.New("poller stopped")

// PollFunc is called on every tick. Errors are logged and polling continues.
type PollFunc func(ctx context.Context) error

// PollerConfig controls the polling cadence.
type PollerConfig struct {
	Interval   time.Duration
	StartDelay time.Duration
}

// Poller calls a function at a fixed interval. Pausing or stopping waits for
// the loop to exit, so no fetch runs in the background afterwards.
type Poller struct {
	fn     PollFunc
	config PollerConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	paused  bool
	stopped bool
}

// NewPoller creates a poller for fn. Zero config values use the defaults.
func NewPoller(fn PollFunc, config PollerConfig) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.StartDelay < 0 {
		config.StartDelay = 0
	}
	return &Poller{fn: fn, config: config}
}

// Start begins polling after the start delay. Starting a running poller is a
// no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPollerStopped
	}
	if p.active() {
		return nil
	}

	p.halt()
	p.paused = false
	p.run(ctx, p.config.StartDelay)
	return nil
}

// Pause stops polling until Resume.
func (p *Poller) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || !p.active() {
		return
	}

	p.halt()
	p.paused = true

	log.Debug().Msg("poller paused")
}

// Resume restarts a paused poller immediately, without the start delay.
func (p *Poller) Resume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPollerStopped
	}
	if !p.paused {
		return nil
	}

	p.paused = false
	p.run(ctx, 0)

	log.Debug().Msg("poller resumed")

	return nil
}

// Stop ends polling for good. It is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	p.halt()
	p.stopped = true
	p.paused = false
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active()
}

// Paused reports whether the poller is paused.
func (p *Poller) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.paused
}

// active reports whether the loop goroutine is still running. Callers hold p.mu.
func (p *Poller) active() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// run starts the loop. Callers hold p.mu.
func (p *Poller) run(ctx context.Context, delay time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		p.loop(ctx, delay)
	}()
}

// halt cancels the loop and waits for it to exit. Callers hold p.mu.
func (p *Poller) halt() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

func (p *Poller) loop(ctx context.Context, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		if err := p.fn(ctx); err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Msg("poll failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
