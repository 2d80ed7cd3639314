package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/visenty/companion/internal/feed"
)

// LiveCmd polls a live feed and keeps the latest frame in a file.
type LiveCmd struct {
	Camera      int    `help:"Camera id. Zero uses the main store feed." default:"0"`
	Out         string `help:"File the latest frame is written to." default:"frame.jpg" type:"path"`
	Frames      int    `help:"Stop after this many frames. Zero runs until interrupted." default:"0"`
	Interactive bool   `help:"Press Enter to pause or resume." default:"false"`
}

func (l *LiveCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.env(ctx)
	if err != nil {
		return err
	}

	sess, err := e.connectedSession(ctx)
	if err != nil {
		return err
	}

	var streamURL string
	if l.Camera > 0 {
		streamURL, err = feed.CameraStreamURL(sess, l.Camera)
	} else {
		streamURL, err = feed.MainFeedURL(sess)
	}
	if err != nil {
		return err
	}

	fetcher := feed.NewFrameFetcher(e.http, streamURL)

	var (
		saved    atomic.Int64
		done     = make(chan struct{})
		doneOnce sync.Once
	)

	poller := feed.NewPoller(func(ctx context.Context) error {
		frame, err := fetcher.Fetch(ctx)
		if err != nil {
			return err
		}
		if err := writeFrame(l.Out, frame.Data); err != nil {
			return err
		}
		if n := saved.Add(1); l.Frames > 0 && n >= int64(l.Frames) {
			doneOnce.Do(func() { close(done) })
		}
		return nil
	}, feed.PollerConfig{
		Interval:   e.cfg.LivePollInterval,
		StartDelay: e.cfg.LiveStartDelay,
	})

	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer poller.Stop()

	fmt.Fprintf(e.out, "Writing live frames to %s (press Ctrl+C to stop)...\n", l.Out)

	if l.Interactive {
		go l.togglePause(ctx, globals, e, poller)
	}

	select {
	case <-ctx.Done():
	case <-done:
	}

	poller.Stop()

	fmt.Fprintf(e.out, "Saved %d frames.\n", saved.Load())
	return nil
}

func (l *LiveCmd) togglePause(ctx context.Context, globals *Globals, e *env, poller *feed.Poller) {
	scanner := bufio.NewScanner(globals.in())
	for scanner.Scan() {
		if poller.Paused() {
			if err := poller.Resume(ctx); err != nil {
				return
			}
			fmt.Fprintln(e.out, "Resumed.")
			continue
		}
		poller.Pause()
		fmt.Fprintln(e.out, "Paused. Press Enter to resume.")
	}
}

// writeFrame replaces path with data atomically.
func writeFrame(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frame-*")
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write frame: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save frame: %w", err)
	}
	return nil
}
