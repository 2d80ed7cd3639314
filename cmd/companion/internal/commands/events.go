package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/feed"
	"github.com/visenty/companion/internal/models"
	"github.com/visenty/companion/internal/session"
)

// connectedSession loads a session that has a server to talk to.
func (e *env) connectedSession(ctx context.Context) (*models.Session, error) {
	sess, err := e.sessions.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil, fmt.Errorf("not connected, run: visenty connect <scanned-text>")
	}
	if err != nil {
		return nil, err
	}
	if sess.Legacy {
		return nil, fmt.Errorf("%w: this session was created from an old connect QR code, scan an access QR code instead", feed.ErrNoSession)
	}
	return sess, nil
}

func (e *env) feedClient(ctx context.Context) (*feed.Client, error) {
	sess, err := e.connectedSession(ctx)
	if err != nil {
		return nil, err
	}
	return feed.NewClient(e.http, sess, feed.DefaultRetryConfig())
}

// EventsCmd lists detected events.
type EventsCmd struct {
	Limit    int           `help:"Number of events to fetch (default from config)."`
	Watch    bool          `help:"Keep polling and raise alerts for new events." default:"false"`
	Interval time.Duration `help:"Polling interval for --watch (default from config)."`
}

func (c *EventsCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.env(ctx)
	if err != nil {
		return err
	}

	client, err := e.feedClient(ctx)
	if err != nil {
		return err
	}

	if c.Limit <= 0 {
		c.Limit = e.cfg.EventLimit
	}
	if c.Interval <= 0 {
		c.Interval = e.cfg.WatchInterval
	}

	if c.Watch {
		return c.watchEvents(ctx, e, client)
	}

	_, err = c.listEvents(ctx, e, client)
	return err
}

func (c *EventsCmd) listEvents(ctx context.Context, e *env, client *feed.Client) ([]models.Event, error) {
	events, err := client.Events(ctx, c.Limit)
	if err != nil {
		return nil, err
	}

	if err := printEvents(ctx, e, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *EventsCmd) watchEvents(ctx context.Context, e *env, client *feed.Client) error {
	fmt.Fprintln(e.out, "Watching events (press Ctrl+C to stop)...")
	fmt.Fprintln(e.out)

	events, err := c.listEvents(ctx, e, client)
	if err != nil {
		return err
	}
	e.notify.Prime(events)

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			events, err := client.Events(ctx, c.Limit)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(e.out, "Error updating events: %v\n", err)
				continue
			}

			sent, err := e.notify.DispatchNew(ctx, events)
			if err != nil {
				log.Warn().Err(err).Msg("failed to raise alerts")
			}
			if sent == 0 {
				continue
			}

			fmt.Fprintln(e.out)
			fmt.Fprintf(e.out, "Events (updated at %s)\n", time.Now().Format("15:04:05"))
			if err := printEvents(ctx, e, events); err != nil {
				return err
			}
		}
	}
}

func printEvents(ctx context.Context, e *env, events []models.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(e.out, "No events found.")
		return nil
	}

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tTYPE\tTIME\tSTORE\tSUMMARY")

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)

		viewed, err := e.tracker.IsViewed(ctx, ev.ID)
		if err != nil {
			return err
		}
		marker := "*"
		if viewed {
			marker = ""
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			marker,
			ev.ID,
			eventTypeLabel(ev.Type),
			formatTime(ev.Timestamp),
			ev.Store.Name,
			truncate(ev.Summary, 48))
	}
	tw.Flush()

	unread, err := e.tracker.UnreadCount(ctx, ids)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "\n%d unread of %d events\n", unread, len(events))

	return nil
}

// ViewCmd shows a single event and marks it viewed.
type ViewCmd struct {
	ID string `arg:"" help:"Event id"`
}

func (v *ViewCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.env(ctx)
	if err != nil {
		return err
	}

	client, err := e.feedClient(ctx)
	if err != nil {
		return err
	}

	ev, err := client.Event(ctx, v.ID)
	if err != nil {
		return err
	}

	printEvent(e.out, ev)

	if err := e.tracker.MarkViewed(ctx, ev.ID); err != nil {
		return err
	}

	if err := client.MarkReviewed(ctx, ev.ID); err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to mark event reviewed on server")
	}

	return nil
}

func printEvent(w io.Writer, ev *models.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "ID:\t%s\n", ev.ID)
	fmt.Fprintf(tw, "Type:\t%s\n", eventTypeLabel(ev.Type))
	fmt.Fprintf(tw, "Time:\t%s\n", formatTime(ev.Timestamp))
	fmt.Fprintf(tw, "Store:\t%s\n", ev.Store.Name)
	if loc := ev.Location(); loc != "" {
		fmt.Fprintf(tw, "Location:\t%s\n", loc)
	}
	fmt.Fprintf(tw, "Summary:\t%s\n", ev.Summary)

	if ev.Offender != nil {
		fmt.Fprintf(tw, "Offender:\t%s (%d incidents)\n", ev.Offender.Name, ev.Offender.TotalIncidents)
	}
	if md := ev.Metadata; md != nil {
		if len(md.DetectedItems) > 0 {
			fmt.Fprintf(tw, "Items:\t%s\n", strings.Join(md.DetectedItems, ", "))
		}
		if md.PotentialOffender != nil {
			fmt.Fprintf(tw, "Possible match:\t%s (%.0f%%)\n", md.PotentialOffender.Name, md.MatchConfidence*100)
		}
		if md.Notes != "" {
			fmt.Fprintf(tw, "Notes:\t%s\n", md.Notes)
		}
	}
	for _, clip := range ev.VideoClips {
		fmt.Fprintf(tw, "Clip:\t%s (%.0fs)\n", clip.URL, clip.Duration)
	}
}

func eventTypeLabel(t models.EventType) string {
	switch t {
	case models.EventTypePastOffender:
		return "Past offender"
	case models.EventTypeShoplifting:
		return "Shoplifting"
	default:
		return string(t)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
