// Package notify raises local alerts for detected events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/models"
	"github.com/visenty/companion/internal/store"
	"github.com/visenty/companion/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// KeyEnabled persists the user's notification preference.
	KeyEnabled = "visenty:notifications_enabled"

	// Channel groups every alert raised by the client.
	Channel = "visenty-alerts"

	OffenderTitle    = "Past Offender Alert"
	ShopliftingTitle = "Shoplifting Detected"
)

// Notification is a single alert.
type Notification struct {
	Channel string
	Title   string
	Message string
	EventID string
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Dispatcher decides whether and what to notify.
type Dispatcher struct {
	kv   store.KV
	sink Notifier

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDispatcher creates a dispatcher that reads its preference from kv and
// delivers through sink.
func NewDispatcher(kv store.KV, sink Notifier) *Dispatcher {
	return &Dispatcher{kv: kv, sink: sink, seen: make(map[string]struct{})}
}

// Enabled reports whether notifications are on. They are on until the user
// turns them off.
func (d *Dispatcher) Enabled(ctx context.Context) (bool, error) {
	v, err := d.kv.Get(ctx, KeyEnabled)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read notification setting: %w", err)
	}

	enabled, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("value", v).Msg("unreadable notification setting, treating as enabled")
		return true, nil
	}
	return enabled, nil
}

// SetEnabled persists the notification preference.
func (d *Dispatcher) SetEnabled(ctx context.Context, enabled bool) error {
	if err := d.kv.Set(ctx, KeyEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("failed to save notification setting: %w", err)
	}

	log.Info().Bool("enabled", enabled).Msg("notification setting changed")

	return nil
}

// OffenderAlert notifies that a known offender entered a store.
func (d *Dispatcher) OffenderAlert(ctx context.Context, offender, storeName, eventID string) error {
	return d.send(ctx, string(models.EventTypePastOffender), Notification{
		Channel: Channel,
		Title:   OffenderTitle,
		Message: fmt.Sprintf("%s entered %s", offender, storeName),
		EventID: eventID,
	})
}

// ShopliftingAlert notifies of suspected shoplifting at a location.
func (d *Dispatcher) ShopliftingAlert(ctx context.Context, storeName, location, eventID string) error {
	return d.send(ctx, string(models.EventTypeShoplifting), Notification{
		Channel: Channel,
		Title:   ShopliftingTitle,
		Message: fmt.Sprintf("Activity detected at %s in %s", location, storeName),
		EventID: eventID,
	})
}

// AlertFor raises the alert matching the event type. Unknown types are
// ignored.
func (d *Dispatcher) AlertFor(ctx context.Context, ev *models.Event) error {
	storeName := ev.Store.Name
	if storeName == "" {
		storeName = models.DefaultStoreName
	}

	switch ev.Type {
	case models.EventTypePastOffender:
		return d.OffenderAlert(ctx, offenderName(ev), storeName, ev.ID)
	case models.EventTypeShoplifting:
		location := ev.Location()
		if location == "" {
			location = "an unknown location"
		}
		return d.ShopliftingAlert(ctx, storeName, location, ev.ID)
	default:
		log.Debug().Str("event_id", ev.ID).Str("type", string(ev.Type)).Msg("no alert for event type")
		return nil
	}
}

// Prime records events as already seen without alerting.
func (d *Dispatcher) Prime(events []models.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ev := range events {
		d.seen[ev.ID] = struct{}{}
	}
}

// DispatchNew alerts for each event not seen before by this dispatcher and
// returns how many alerts were raised.
func (d *Dispatcher) DispatchNew(ctx context.Context, events []models.Event) (int, error) {
	d.mu.Lock()
	fresh := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if _, ok := d.seen[ev.ID]; ok {
			continue
		}
		d.seen[ev.ID] = struct{}{}
		fresh = append(fresh, ev)
	}
	d.mu.Unlock()

	if len(fresh) == 0 {
		return 0, nil
	}

	enabled, err := d.Enabled(ctx)
	if err != nil {
		return 0, err
	}
	if !enabled {
		return 0, nil
	}

	sent := 0
	var errs []error
	for i := range fresh {
		if err := d.AlertFor(ctx, &fresh[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		if fresh[i].Type == models.EventTypePastOffender || fresh[i].Type == models.EventTypeShoplifting {
			sent++
		}
	}

	return sent, errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, kind string, n Notification) error {
	enabled, err := d.Enabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		log.Debug().Str("event_id", n.EventID).Msg("notifications disabled, skipping alert")
		return nil
	}

	if err := d.sink.Notify(ctx, n); err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}

	telemetry.GetMetrics().NotificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", kind)))

	return nil
}

func offenderName(ev *models.Event) string {
	switch {
	case ev.Offender != nil && ev.Offender.Name != "":
		return ev.Offender.Name
	case ev.Metadata != nil && ev.Metadata.PotentialOffender != nil && ev.Metadata.PotentialOffender.Name != "":
		return ev.Metadata.PotentialOffender.Name
	default:
		return "A past offender"
	}
}

// WriterNotifier prints notifications as lines of text.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, err := fmt.Fprintf(n.w, "[%s] %s: %s (event %s)\n",
		notification.Channel, notification.Title, notification.Message, notification.EventID)
	return err
}
