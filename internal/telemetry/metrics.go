package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/visenty/companion"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Access key validation metrics
	AccessAttemptsTotal metric.Int64Counter
	ValidationsTotal    metric.Int64Counter
	ValidationDuration  metric.Float64Histogram

	// Enrichment metrics
	EnrichmentFallbacksTotal metric.Int64Counter

	// Feed metrics
	EventFetchRetriesTotal metric.Int64Counter
	LiveFramesTotal        metric.Int64Counter
	LiveFrameErrorsTotal   metric.Int64Counter

	// Notification metrics
	NotificationsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.AccessAttemptsTotal, _ = meter.Int64Counter(
		"companion.access.attempts.total",
		metric.WithDescription("Total number of access endpoint attempts by endpoint and outcome"),
		metric.WithUnit("{attempt}"),
	)

	m.ValidationsTotal, _ = meter.Int64Counter(
		"companion.access.validations.total",
		metric.WithDescription("Total number of access key validations by result code"),
		metric.WithUnit("{validation}"),
	)

	m.ValidationDuration, _ = meter.Float64Histogram(
		"companion.access.validation.duration",
		metric.WithDescription("Duration of access key validation including endpoint fallback"),
		metric.WithUnit("ms"),
	)

	m.EnrichmentFallbacksTotal, _ = meter.Int64Counter(
		"companion.session.enrichment_fallbacks.total",
		metric.WithDescription("Total number of identity or store refreshes that fell back to cached values"),
		metric.WithUnit("{fallback}"),
	)

	m.EventFetchRetriesTotal, _ = meter.Int64Counter(
		"companion.feed.event_fetch.retries.total",
		metric.WithDescription("Total number of retried event feed fetches"),
		metric.WithUnit("{retry}"),
	)

	m.LiveFramesTotal, _ = meter.Int64Counter(
		"companion.feed.live.frames.total",
		metric.WithDescription("Total number of live frames fetched"),
		metric.WithUnit("{frame}"),
	)

	m.LiveFrameErrorsTotal, _ = meter.Int64Counter(
		"companion.feed.live.frame_errors.total",
		metric.WithDescription("Total number of failed live frame fetches"),
		metric.WithUnit("{error}"),
	)

	m.NotificationsTotal, _ = meter.Int64Counter(
		"companion.notifications.dispatched.total",
		metric.WithDescription("Total number of notifications dispatched by type"),
		metric.WithUnit("{notification}"),
	)

	return m
}
