package access

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/models"
	"github.com/visenty/companion/internal/session"
	"github.com/visenty/companion/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// Refresher re-fetches the identity and store of the current session without
// re-validating the access key.
type Refresher struct {
	fetch    fetcher
	sessions *session.Store
}

// NewRefresher creates a refresher. A zero cfg.Timeout uses DefaultTimeout.
func NewRefresher(client HTTPDoer, sessions *session.Store, cfg Config) *Refresher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Refresher{
		fetch:    fetcher{client: client, timeout: cfg.Timeout},
		sessions: sessions,
	}
}

// Refresh fetches identity and store concurrently. Each fetch falls back to
// the cached value on any failure, so the only errors returned come from
// loading the session itself (session.ErrNoSession when not connected).
// Legacy sessions have no server and are returned unchanged.
func (r *Refresher) Refresh(ctx context.Context) (*models.Session, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "access.Refresh")
	defer span.End()

	sess, err := r.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess.Legacy {
		return sess, nil
	}

	var (
		identity *models.Identity
		store    *models.Store
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := r.fetchIdentity(gctx, sess)
		if err != nil {
			r.fallback(gctx, "identity", err)
			return nil
		}
		identity = id
		return nil
	})
	g.Go(func() error {
		st, err := r.fetchStore(gctx, sess)
		if err != nil {
			r.fallback(gctx, "store", err)
			return nil
		}
		store = st
		return nil
	})
	_ = g.Wait()

	if identity != nil {
		if err := r.sessions.SaveIdentity(ctx, identity); err != nil {
			log.Warn().Err(err).Msg("failed to cache identity")
		}
		sess.Identity = identity
	}
	if store != nil {
		if err := r.sessions.SaveStore(ctx, store); err != nil {
			log.Warn().Err(err).Msg("failed to cache store")
		}
		sess.Store = store
	}

	span.SetAttributes(
		attribute.Bool("refresh.identity", identity != nil),
		attribute.Bool("refresh.store", store != nil),
	)

	return sess, nil
}

func (r *Refresher) fallback(ctx context.Context, field string, err error) {
	telemetry.GetMetrics().EnrichmentFallbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
	log.Debug().Err(err).Str("field", field).Msg("enrichment fetch failed, using cached value")
}

// fetchIdentity reads the person from /api/validate_access.
func (r *Refresher) fetchIdentity(ctx context.Context, sess *models.Session) (*models.Identity, error) {
	const path = "/api/validate_access"

	status, body, err := r.fetch.get(ctx, sess.ServerBaseURL+path+"?"+url.Values{"access_key": {sess.AccessKey}}.Encode())
	if err != nil {
		return nil, classifyTransport(err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP %d from %s", status, path)
	}

	var resp validateAccessResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if resp.Success == nil || !*resp.Success {
		return nil, fmt.Errorf("%s did not report success", path)
	}

	id := resp.Person.identity()
	if id == nil {
		return nil, fmt.Errorf("%s carried no person", path)
	}
	return id, nil
}

// fetchStore reads the flat store object from /api/store/info.
func (r *Refresher) fetchStore(ctx context.Context, sess *models.Session) (*models.Store, error) {
	const path = "/api/store/info"

	status, body, err := r.fetch.get(ctx, sess.ServerBaseURL+path+"?"+url.Values{"access_key": {sess.AccessKey}}.Encode())
	if err != nil {
		return nil, classifyTransport(err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP %d from %s", status, path)
	}

	var info storeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	st := normalizeStore(info)
	if st == nil {
		return nil, fmt.Errorf("%s carried no store", path)
	}
	return st, nil
}
