package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/models"
	"github.com/visenty/companion/internal/session"
	"github.com/visenty/companion/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "github.com/visenty/companion/internal/access"

// Config controls how access keys are validated.
type Config struct {
	// Timeout bounds each endpoint request. Zero uses DefaultTimeout.
	Timeout time.Duration
	// LegacyScheme is the custom scheme of the deprecated connect payload.
	// Empty uses DefaultLegacyScheme.
	LegacyScheme string
}

// Authenticator turns scanned QR payloads into validated sessions.
type Authenticator struct {
	fetch        fetcher
	sessions     *session.Store
	legacyScheme string
	strategies   []strategy
}

// NewAuthenticator creates an authenticator that talks to backends with
// client and persists sessions in sessions.
func NewAuthenticator(client HTTPDoer, sessions *session.Store, cfg Config) *Authenticator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Authenticator{
		fetch:        fetcher{client: client, timeout: cfg.Timeout},
		sessions:     sessions,
		legacyScheme: cfg.LegacyScheme,
		strategies:   strategies,
	}
}

// Validate resolves raw scanned text into a session. The server URL and
// access key are persisted before Validate returns. Failures are one of the
// package's sentinel errors; use Code and Guidance to present them.
//
// Re-validating the key of the current session refreshes the cached identity
// and store and keeps the cached values when the server no longer sends them.
func (a *Authenticator) Validate(ctx context.Context, raw string) (sess *models.Session, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "access.Validate")
	defer span.End()

	started := time.Now()
	defer func() {
		code := "OK"
		if err != nil {
			code = Code(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, code)
		}
		m := telemetry.GetMetrics()
		m.ValidationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
		m.ValidationDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	}()

	scan, err := ParseScan(raw, a.legacyScheme)
	if err != nil {
		log.Warn().Err(err).Msg("rejected scanned QR code")
		return nil, err
	}

	if scan.Legacy {
		return a.connectLegacy(ctx, scan)
	}

	span.SetAttributes(
		attribute.String("access.server", scan.BaseURL),
		attribute.String("access.key_fingerprint", Fingerprint(scan.AccessKey)),
	)

	res, err := a.negotiate(ctx, scan)
	if err != nil {
		log.Warn().
			Err(err).
			Str("server", scan.BaseURL).
			Str("key", Fingerprint(scan.AccessKey)).
			Str("code", Code(err)).
			Msg("access key validation failed")
		return nil, err
	}

	return a.establish(ctx, scan, res)
}

// negotiate walks the endpoint strategies in order and stops at the first
// definitive answer. When every endpoint is inconclusive the most specific
// transport failure seen is returned.
//
// A timeout on an endpoint is treated like a missing endpoint and falls
// through to the next one. A slow modern backend can therefore surface as a
// transport error rather than as the reject it would have returned.
func (a *Authenticator) negotiate(ctx context.Context, scan *Scan) (attempt, error) {
	var transportErr, lastErr error

	for _, s := range a.strategies {
		if err := ctx.Err(); err != nil {
			return attempt{}, classifyTransport(err)
		}

		res := s.try(ctx, a.fetch, scan)

		telemetry.GetMetrics().AccessAttemptsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("endpoint", s.name),
			attribute.String("outcome", res.outcome.String()),
		))

		log.Debug().
			Str("endpoint", s.name).
			Str("server", scan.BaseURL).
			Str("key", Fingerprint(scan.AccessKey)).
			Str("outcome", res.outcome.String()).
			AnErr("reason", res.err).
			Msg("access endpoint attempt")

		switch res.outcome {
		case accepted:
			return res, nil
		case rejected:
			return res, res.err
		}

		if transportRank(res.err) > transportRank(transportErr) {
			transportErr = res.err
		}
		lastErr = res.err
	}

	if transportErr != nil {
		return attempt{}, transportErr
	}

	return attempt{}, fmt.Errorf("%w: no access endpoint gave a definitive answer: %v", ErrConnection, lastErr)
}

// establish persists an accepted session and merges enrichment with the
// cached values of the same grant.
func (a *Authenticator) establish(ctx context.Context, scan *Scan, res attempt) (*models.Session, error) {
	prev, err := a.sessions.Load(ctx)
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		log.Warn().Err(err).Msg("failed to load previous session")
	}

	sameGrant := prev != nil && !prev.Legacy &&
		prev.ServerBaseURL == scan.BaseURL && prev.AccessKey == scan.AccessKey

	sess := &models.Session{
		ServerBaseURL: scan.BaseURL,
		AccessKey:     scan.AccessKey,
		ValidatedAt:   time.Now().UTC(),
	}

	if err := a.sessions.SaveCredentials(ctx, sess); err != nil {
		return nil, err
	}

	// The previous grant's cache goes only once the new credentials are stored.
	if prev != nil && !sameGrant {
		if err := a.sessions.ClearEnrichment(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to clear identity of previous session")
		}
	}

	switch {
	case res.identity != nil:
		sess.Identity = res.identity
		if err := a.sessions.SaveIdentity(ctx, res.identity); err != nil {
			log.Warn().Err(err).Msg("failed to cache identity")
		}
	case sameGrant && prev.Identity != nil:
		sess.Identity = prev.Identity
	default:
		sess.Identity = &models.Identity{Name: models.DefaultIdentityName}
	}

	switch {
	case res.store != nil:
		sess.Store = res.store
		if err := a.sessions.SaveStore(ctx, res.store); err != nil {
			log.Warn().Err(err).Msg("failed to cache store")
		}
	case sameGrant && prev.Store != nil:
		sess.Store = prev.Store
	}

	log.Info().
		Str("server", sess.ServerBaseURL).
		Str("key", Fingerprint(sess.AccessKey)).
		Str("user", sess.IdentityName()).
		Str("store", sess.StoreName()).
		Bool("revalidated", sameGrant).
		Msg("access key validated")

	return sess, nil
}

// connectLegacy creates a local-only session from the deprecated connect
// payload. No server is contacted.
func (a *Authenticator) connectLegacy(ctx context.Context, scan *Scan) (*models.Session, error) {
	log.Warn().
		Str("store", scan.StoreName).
		Msg("legacy connect QR code is deprecated, regenerate it as an access URL")

	sess := &models.Session{
		Legacy:      true,
		Identity:    &models.Identity{Name: models.DefaultIdentityName},
		Store:       &models.Store{Name: orDefault(scan.StoreName, models.DefaultStoreName)},
		ValidatedAt: time.Now().UTC(),
	}

	if err := a.sessions.SaveCredentials(ctx, sess); err != nil {
		return nil, err
	}
	if err := a.sessions.ClearEnrichment(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to clear identity of previous session")
	}
	if err := a.sessions.SaveIdentity(ctx, sess.Identity); err != nil {
		log.Warn().Err(err).Msg("failed to cache identity")
	}
	if err := a.sessions.SaveStore(ctx, sess.Store); err != nil {
		log.Warn().Err(err).Msg("failed to cache store")
	}

	return sess, nil
}
