package access

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/models"
)

// outcome is the result class of a single endpoint attempt.
type outcome int

const (
	// inconclusive means the endpoint gave no answer about the key; try the next one.
	inconclusive outcome = iota
	// accepted means the key is valid and active.
	accepted
	// rejected means the key was definitively refused.
	rejected
)

func (o outcome) String() string {
	switch o {
	case accepted:
		return "accepted"
	case rejected:
		return "rejected"
	default:
		return "inconclusive"
	}
}

// attempt is what one endpoint strategy reports back.
type attempt struct {
	outcome outcome

	// Set on accepted. Nil when the endpoint carries no such payload.
	identity *models.Identity
	store    *models.Store

	// Reject reason, or the transport/HTTP failure that made the attempt
	// inconclusive.
	err error
}

// strategy tries one endpoint shape.
type strategy struct {
	name string
	try  func(ctx context.Context, f fetcher, scan *Scan) attempt
}

// strategies lists the endpoint shapes in fallback order: the current JSON
// API, the older JSON API and finally the HTML page the QR code points at.
var strategies = []strategy{
	{name: "validate_access", try: tryValidateAccess},
	{name: "api_access", try: tryAPIAccess},
	{name: "access_page", try: tryAccessPage},
}

// statusReject maps the status codes every endpoint shares.
func statusReject(status int) (attempt, bool) {
	switch status {
	case http.StatusUnauthorized:
		return attempt{outcome: rejected, err: ErrAccessDenied}, true
	case http.StatusForbidden:
		return attempt{outcome: rejected, err: ErrAccessDeactivated}, true
	}
	return attempt{}, false
}

func transportFailure(err error) attempt {
	return attempt{outcome: inconclusive, err: classifyTransport(err)}
}

func unexpectedStatus(path string, status int) attempt {
	return attempt{outcome: inconclusive, err: fmt.Errorf("unexpected HTTP %d from %s", status, path)}
}

// tryValidateAccess calls GET {base}/api/validate_access?access_key=...
func tryValidateAccess(ctx context.Context, f fetcher, scan *Scan) attempt {
	const path = "/api/validate_access"

	status, body, err := f.get(ctx, scan.BaseURL+path+"?"+url.Values{"access_key": {scan.AccessKey}}.Encode())
	if err != nil {
		return transportFailure(err)
	}

	if a, ok := statusReject(status); ok {
		return a
	}
	if status != http.StatusOK {
		return unexpectedStatus(path, status)
	}

	var resp validateAccessResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Success == nil {
		log.Debug().Str("endpoint", path).Msg("response is not a validate_access payload")
		return attempt{outcome: inconclusive, err: fmt.Errorf("unrecognized response from %s", path)}
	}

	if !*resp.Success {
		return attempt{outcome: rejected, err: ErrAccessDeactivated}
	}

	return attempt{
		outcome:  accepted,
		identity: resp.Person.identity(),
		store:    normalizeStore(resp.Store),
	}
}

// tryAPIAccess calls GET {base}/api/access/{key}
func tryAPIAccess(ctx context.Context, f fetcher, scan *Scan) attempt {
	const path = "/api/access/"

	status, body, err := f.get(ctx, scan.BaseURL+path+url.PathEscape(scan.AccessKey))
	if err != nil {
		return transportFailure(err)
	}

	if a, ok := statusReject(status); ok {
		return a
	}
	if status != http.StatusOK {
		return unexpectedStatus(path, status)
	}

	var resp legacyAccessResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Debug().Str("endpoint", path).Msg("response is not JSON")
		return attempt{outcome: inconclusive, err: fmt.Errorf("unrecognized response from %s", path)}
	}

	user := resp.user()
	return attempt{
		outcome:  accepted,
		identity: user.identity(),
		store:    user.store(),
	}
}

// tryAccessPage calls GET {base}/access/{key}. The page is HTML, so a 200
// only confirms the key; there is no identity or store to extract.
func tryAccessPage(ctx context.Context, f fetcher, scan *Scan) attempt {
	const path = "/access/"

	status, _, err := f.get(ctx, scan.BaseURL+path+url.PathEscape(scan.AccessKey))
	if err != nil {
		return transportFailure(err)
	}

	if a, ok := statusReject(status); ok {
		return a
	}
	if status != http.StatusOK {
		return unexpectedStatus(path, status)
	}

	return attempt{outcome: accepted}
}
