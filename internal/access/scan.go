package access

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// DefaultLegacyScheme is the custom URL scheme of the deprecated
// scheme://connect?store=<name> QR payload.
const DefaultLegacyScheme = "visenty"

// accessURLPattern splits scheme://host[:port]/access/<key> into base URL and key.
var accessURLPattern = regexp.MustCompile(`^((?i:https?)://[^/?#]+)/access/(.+)$`)

// unreachableHosts only resolve to the server machine itself, never to the
// server as seen from another device.
var unreachableHosts = map[string]bool{
	"0.0.0.0":   true,
	"127.0.0.1": true,
	"localhost": true,
}

// Scan is a parsed QR payload.
type Scan struct {
	BaseURL   string
	AccessKey string

	// Legacy payloads carry only a store name.
	Legacy    bool
	StoreName string
}

// ParseScan parses raw scanned text. legacyScheme names the custom scheme
// accepted for the deprecated connect payload; empty uses DefaultLegacyScheme.
func ParseScan(raw, legacyScheme string) (*Scan, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty scan", ErrInvalidFormat)
	}

	if legacyScheme == "" {
		legacyScheme = DefaultLegacyScheme
	}

	if scan, ok := parseLegacy(raw, legacyScheme); ok {
		return scan, nil
	}

	m := accessURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("%w: expected http(s)://server:port/access/<access_key>", ErrInvalidFormat)
	}

	baseURL, rawKey := m[1], m[2]

	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: malformed server address", ErrInvalidFormat)
	}

	if unreachableHosts[normalizeHost(u.Hostname())] {
		return nil, fmt.Errorf("%w: %s is only reachable from the server machine", ErrInvalidServerAddress, u.Hostname())
	}

	key, err := url.PathUnescape(rawKey)
	if err != nil {
		key = rawKey
	}

	return &Scan{
		BaseURL:   baseURL,
		AccessKey: key,
	}, nil
}

// parseLegacy recognizes scheme://connect?store=<name>.
func parseLegacy(raw, scheme string) (*Scan, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if !strings.EqualFold(u.Scheme, scheme) || !strings.EqualFold(u.Host, "connect") {
		return nil, false
	}

	return &Scan{
		Legacy:    true,
		StoreName: clean(u.Query().Get("store")),
	}, true
}

// normalizeHost lowercases host and converts internationalized names to
// their ASCII form.
func normalizeHost(host string) string {
	host = strings.TrimSuffix(host, ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return strings.ToLower(host)
}
