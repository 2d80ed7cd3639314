package access

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// Fingerprint returns a short, log-safe identifier for an access key
// (Base58-encoded SHA256, truncated).
func Fingerprint(accessKey string) string {
	if accessKey == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(accessKey))
	fp := base58.Encode(hash[:])
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return fp
}
