package store

import (
	"context"
	"errors"
)

// Sentinel errors for common error conditions
var (
	ErrNotFound = errors.New("key not found")
	ErrCorrupt  = errors.New("state file corrupt")
)

// KV is the persistent key-value store backing session state, the viewed
// event set and client preferences.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error

	// SetMany writes all entries in a single step. Either every entry is
	// stored or none is.
	SetMany(ctx context.Context, entries map[string]string) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists stored keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
