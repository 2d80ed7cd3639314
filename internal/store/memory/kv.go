package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/visenty/companion/internal/store"
)

// KV implements store.KV using in-memory storage.
// Data is lost on restart.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ store.KV = (*KV)(nil)

// NewKV creates a new in-memory key-value store.
func NewKV() *KV {
	return &KV{data: make(map[string]string)}
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	v, ok := k.data[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (k *KV) Set(ctx context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.data[key] = value
	return nil
}

func (k *KV) SetMany(ctx context.Context, entries map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, value := range entries {
		k.data[key] = value
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range keys {
		delete(k.data, key)
	}
	return nil
}

func (k *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	keys := make([]string, 0, len(k.data))
	for key := range k.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
