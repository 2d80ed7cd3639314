package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/store"
)

const (
	stateFileName = "state.json"
	stateVersion  = 1
)

// envelope is the on-disk layout of the state file.
type envelope struct {
	Version  int               `json:"version"`
	Checksum string            `json:"checksum"`
	Data     map[string]string `json:"data"`
}

// KV implements store.KV as a single JSON file on the local filesystem.
type KV struct {
	mu   sync.Mutex
	path string
}

var _ store.KV = (*KV)(nil)

// NewKV creates a file backed store in baseDir.
// If baseDir is empty, uses ~/.visenty/
func NewKV(baseDir string) (*KV, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".visenty")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	kv := &KV{path: filepath.Join(baseDir, stateFileName)}

	if err := kv.ensureState(); err != nil {
		return nil, err
	}

	log.Debug().Str("path", kv.path).Msg("state store initialized")

	return kv, nil
}

// Path returns the location of the state file.
func (k *KV) Path() string {
	return k.path
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.load()
	if err != nil {
		return "", err
	}

	v, ok := data[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (k *KV) Set(ctx context.Context, key, value string) error {
	return k.SetMany(ctx, map[string]string{key: value})
}

func (k *KV) SetMany(ctx context.Context, entries map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.load()
	if err != nil {
		return err
	}

	for key, value := range entries {
		data[key] = value
	}

	return k.save(data)
}

func (k *KV) Delete(ctx context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.load()
	if err != nil {
		return err
	}

	changed := false
	for _, key := range keys {
		if _, ok := data[key]; ok {
			delete(data, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}

	return k.save(data)
}

func (k *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.load()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ensureState creates an empty state file if it doesn't exist.
func (k *KV) ensureState() error {
	if _, err := os.Stat(k.path); err == nil {
		return nil
	}

	return k.save(make(map[string]string))
}

// load reads and verifies the state file. A file that fails to parse or
// verify is moved aside and an empty state is returned in its place.
func (k *KV) load() (map[string]string, error) {
	raw, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	data, err := decode(raw)
	if errors.Is(err, store.ErrCorrupt) {
		if qerr := k.quarantine(err); qerr != nil {
			return nil, qerr
		}
		return make(map[string]string), nil
	}
	return data, err
}

// decode parses the envelope and verifies its checksum.
func decode(raw []byte) (map[string]string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}

	if env.Data == nil {
		env.Data = make(map[string]string)
	}

	sum, err := checksum(env.Data)
	if err != nil {
		return nil, err
	}
	if sum != env.Checksum {
		return nil, fmt.Errorf("%w: checksum %s, want %s", store.ErrCorrupt, env.Checksum, sum)
	}

	return env.Data, nil
}

// quarantine renames the unreadable state file to state.json.corrupt-<unix>.
func (k *KV) quarantine(cause error) error {
	dest := fmt.Sprintf("%s.corrupt-%d", k.path, time.Now().UnixNano())
	if err := os.Rename(k.path, dest); err != nil {
		return fmt.Errorf("failed to move aside corrupt state: %w", err)
	}

	log.Warn().Err(cause).Str("path", k.path).Str("moved_to", dest).Msg("state file unreadable, starting fresh")
	return nil
}

// save writes the state file atomically.
func (k *KV) save(data map[string]string) error {
	sum, err := checksum(data)
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(envelope{
		Version:  stateVersion,
		Checksum: sum,
		Data:     data,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempPath := k.path + ".tmp"

	if err := os.WriteFile(tempPath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	if err := os.Rename(tempPath, k.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

// checksum computes the CRC64-NVME of the canonical JSON encoding of data.
// encoding/json sorts map keys so the encoding is stable.
func checksum(data map[string]string) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state data: %w", err)
	}

	h := crc64nvme.New()
	h.Write(payload)
	return strconv.FormatUint(h.Sum64(), 16), nil
}
