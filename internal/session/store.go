package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/internal/models"
	"github.com/visenty/companion/internal/store"
)

// ErrNoSession is returned when no session has been persisted.
var ErrNoSession = errors.New("no active session")

// Persisted keys. Everything lives under the visenty: namespace.
const (
	KeyAuthenticated = "visenty:is_authenticated"
	KeyAccessKey     = "visenty:access_key"
	KeyServerBaseURL = "visenty:server_base_url"
	KeyLegacy        = "visenty:legacy_mode"
	KeyValidatedAt   = "visenty:validated_at"

	KeyUserID    = "visenty:user_id"
	KeyUserName  = "visenty:user_name"
	KeyUserEmail = "visenty:user_email"
	KeyUserRole  = "visenty:user_role"

	KeyStoreID      = "visenty:store_id"
	KeyStoreName    = "visenty:store_name"
	KeyStoreAddress = "visenty:store_address"

	KeyInstallID = "visenty:install_id"
)

var (
	credentialKeys = []string{KeyAuthenticated, KeyAccessKey, KeyServerBaseURL, KeyLegacy, KeyValidatedAt}
	identityKeys   = []string{KeyUserID, KeyUserName, KeyUserEmail, KeyUserRole}
	storeKeys      = []string{KeyStoreID, KeyStoreName, KeyStoreAddress}

	enrichmentPrefixes = []string{"visenty:user_", "visenty:store_"}
)

// Store persists the session in a key-value store. The key-value store is the
// source of truth, Store keeps no state of its own.
type Store struct {
	kv store.KV
}

// NewStore creates a session store over kv.
func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

// Load reads the persisted session. Returns ErrNoSession when the client has
// not been connected or the stored credentials are incomplete.
func (s *Store) Load(ctx context.Context) (*models.Session, error) {
	authenticated, err := s.get(ctx, KeyAuthenticated)
	if err != nil {
		return nil, err
	}
	if authenticated != "true" {
		return nil, ErrNoSession
	}

	values, err := s.getAll(ctx, append(append(append([]string{}, credentialKeys...), identityKeys...), storeKeys...))
	if err != nil {
		return nil, err
	}

	sess := &models.Session{
		ServerBaseURL: values[KeyServerBaseURL],
		AccessKey:     values[KeyAccessKey],
		Legacy:        values[KeyLegacy] == "true",
	}

	if ts := values[KeyValidatedAt]; ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			sess.ValidatedAt = t
		}
	}

	if values[KeyUserName] != "" || values[KeyUserID] != "" {
		sess.Identity = &models.Identity{
			ID:    values[KeyUserID],
			Name:  values[KeyUserName],
			Email: values[KeyUserEmail],
			Role:  values[KeyUserRole],
		}
	}

	if values[KeyStoreName] != "" || values[KeyStoreID] != "" {
		sess.Store = &models.Store{
			ID:      values[KeyStoreID],
			Name:    values[KeyStoreName],
			Address: values[KeyStoreAddress],
		}
	}

	if !sess.Valid() {
		log.Warn().Msg("persisted session is incomplete, ignoring")
		return nil, ErrNoSession
	}

	return sess, nil
}

// SaveCredentials persists the server URL and access key in one write, so a
// session is either fully present or absent.
func (s *Store) SaveCredentials(ctx context.Context, sess *models.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("refusing to persist incomplete session")
	}

	validatedAt := sess.ValidatedAt
	if validatedAt.IsZero() {
		validatedAt = time.Now().UTC()
	}

	err := s.kv.SetMany(ctx, map[string]string{
		KeyAuthenticated: "true",
		KeyServerBaseURL: sess.ServerBaseURL,
		KeyAccessKey:     sess.AccessKey,
		KeyLegacy:        strconv.FormatBool(sess.Legacy),
		KeyValidatedAt:   validatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to save session credentials: %w", err)
	}

	return nil
}

// SaveIdentity caches the resolved identity.
func (s *Store) SaveIdentity(ctx context.Context, id *models.Identity) error {
	if id == nil {
		return nil
	}

	err := s.kv.SetMany(ctx, map[string]string{
		KeyUserID:    id.ID,
		KeyUserName:  id.Name,
		KeyUserEmail: id.Email,
		KeyUserRole:  id.Role,
	})
	if err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}

	return nil
}

// SaveStore caches the resolved store.
func (s *Store) SaveStore(ctx context.Context, st *models.Store) error {
	if st == nil {
		return nil
	}

	err := s.kv.SetMany(ctx, map[string]string{
		KeyStoreID:      st.ID,
		KeyStoreName:    st.Name,
		KeyStoreAddress: st.Address,
	})
	if err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}

	return nil
}

// ClearEnrichment drops every cached identity and store field, including
// fields this version does not read.
func (s *Store) ClearEnrichment(ctx context.Context) error {
	var keys []string
	for _, prefix := range enrichmentPrefixes {
		found, err := s.kv.Keys(ctx, prefix)
		if err != nil {
			return fmt.Errorf("failed to list cached identity: %w", err)
		}
		keys = append(keys, found...)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear cached identity: %w", err)
	}
	return nil
}

// Clear removes every session field. The installation ID is kept.
func (s *Store) Clear(ctx context.Context) error {
	keys := append(append(append([]string{}, credentialKeys...), identityKeys...), storeKeys...)
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	log.Info().Msg("session cleared")

	return nil
}

// InstallID returns the identifier of this client installation, creating it
// on first use.
func (s *Store) InstallID(ctx context.Context) (string, error) {
	id, err := s.get(ctx, KeyInstallID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = uuid.Must(uuid.NewV7()).String()
	if err := s.kv.Set(ctx, KeyInstallID, id); err != nil {
		return "", fmt.Errorf("failed to save install id: %w", err)
	}

	log.Debug().Str("install_id", id).Msg("generated install id")

	return id, nil
}

// get returns the value for key, or an empty string when it is absent.
func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) getAll(ctx context.Context, keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		v, err := s.get(ctx, key)
		if err != nil {
			return nil, err
		}
		values[key] = v
	}
	return values, nil
}
