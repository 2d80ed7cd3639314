package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when the config file holds unusable values.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds client settings read from the YAML config file.
type Config struct {
	// DataDir holds the state file. Empty means ~/.visenty.
	DataDir string `yaml:"dataDir"`
	// RequestTimeout bounds each request made while validating a key.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// LegacyScheme is the custom scheme of the deprecated connect QR code.
	LegacyScheme string `yaml:"legacyScheme"`
	// CacheDir enables an on-disk HTTP cache. Empty uses an in-memory cache.
	CacheDir string `yaml:"cacheDir"`

	EventLimit    int           `yaml:"eventLimit"`
	WatchInterval time.Duration `yaml:"watchInterval"`

	LivePollInterval time.Duration `yaml:"livePollInterval"`
	LiveStartDelay   time.Duration `yaml:"liveStartDelay"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		RequestTimeout:   10 * time.Second,
		LegacyScheme:     "visenty",
		EventLimit:       50,
		WatchInterval:    5 * time.Second,
		LivePollInterval: 300 * time.Millisecond,
		LiveStartDelay:   time.Second,
	}
}

// DefaultPath returns ~/.visenty/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".visenty", "config.yaml"), nil
}

// Load reads the config file at path over the defaults. A missing file is
// not an error. An empty path uses DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", path).Msg("no config file, using defaults")
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	log.Debug().Str("path", path).Msg("loaded config file")

	return cfg, nil
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	switch {
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: requestTimeout must be positive", ErrInvalidConfig)
	case c.EventLimit <= 0:
		return fmt.Errorf("%w: eventLimit must be positive", ErrInvalidConfig)
	case c.WatchInterval <= 0:
		return fmt.Errorf("%w: watchInterval must be positive", ErrInvalidConfig)
	case c.LivePollInterval <= 0:
		return fmt.Errorf("%w: livePollInterval must be positive", ErrInvalidConfig)
	case c.LiveStartDelay < 0:
		return fmt.Errorf("%w: liveStartDelay must not be negative", ErrInvalidConfig)
	}
	return nil
}
