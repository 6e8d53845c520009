package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration loaded from file, environment, and
// defaults. Precedence, highest first: OFFLINE_* environment variables, the
// config file, built-in defaults.
type Config struct {
	// DataDir holds the pebble database backing caches and the queue.
	DataDir string `mapstructure:"data_dir"`
	// Fsync selects the write durability mode: always, interval, or never.
	Fsync string `mapstructure:"fsync"`
	// FsyncInterval is the group-commit window when fsync is interval.
	FsyncInterval time.Duration `mapstructure:"fsync_interval"`
	// Generation tags this deploy's caches. Bumped on every release.
	Generation string `mapstructure:"generation"`
	// Listen is the control API bind address.
	Listen string `mapstructure:"listen"`

	Logging LoggingConfig `mapstructure:"logging"`
	Network NetworkConfig `mapstructure:"network"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Sync    SyncConfig    `mapstructure:"sync"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is console or json.
	Format string `mapstructure:"format"`
}

// NetworkConfig controls the connectivity probe and fetch timeouts.
type NetworkConfig struct {
	ProbeURL      string        `mapstructure:"probe_url"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	// FetchTimeout bounds every network fetch the cache router makes.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// CacheConfig controls request classification and cache retention.
type CacheConfig struct {
	APIPrefixes           []string      `mapstructure:"api_prefixes"`
	LiveInferencePrefixes []string      `mapstructure:"live_inference_prefixes"`
	ImageSizeLimitBytes   int64         `mapstructure:"image_size_limit_bytes"`
	PrecacheManifest      []string      `mapstructure:"precache_manifest"`
	OfflineDocumentURL    string        `mapstructure:"offline_document_url"`
	SweepRetention        time.Duration `mapstructure:"sweep_retention"`
	SweepSchedule         string        `mapstructure:"sweep_schedule"`
	// Bypass turns the router into a pass-through for local development.
	Bypass bool `mapstructure:"bypass"`
}

// SyncConfig controls queue replay: delivery endpoints, the retry budget,
// and the scheduled safety-net drain.
type SyncConfig struct {
	MessagesURL  string `mapstructure:"messages_url"`
	ResourcesURL string `mapstructure:"resources_url"`

	MaxAttempts   int           `mapstructure:"max_attempts"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	DrainSchedule string        `mapstructure:"drain_schedule"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:       DefaultDataDir(),
		Fsync:         "always",
		FsyncInterval: 5 * time.Millisecond,
		Generation:    "v1",
		Listen:        ":8090",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Network: NetworkConfig{
			ProbeURL:      "",
			ProbeInterval: 30 * time.Second,
			ProbeTimeout:  3 * time.Second,
			FetchTimeout:  5 * time.Second,
		},
		Cache: CacheConfig{
			APIPrefixes:           []string{"/api/"},
			LiveInferencePrefixes: []string{"/api/chat/completions", "/api/embeddings"},
			ImageSizeLimitBytes:   5 << 20,
			SweepRetention:        7 * 24 * time.Hour,
			SweepSchedule:         "@hourly",
		},
		Sync: SyncConfig{
			MaxAttempts:   5,
			BaseDelay:     time.Second,
			MaxDelay:      32 * time.Second,
			DrainSchedule: "@every 5m",
		},
	}
}

// Load reads configuration. An empty path searches the default locations
// and falls back to defaults when no file exists; a named file must exist.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("OFFLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
			// no file anywhere on the search path; defaults plus env
		case os.IsNotExist(err) && path == "":
			// same, for an explicit search-path miss
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot start with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.Generation == "" {
		return fmt.Errorf("config: generation is required")
	}
	if c.Fsync != "always" && c.Fsync != "interval" && c.Fsync != "never" {
		return fmt.Errorf("config: fsync must be always, interval, or never, got %q", c.Fsync)
	}
	if c.Sync.MaxAttempts < 0 {
		return fmt.Errorf("config: sync.max_attempts must not be negative")
	}
	if c.Sync.BaseDelay < 0 || c.Sync.MaxDelay < 0 {
		return fmt.Errorf("config: sync delays must not be negative")
	}
	return nil
}
