// Package config loads daemon configuration with precedence
// ENV > file > defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// Config is the full daemon configuration.
type Config struct {
	Listen    string `yaml:"listen"`     // HTTP intake listen address
	RemoteURL string `yaml:"remote_url"` // base URL of the shipment service
	DataDir   string `yaml:"data_dir"`   // badger/journal/session data
	LogLevel  string `yaml:"log_level"`

	// Operator identity, supplied by station provisioning (the PIN
	// subsystem is outside this daemon).
	Operator string `yaml:"operator"`
	// Provider preselects the logistics provider on startup. Optional;
	// normally chosen per shift through the API.
	Provider string `yaml:"provider"`

	Store StoreConfig `yaml:"store"`
	Audio AudioConfig `yaml:"audio"`
}

// StoreConfig selects the session persistence backend.
type StoreConfig struct {
	Backend   string `yaml:"backend"` // memory | badger | redis | file
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

// AudioConfig configures the feedback unit.
type AudioConfig struct {
	Dir     string   `yaml:"dir"`    // directory holding cue recordings
	Player  string   `yaml:"player"` // player binary, e.g. "mpg123"
	Args    []string `yaml:"args"`   // extra player arguments
	Enabled bool     `yaml:"enabled"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Listen:   ":8745",
		DataDir:  "/var/lib/pistoleado",
		LogLevel: "info",
		Store: StoreConfig{
			Backend:   "badger",
			RedisAddr: "127.0.0.1:6379",
		},
		Audio: AudioConfig{
			Dir:     "/usr/share/pistoleado/audio",
			Player:  "mpg123",
			Args:    []string{"-q"},
			Enabled: true,
		},
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.RemoteURL == "" {
		return fmt.Errorf("remote_url is required")
	}
	u, err := url.Parse(c.RemoteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("remote_url %q is not a valid URL", c.RemoteURL)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	switch c.Store.Backend {
	case "", "memory", "badger", "redis", "file":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		return fmt.Errorf("redis backend requires redis_addr")
	}
	return nil
}

// SessionPath returns where the selected backend keeps its data.
func (c Config) SessionPath() string {
	if c.Store.Backend == "file" {
		return filepath.Join(c.DataDir, "session.json")
	}
	return filepath.Join(c.DataDir, "session")
}

// JournalPath returns the sqlite journal location.
func (c Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

// applyEnv overlays PISTOLA_* environment variables.
func applyEnv(c *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("PISTOLA_LISTEN", &c.Listen)
	setString("PISTOLA_REMOTE_URL", &c.RemoteURL)
	setString("PISTOLA_DATA_DIR", &c.DataDir)
	setString("PISTOLA_LOG_LEVEL", &c.LogLevel)
	setString("PISTOLA_OPERATOR", &c.Operator)
	setString("PISTOLA_PROVIDER", &c.Provider)
	setString("PISTOLA_STORE_BACKEND", &c.Store.Backend)
	setString("PISTOLA_REDIS_ADDR", &c.Store.RedisAddr)
	setString("PISTOLA_AUDIO_DIR", &c.Audio.Dir)
	setString("PISTOLA_AUDIO_PLAYER", &c.Audio.Player)

	if v, ok := os.LookupEnv("PISTOLA_REDIS_DB"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.RedisDB = n
		}
	}
	if v, ok := os.LookupEnv("PISTOLA_AUDIO_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Audio.Enabled = b
		}
	}
}
