// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Name sources.
const (
	NameSourceStatic = "static"
	NameSourceFaker  = "faker"
	NameSourceStore  = "store"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches the log output to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Bind is the interface the HTTP server listens on; the port comes from
	// the command line.
	Bind string `koanf:"bind"`

	// PublicURL is encoded in the share QR code. Empty derives it from the
	// listen port.
	PublicURL string `koanf:"public_url"`

	// NameSource picks subjects: static (embedded list), faker (generated,
	// resolved per round) or store (SQLite names table).
	NameSource string `koanf:"name_source"`

	// LazySubjects makes the static and store sources draw one name per round
	// through the resolver instead of pre-selecting five at game start.
	LazySubjects bool `koanf:"lazy_subjects"`

	// NamesFile replaces the embedded list for the static and store sources.
	NamesFile string `koanf:"names_file"`

	// Oracle settings for the agify-compatible age API.
	OracleURL       string `koanf:"oracle_url"`
	OracleAPIKey    string `koanf:"oracle_api_key"`
	OracleCountry   string `koanf:"oracle_country"`
	OracleTimeoutMS int    `koanf:"oracle_timeout_ms"`

	// MaxResolveAttempts caps how many generated names are tried per round.
	MaxResolveAttempts int `koanf:"max_resolve_attempts"`

	// StoreTimeoutMS bounds every session and leaderboard call.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// Storage selects memory or sqlite for sessions and the leaderboard.
	Storage    string `koanf:"storage"`
	SQLitePath string `koanf:"sqlite_path"`

	// SessionTTLMinutes is how long an idle game is kept.
	SessionTTLMinutes int `koanf:"session_ttl_minutes"`

	// SessionCookie names the cookie carrying the session id.
	SessionCookie string `koanf:"session_cookie"`

	// LeaderboardSize is the number of entries on the leaderboard page.
	LeaderboardSize int `koanf:"leaderboard_size"`

	// LeaderboardMaxEntries keeps only the best n entries in the memory
	// leaderboard. Zero keeps everything.
	LeaderboardMaxEntries int `koanf:"leaderboard_max_entries"`

	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DedupeSize sets the size of the submitted-games cache.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Bind:                "",
		NameSource:          NameSourceStatic,
		OracleURL:           "https://api.agify.io",
		OracleTimeoutMS:     3000,
		MaxResolveAttempts:  10,
		StoreTimeoutMS:      2000,
		Storage:             StorageMemory,
		SQLitePath:          "ageguess.db",
		SessionTTLMinutes:   24 * 60,
		SessionCookie:       "ageguess_sid",
		LeaderboardSize:     5,
		MaxLeaderboardLimit: 100,
		DedupeSize:          50_000,
	}
}

// Validate checks enumerations and bounds.
func (c *Config) Validate() error {
	switch c.NameSource {
	case NameSourceStatic, NameSourceFaker, NameSourceStore:
	default:
		return fmt.Errorf("%w: name_source %q", ErrInvalidConfig, c.NameSource)
	}
	switch c.Storage {
	case StorageMemory, StorageSQLite:
	default:
		return fmt.Errorf("%w: storage %q", ErrInvalidConfig, c.Storage)
	}
	if c.NameSource == NameSourceStore && c.Storage != StorageSQLite {
		return fmt.Errorf("%w: name_source store needs storage sqlite", ErrInvalidConfig)
	}
	if c.Storage == StorageSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.OracleURL) == "" {
		return fmt.Errorf("%w: oracle_url must not be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.SessionCookie) == "" {
		return fmt.Errorf("%w: session_cookie must not be empty", ErrInvalidConfig)
	}
	for name, v := range map[string]int{
		"oracle_timeout_ms":     c.OracleTimeoutMS,
		"max_resolve_attempts":  c.MaxResolveAttempts,
		"store_timeout_ms":      c.StoreTimeoutMS,
		"session_ttl_minutes":   c.SessionTTLMinutes,
		"leaderboard_size":      c.LeaderboardSize,
		"max_leaderboard_limit": c.MaxLeaderboardLimit,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, v)
		}
	}
	if c.LeaderboardMaxEntries < 0 {
		return fmt.Errorf("%w: leaderboard_max_entries must not be negative, got %d", ErrInvalidConfig, c.LeaderboardMaxEntries)
	}
	if c.LeaderboardSize > c.MaxLeaderboardLimit {
		return fmt.Errorf("%w: leaderboard_size %d exceeds max_leaderboard_limit %d",
			ErrInvalidConfig, c.LeaderboardSize, c.MaxLeaderboardLimit)
	}
	return nil
}

// OracleTimeout returns OracleTimeoutMS as a duration.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutMS) * time.Millisecond
}

// StoreTimeout returns StoreTimeoutMS as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// SessionTTL returns SessionTTLMinutes as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}
