// Package config holds the runtime configuration of the store: which
// backend to open, how state is encrypted, how snapshots are taken, and the
// ambient logging and telemetry settings. Configuration comes from KEEL_*
// environment variables, optionally overlaid by named YAML profiles.
package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Snapshot schemes.
const (
	SchemeSeparate = "separate"
	SchemeChained  = "chained"
)

// State encryption algorithms.
const (
	CipherAESGCM  = "aesgcm"
	CipherXChaCha = "xchacha"
)

// Config holds store configuration.
type Config struct {
	Backend       string // memory | sqlite | postgres | redis
	SQLiteDSN     string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CipherKey is a base64 encoded 32 byte key; empty leaves event state
	// in the clear.
	CipherKey       string
	CipherAlgorithm string // aesgcm | xchacha

	SnapshotScheme   string // separate | chained
	SnapshotInterval int    // events between automatic snapshots; 0 disables

	ThrottleRPS   float64 // store calls per second; 0 disables throttling
	ThrottleBurst int

	OTLPEndpoint string
	LogLevel     string // DEBUG | INFO | WARN | ERROR
}

// Default returns the configuration used when nothing is set: in-memory
// storage, separate snapshots, no encryption, no throttling.
func Default() *Config {
	return &Config{
		Backend:         BackendMemory,
		SQLiteDSN:       "file:keel.db",
		PostgresDSN:     "postgres://keel@localhost:5432/keel?sslmode=disable",
		RedisAddr:       "localhost:6379",
		CipherAlgorithm: CipherAESGCM,
		SnapshotScheme:  SchemeSeparate,
		ThrottleBurst:   1,
		OTLPEndpoint:    "localhost:4317",
		LogLevel:        "INFO",
	}
}

// Load reads configuration from KEEL_* environment variables, starting from
// Default. Numeric variables that fail to parse keep their defaults;
// Validate catches semantic mistakes.
func Load() *Config {
	cfg := Default()

	if v := os.Getenv("KEEL_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("KEEL_SQLITE_DSN"); v != "" {
		cfg.SQLiteDSN = v
	}
	if v := os.Getenv("KEEL_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("KEEL_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("KEEL_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("KEEL_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("KEEL_CIPHER_KEY"); v != "" {
		cfg.CipherKey = v
	}
	if v := os.Getenv("KEEL_CIPHER_ALGORITHM"); v != "" {
		cfg.CipherAlgorithm = v
	}
	if v := os.Getenv("KEEL_SNAPSHOT_SCHEME"); v != "" {
		cfg.SnapshotScheme = v
	}
	if v := os.Getenv("KEEL_SNAPSHOT_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SnapshotInterval = n
		}
	}
	if v := os.Getenv("KEEL_THROTTLE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ThrottleRPS = f
		}
	}
	if v := os.Getenv("KEEL_THROTTLE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ThrottleBurst = n
		}
	}
	if v := os.Getenv("KEEL_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("KEEL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

// Validate rejects configurations that cannot be acted on.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	switch c.SnapshotScheme {
	case SchemeSeparate, SchemeChained:
	default:
		return fmt.Errorf("config: unknown snapshot scheme %q", c.SnapshotScheme)
	}

	switch c.CipherAlgorithm {
	case CipherAESGCM, CipherXChaCha:
	default:
		return fmt.Errorf("config: unknown cipher algorithm %q", c.CipherAlgorithm)
	}

	if _, err := c.CipherKeyBytes(); err != nil {
		return err
	}

	if c.SnapshotInterval < 0 {
		return fmt.Errorf("config: snapshot interval must be >= 0, got %d", c.SnapshotInterval)
	}
	if c.ThrottleRPS < 0 {
		return fmt.Errorf("config: throttle rate must be >= 0, got %v", c.ThrottleRPS)
	}
	if c.ThrottleRPS > 0 && c.ThrottleBurst < 1 {
		return fmt.Errorf("config: throttle burst must be >= 1 when throttling, got %d", c.ThrottleBurst)
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}

	return nil
}

// CipherKeyBytes decodes the configured cipher key. It returns nil when
// encryption is off.
func (c *Config) CipherKeyBytes() ([]byte, error) {
	if c.CipherKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.CipherKey)
	if err != nil {
		return nil, fmt.Errorf("config: cipher key is not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("config: cipher key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogLevel maps the configured log level onto slog's scale. Unknown
// levels, already rejected by Validate, fall back to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
