package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/Mindburn-Labs/keel/pkg/config"
	"github.com/Mindburn-Labs/keel/pkg/records"
	"github.com/Mindburn-Labs/keel/pkg/records/redisrecord"
	"github.com/Mindburn-Labs/keel/pkg/records/sqlrecord"
)

// defaultProfilesPath is where --profile looks for overlays unless
// --profiles points elsewhere.
const defaultProfilesPath = "keel.profiles.yaml"

// loadConfig resolves the effective configuration: KEEL_* environment
// variables, then the named profile overlay when one is requested.
func loadConfig(profilesPath, profile string) (*config.Config, error) {
	cfg := config.Load()

	if profile != "" {
		if profilesPath == "" {
			profilesPath = defaultProfilesPath
		}
		profiles, err := config.LoadProfiles(profilesPath)
		if err != nil {
			return nil, err
		}
		cfg, err = profiles.Profile(profile, cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger routes slog to stderr at the configured level, keeping
// stdout clean for command output.
func setupLogger(cfg *config.Config, stderr io.Writer) {
	handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))
}

// openSQL opens the raw database handle for the configured SQL
// backend. Callers that only need a records.Store should use
// openBackend instead.
func openSQL(cfg *config.Config) (*sql.DB, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqlrecord.OpenSQLite(cfg.SQLiteDSN)
	case config.BackendPostgres:
		return sqlrecord.OpenPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("backend %q is not a SQL backend", cfg.Backend)
	}
}

// openBackend opens the configured record store. The returned cleanup
// closes whatever the backend holds open and must always be called.
func openBackend(ctx context.Context, cfg *config.Config) (records.Store, func(), error) {
	var (
		rs      records.Store
		cleanup = func() {}
	)

	switch cfg.Backend {
	case config.BackendMemory:
		rs = records.NewMemory()

	case config.BackendSQLite:
		db, err := sqlrecord.OpenSQLite(cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		store := sqlrecord.New(db, sqlrecord.DialectSQLite)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		rs = store
		cleanup = func() { _ = db.Close() }

	case config.BackendPostgres:
		db, err := sqlrecord.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres ping: %w", err)
		}
		store := sqlrecord.New(db, sqlrecord.DialectPostgres)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		rs = store
		cleanup = func() { _ = db.Close() }

	case config.BackendRedis:
		store := redisrecord.NewFromAddr(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		rs = store
		cleanup = func() { _ = store.Close() }

	default:
		return nil, nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}

	if cfg.ThrottleRPS > 0 {
		rs = records.Throttle(rs, cfg.ThrottleRPS, cfg.ThrottleBurst)
	}
	return rs, cleanup, nil
}
