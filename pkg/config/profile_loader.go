package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Overlay is a partial configuration: nil fields leave the base value
// untouched when the overlay is applied.
type Overlay struct {
	Backend       *string `yaml:"backend"`
	SQLiteDSN     *string `yaml:"sqlite_dsn"`
	PostgresDSN   *string `yaml:"postgres_dsn"`
	RedisAddr     *string `yaml:"redis_addr"`
	RedisPassword *string `yaml:"redis_password"`
	RedisDB       *int    `yaml:"redis_db"`

	CipherKey       *string `yaml:"cipher_key"`
	CipherAlgorithm *string `yaml:"cipher_algorithm"`

	SnapshotScheme   *string `yaml:"snapshot_scheme"`
	SnapshotInterval *int    `yaml:"snapshot_interval"`

	ThrottleRPS   *float64 `yaml:"throttle_rps"`
	ThrottleBurst *int     `yaml:"throttle_burst"`

	OTLPEndpoint *string `yaml:"otlp_endpoint"`
	LogLevel     *string `yaml:"log_level"`
}

// Profiles is a named set of configuration overlays loaded from one YAML
// file, mapping profile name to overrides:
//
//	production:
//	  backend: postgres
//	  snapshot_scheme: chained
//	  snapshot_interval: 100
//	audit:
//	  backend: postgres
//	  throttle_rps: 50
type Profiles struct {
	overlays map[string]Overlay
}

// LoadProfiles reads a profile file.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profiles: %w", err)
	}

	var overlays map[string]Overlay
	if err := yaml.Unmarshal(data, &overlays); err != nil {
		return nil, fmt.Errorf("config: parse profiles %s: %w", path, err)
	}

	return &Profiles{overlays: overlays}, nil
}

// Names returns the defined profile names, sorted.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.overlays))
	for name := range p.overlays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile applies the named overlay to a copy of base and returns the
// merged configuration. The base is never modified.
func (p *Profiles) Profile(name string, base *Config) (*Config, error) {
	o, ok := p.overlays[name]
	if !ok {
		return nil, fmt.Errorf("config: unknown profile %q", name)
	}
	cfg := *base
	o.apply(&cfg)
	return &cfg, nil
}

func (o Overlay) apply(cfg *Config) {
	if o.Backend != nil {
		cfg.Backend = *o.Backend
	}
	if o.SQLiteDSN != nil {
		cfg.SQLiteDSN = *o.SQLiteDSN
	}
	if o.PostgresDSN != nil {
		cfg.PostgresDSN = *o.PostgresDSN
	}
	if o.RedisAddr != nil {
		cfg.RedisAddr = *o.RedisAddr
	}
	if o.RedisPassword != nil {
		cfg.RedisPassword = *o.RedisPassword
	}
	if o.RedisDB != nil {
		cfg.RedisDB = *o.RedisDB
	}
	if o.CipherKey != nil {
		cfg.CipherKey = *o.CipherKey
	}
	if o.CipherAlgorithm != nil {
		cfg.CipherAlgorithm = *o.CipherAlgorithm
	}
	if o.SnapshotScheme != nil {
		cfg.SnapshotScheme = *o.SnapshotScheme
	}
	if o.SnapshotInterval != nil {
		cfg.SnapshotInterval = *o.SnapshotInterval
	}
	if o.ThrottleRPS != nil {
		cfg.ThrottleRPS = *o.ThrottleRPS
	}
	if o.ThrottleBurst != nil {
		cfg.ThrottleBurst = *o.ThrottleBurst
	}
	if o.OTLPEndpoint != nil {
		cfg.OTLPEndpoint = *o.OTLPEndpoint
	}
	if o.LogLevel != nil {
		cfg.LogLevel = *o.LogLevel
	}
}
