// Package config loads quillmeshd's server configuration from an HCL
// file, following the same hclsimple.DecodeFile idiom the indexer's
// ruleset configuration uses.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the top-level quillmeshd configuration.
type Config struct {
	// BaseURL is this instance's externally-reachable origin, e.g.
	// "https://wiki.example.com". It is the prefix for every ap_id this
	// instance mints.
	BaseURL string `hcl:"base_url"`

	// Domain is the host federation peers use to verify object and
	// activity ids against the delivering domain.
	Domain string `hcl:"domain,optional"`

	Addr string `hcl:"addr,optional"`

	Database DatabaseConfig `hcl:"database,block"`
	Log      LogConfig      `hcl:"log,block"`

	// Federation tunes delivery and retry behavior. Optional: every
	// field has a sensible default applied after decode.
	Federation *FederationConfig `hcl:"federation,block"`
}

// DatabaseConfig selects and parameterizes the storage backend.
type DatabaseConfig struct {
	Driver   string `hcl:"driver"` // "postgres" or "sqlite"
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"db_name,optional"`
	Path     string `hcl:"path,optional"` // sqlite file path
}

// LogConfig configures the root hclog.Logger.
type LogConfig struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"` // "standard" or "json"
}

// FederationConfig tunes outbound delivery and inbound admission.
type FederationConfig struct {
	// SendTimeoutSeconds and DeliveryDeadlineMinutes are decoded and
	// defaulted, but the delivery queue does not read them: it always uses
	// its own fixed 10s send timeout and 1h delivery deadline.
	SendTimeoutSeconds      int `hcl:"send_timeout_seconds,optional"`
	DeliveryDeadlineMinutes int `hcl:"delivery_deadline_minutes,optional"`
	DrainIntervalSeconds    int `hcl:"drain_interval_seconds,optional"`
	DrainBatchSize          int `hcl:"drain_batch_size,optional"`

	// DeniedDomains lists instance domains whose Follow requests are
	// rejected instead of auto-accepted, per spec.md §4.7.
	DeniedDomains []string `hcl:"denied_domains,optional"`
}

// Load reads and decodes filename, applying defaults for every optional
// field left unset.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("config: file path is required")
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", filename)
	}

	var cfg Config
	if err := hclsimple.DecodeFile(filename, nil, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", filename, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Domain == "" {
		cfg.Domain = hostFromURL(cfg.BaseURL)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "standard"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = ".quillmesh/quillmesh.db"
	}

	if cfg.Federation == nil {
		cfg.Federation = &FederationConfig{}
	}
	if cfg.Federation.SendTimeoutSeconds == 0 {
		cfg.Federation.SendTimeoutSeconds = 10
	}
	if cfg.Federation.DeliveryDeadlineMinutes == 0 {
		cfg.Federation.DeliveryDeadlineMinutes = 60
	}
	if cfg.Federation.DrainIntervalSeconds == 0 {
		cfg.Federation.DrainIntervalSeconds = 5
	}
	if cfg.Federation.DrainBatchSize == 0 {
		cfg.Federation.DrainBatchSize = 50
	}
}

// Validate checks the required fields and driver-specific invariants.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("config: postgres database requires host and db_name")
		}
	case "sqlite":
		// path defaulted above
	default:
		return fmt.Errorf("config: unsupported database driver %q (supported: postgres, sqlite)", c.Database.Driver)
	}
	return nil
}

func hostFromURL(rawURL string) string {
	for i := 0; i < len(rawURL); i++ {
		if rawURL[i] == '/' && i+1 < len(rawURL) && rawURL[i+1] == '/' {
			rest := rawURL[i+2:]
			for j := 0; j < len(rest); j++ {
				if rest[j] == '/' {
					return rest[:j]
				}
			}
			return rest
		}
	}
	return rawURL
}
