// Package config loads and completes the service configuration.
package config

import (
	"fmt"

	"github.com/chrissnell/gwrecharge/internal/sweep"
	"github.com/chrissnell/gwrecharge/internal/types"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration, with defaults applied
	LoadConfig() (*types.Config, error)

	IsReadOnly() bool
	Close() error
}

// Defaults used when the configuration leaves a setting empty
const (
	DefaultListenAddr        = "0.0.0.0"
	DefaultPort              = 8080
	DefaultMaxConcurrentRuns = 2
	DefaultSQLitePath        = "gwrecharge.db"
	DefaultCM                = 4.0 // mm/°C/day
)

var (
	DefaultSyRange     = sweep.Range{Min: 0.05, Max: 0.15}
	DefaultCruRange    = sweep.Range{Min: 0.10, Max: 0.30}
	DefaultRASmaxRange = sweep.Range{Min: 0, Max: 150}
)

// ApplyDefaults fills in every unset setting. A zero CM is treated as unset.
func ApplyDefaults(c *types.Config) {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.MaxConcurrentRuns <= 0 {
		c.Server.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = types.BackendSQLite
	}
	if c.Storage.Backend == types.BackendSQLite && c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = DefaultSQLitePath
	}

	r := &c.Recharge
	if r.Sy == (sweep.Range{}) {
		r.Sy = DefaultSyRange
	}
	if r.Cru == (sweep.Range{}) {
		r.Cru = DefaultCruRange
	}
	if r.RASmax == (sweep.Range{}) {
		r.RASmax = DefaultRASmaxRange
	}
	if r.Resolution == "" {
		r.Resolution = sweep.ResolutionRough
	}
	if r.CM == 0 {
		r.CM = DefaultCM
	}
}

// Validate checks a configuration after defaults have been applied.
func Validate(c *types.Config) error {
	switch c.Storage.Backend {
	case types.BackendSQLite, types.BackendNone:
	case types.BackendPostgres:
		if c.Storage.ConnectionString == "" {
			return fmt.Errorf("storage backend %q requires a connection-string", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if (c.Server.Cert == "") != (c.Server.Key == "") {
		return fmt.Errorf("server TLS needs both cert and key")
	}
	if err := c.Recharge.Validate(); err != nil {
		return fmt.Errorf("recharge defaults: %w", err)
	}
	return nil
}
