package types

import (
	"os"

	"github.com/chrissnell/gwrecharge/internal/recharge"
	"gopkg.in/yaml.v2"
)

// Storage backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Config is the base configuration object
type Config struct {
	Server   ServerConfig    `yaml:"server,omitempty"`
	Storage  StorageConfig   `yaml:"storage,omitempty"`
	Recharge recharge.Config `yaml:"recharge,omitempty"`
}

// ServerConfig holds the REST server settings
type ServerConfig struct {
	ListenAddr        string `yaml:"listen-addr,omitempty"`
	Port              int    `yaml:"port,omitempty"`
	Cert              string `yaml:"cert,omitempty"`
	Key               string `yaml:"key,omitempty"`
	MaxConcurrentRuns int    `yaml:"max-concurrent-runs,omitempty"`
	// AuthToken, when set, is required as a bearer token on /api/v1
	AuthToken string `yaml:"auth-token,omitempty"`
}

// StorageConfig selects where finished runs are archived
type StorageConfig struct {
	Backend          string `yaml:"backend,omitempty"`
	SQLitePath       string `yaml:"sqlite-path,omitempty"`
	ConnectionString string `yaml:"connection-string,omitempty"`
}

// NewConfig creates a new config object from the given filename.
func NewConfig(filename string) (Config, error) {
	cfgFile, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}
	c := Config{}
	err = yaml.Unmarshal(cfgFile, &c)
	if err != nil {
		return Config{}, err
	}
	return c, nil
}
