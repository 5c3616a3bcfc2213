package config

import (
	"github.com/chrissnell/gwrecharge/internal/types"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *types.Config
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig reads the YAML file, applies defaults and validates the result.
// The file is read once; later calls return the cached configuration.
func (y *YAMLProvider) LoadConfig() (*types.Config, error) {
	if y.config != nil {
		return y.config, nil
	}

	c, err := types.NewConfig(y.filename)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(&c)
	if err := Validate(&c); err != nil {
		return nil, err
	}

	y.config = &c
	return y.config, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
