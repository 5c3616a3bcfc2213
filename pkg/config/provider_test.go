package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chrissnell/gwrecharge/internal/sweep"
	"github.com/chrissnell/gwrecharge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestYAMLProviderLoadsConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen-addr: 127.0.0.1
  port: 9090
storage:
  backend: postgres
  connection-string: postgres://gw:gw@localhost/gw
recharge:
  sy-range: {min: 0.02, max: 0.25}
  cru-range: {min: 0.1, max: 0.3}
  rasmax-range: {min: 5, max: 10}
  resolution: fine
  tmelt: -1.5
  cm: 3
  delay-days: 2
  rmse-cutoff: 50
  rmse-cutoff-enabled: true
  limits: [0.1, 0.5, 0.9]
`)

	p := NewYAMLProvider(path)
	c, err := p.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", c.Server.ListenAddr)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, DefaultMaxConcurrentRuns, c.Server.MaxConcurrentRuns)
	assert.Equal(t, types.BackendPostgres, c.Storage.Backend)
	assert.Empty(t, c.Storage.SQLitePath)

	r := c.Recharge
	assert.Equal(t, sweep.Range{Min: 0.02, Max: 0.25}, r.Sy)
	assert.Equal(t, sweep.Range{Min: 5, Max: 10}, r.RASmax)
	assert.Equal(t, sweep.ResolutionFine, r.Resolution)
	assert.Equal(t, -1.5, r.Tmelt)
	assert.Equal(t, 3.0, r.CM)
	assert.Equal(t, 2, r.DelayDays)
	assert.True(t, r.CutoffEnabled)
	assert.Equal(t, 50.0, r.RMSECutoff)
	assert.Equal(t, []float64{0.1, 0.5, 0.9}, r.Limits)

	assert.True(t, p.IsReadOnly())
	assert.NoError(t, p.Close())
}

func TestYAMLProviderAppliesDefaults(t *testing.T) {
	c, err := NewYAMLProvider(writeConfig(t, "server: {}\n")).LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, c.Server.ListenAddr)
	assert.Equal(t, DefaultPort, c.Server.Port)
	assert.Equal(t, types.BackendSQLite, c.Storage.Backend)
	assert.Equal(t, DefaultSQLitePath, c.Storage.SQLitePath)
	assert.Equal(t, DefaultSyRange, c.Recharge.Sy)
	assert.Equal(t, DefaultCruRange, c.Recharge.Cru)
	assert.Equal(t, DefaultRASmaxRange, c.Recharge.RASmax)
	assert.Equal(t, sweep.ResolutionRough, c.Recharge.Resolution)
	assert.Equal(t, DefaultCM, c.Recharge.CM)
	assert.False(t, c.Recharge.CutoffEnabled)
}

func TestYAMLProviderRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown backend", body: "storage: {backend: influxdb}\n"},
		{name: "postgres without connection", body: "storage: {backend: postgres}\n"},
		{name: "cert without key", body: "server: {cert: server.crt}\n"},
		{name: "cru out of range", body: "recharge: {cru-range: {min: 0.5, max: 1.5}}\n"},
		{name: "bad resolution", body: "recharge: {resolution: coarse}\n"},
		{name: "malformed yaml", body: "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewYAMLProvider(writeConfig(t, tt.body)).LoadConfig()
			assert.Error(t, err)
		})
	}

	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig()
	assert.Error(t, err)
}
