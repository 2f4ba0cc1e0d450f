package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.Lanes)
	assert.Equal(t, time.Second, cfg.OpInterval)
	assert.Equal(t, 2*time.Second, cfg.RetryInterval)
	assert.Equal(t, "probe_rows", cfg.Table)
	assert.Zero(t, cfg.Duration, "default run has no stop condition")
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxyprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lanes: 5
op_interval: 500ms
duration: 2m
database:
  host: proxy.internal
  database: exerciser
  username: probe
aws:
  region: eu-west-1
  bucket: failover-results
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Lanes)
	assert.Equal(t, 500*time.Millisecond, cfg.OpInterval)
	assert.Equal(t, 2*time.Minute, cfg.Duration)
	assert.Equal(t, "proxy.internal", cfg.Database.Host)
	assert.Equal(t, "exerciser", cfg.Database.Database)
	assert.Equal(t, "failover-results", cfg.AWS.Bucket)

	// Untouched keys keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.RetryInterval)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lanes: [not an int"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PROXYPROBE_DB_HOST", "proxy.env")
	t.Setenv("PROXYPROBE_DB_PORT", "6432")
	t.Setenv("PROXYPROBE_DB_PASSWORD", "hunter2")
	t.Setenv("PROXYPROBE_LANES", "7")
	t.Setenv("PROXYPROBE_SNS_TOPIC_ARN", "arn:aws:sns:eu-west-1:123:failovers")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "proxy.env", cfg.Database.Host)
	assert.Equal(t, 6432, cfg.Database.Port)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, 7, cfg.Lanes)
	assert.Equal(t, "arn:aws:sns:eu-west-1:123:failovers", cfg.AWS.TopicARN)
}

func TestApplyEnvRejectsBadInt(t *testing.T) {
	t.Setenv("PROXYPROBE_LANES", "many")

	cfg := Default()
	assert.ErrorContains(t, cfg.ApplyEnv(), "PROXYPROBE_LANES")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Database.Host = "h"
	valid.Database.Database = "d"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero lanes", func(c *Config) { c.Lanes = 0 }, "lanes must be positive"},
		{"negative op interval", func(c *Config) { c.OpInterval = -time.Second }, "op_interval"},
		{"zero retry interval", func(c *Config) { c.RetryInterval = 0 }, "retry_interval"},
		{"zero report interval", func(c *Config) { c.ReportInterval = 0 }, "report_interval"},
		{"negative duration", func(c *Config) { c.Duration = -time.Minute }, "duration"},
		{"no event log", func(c *Config) { c.EventLogPath = "" }, "event_log"},
		{"bad database", func(c *Config) { c.Database.Host = "" }, "database: host is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
