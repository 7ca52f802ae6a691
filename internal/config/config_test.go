package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stress:
  trials: 7
  workers: 3
  interval: 2s
kafka:
  enabled: true
  client: kafka-go
  brokers: ["a:9092", "b:9092"]
logging:
  format: text
`), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Stress.Trials)
	assert.Equal(t, 3, cfg.Stress.Workers)
	assert.Equal(t, 1000, cfg.Stress.DeleteOdds)
	assert.Equal(t, 2*time.Second, cfg.Stress.Interval)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, ClientKafkaGo, cfg.Kafka.Client)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CAKE_STRESS_WORKERS", "4")
	t.Setenv("CAKE_GRPC_ADDR", ":6000")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Stress.Workers)
	assert.Equal(t, ":6000", cfg.GRPC.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero trials", func(c *Config) { c.Stress.Trials = 0 }},
		{"negative workers", func(c *Config) { c.Stress.Workers = -1 }},
		{"zero odds", func(c *Config) { c.Stress.DeleteOdds = 0 }},
		{"zero interval", func(c *Config) { c.Stress.Interval = 0 }},
		{"empty store", func(c *Config) { c.Store.Dir = "" }},
		{"unknown client", func(c *Config) { c.Kafka.Client = "franz" }},
		{"enabled without brokers", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
