package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, GatewayConfig{}, cfg.Gateway)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 100, cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
}

func TestDefaultGatewayConfig(t *testing.T) {
	cfg := DefaultGatewayConfig()
	assert.Equal(t, "ab-compat-railway-mcp", cfg.ServerName)
	assert.Equal(t, "0.3.0", cfg.ServerVersion)
	assert.Equal(t, "2024-11-05", cfg.ProtocolVersion)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 256, cfg.QueueCapacity)
	assert.Equal(t, "drop_oldest", cfg.OverflowPolicy)
	assert.Equal(t, 4, cfg.BatchConcurrency)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
}

func TestDefaultLogAndTelemetry(t *testing.T) {
	logCfg := DefaultLogConfig()
	assert.Equal(t, "info", logCfg.Level)
	assert.Equal(t, "json", logCfg.Format)
	assert.Equal(t, []string{"stdout"}, logCfg.OutputPaths)

	tel := DefaultTelemetryConfig()
	assert.False(t, tel.Enabled)
	assert.Equal(t, "mcpgate", tel.ServiceName)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port range", func(c *Config) { c.Server.HTTPPort = 70000 }, "http_port"},
		{"metrics collides", func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, "metrics_port"},
		{"metrics disabled", func(c *Config) { c.Server.MetricsPort = 0 }, ""},
		{"heartbeat", func(c *Config) { c.Gateway.HeartbeatInterval = 0 }, "heartbeat_interval"},
		{"policy", func(c *Config) { c.Gateway.OverflowPolicy = "block" }, "overflow_policy"},
		{"batch", func(c *Config) { c.Gateway.BatchConcurrency = 0 }, "batch_concurrency"},
		{"body", func(c *Config) { c.Gateway.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
