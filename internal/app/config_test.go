package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/pricealert.sqlite", cfg.Database.Path)

	require.Equal(t, "pricealert", cfg.Auth.JWT.Issuer)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.TTL)

	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 587, cfg.Email.SMTP.Port)
	require.True(t, cfg.Email.SMTP.UseTLS)

	require.Equal(t, "@every 15m", cfg.Alerts.EvaluationSchedule)
	require.Equal(t, "@every 5m", cfg.Alerts.VerificationSchedule)
	require.Equal(t, 24*time.Hour, cfg.Alerts.TokenTTL)

	require.Equal(t, 30*time.Second, cfg.Scraper.Timeout)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.True(t, cfg.Monitoring.Health.Enabled)
}

func TestLoadConfigReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
server:
  port: 9100
  log_level: debug
alerts:
  evaluation_schedule: "@every 1h"
  verification_token_ttl: 48h
email:
  smtp:
    enabled: true
    host: smtp.example.com
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "@every 1h", cfg.Alerts.EvaluationSchedule)
	require.Equal(t, 48*time.Hour, cfg.Alerts.TokenTTL)
	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)

	// Untouched keys keep their defaults.
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "@every 5m", cfg.Alerts.VerificationSchedule)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("PRICEALERT_SERVER_PORT", "9200")
	t.Setenv("PRICEALERT_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("PRICEALERT_SCRAPER_TIMEOUT", "5s")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 5*time.Second, cfg.Scraper.Timeout)
}
