package config

import (
	"net"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incident-pipeline/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "incident-task-queue", cfg.Temporal.TaskQueue)
	assert.Equal(t, 60*time.Second, cfg.Watchdog.Interval)
	assert.Equal(t, 20*time.Minute, cfg.Watchdog.StaleAfter)
	assert.Equal(t, 5, cfg.OpenClaw.MaxAttempts)
	assert.Equal(t, DefaultPolicies(), cfg.Escalation.Policies)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: mysql
  dsn: user:pass@tcp(db:3306)/ops
kafka:
  brokers: [kafka-1:9092, kafka-2:9092]
escalation:
  policies:
    - severity: critical
      escalate_after_minutes: 5
      reminder_every_minutes: 10
      active: true
openclaw:
  max_attempts: 3
`)
	t.Setenv("INCIDENT_HTTP_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 3, cfg.OpenClaw.MaxAttempts)
	require.Len(t, cfg.Escalation.Policies, 1)
	assert.Equal(t, models.EscalationPolicy{
		Severity: models.SeverityCritical, EscalateAfterMinutes: 5, ReminderEveryMinutes: 10, Active: true,
	}, cfg.Escalation.Policies[0])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Database.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.OpenClaw.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.OpenClaw.MaxDelay = time.Millisecond
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Escalation.Policies = append(cfg.Escalation.Policies, models.EscalationPolicy{Severity: models.SeverityCritical})
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Escalation.Policies = []models.EscalationPolicy{{Severity: "sev1"}}
	assert.Error(t, cfg.Validate())
}

func TestLoadEnvFiles(t *testing.T) {
	const key = "INCIDENT_TEST_DOTENV_MARKER"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv(key))

	require.NoError(t, os.WriteFile(path, []byte(key+"=changed\n"), 0o600))
	require.NoError(t, LoadEnvFiles(path))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestShippedConfigKeepsWebhookOffLocalListeners(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	u, err := url.Parse(cfg.OpenClaw.WebhookURL)
	require.NoError(t, err)
	_, metricsPort, err := net.SplitHostPort(cfg.HTTP.MetricsAddr)
	require.NoError(t, err)
	_, apiPort, err := net.SplitHostPort(cfg.HTTP.Addr)
	require.NoError(t, err)

	assert.NotEqual(t, metricsPort, u.Port())
	assert.NotEqual(t, apiPort, u.Port())
}
