// Package config loads pipeline settings from YAML and INCIDENT_* env vars.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"incident-pipeline/internal/models"
)

// Config is the root of the configuration tree.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Watchdog   WatchdogConfig   `mapstructure:"watchdog"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	OpenClaw   OpenClawConfig   `mapstructure:"openclaw"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

// LogConfig controls the logrus logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Caller     bool   `mapstructure:"caller"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the GORM dialect. Driver is "mysql" or "sqlite".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	HeartbeatTopic   string   `mapstructure:"heartbeat_topic"`
	GroupID          string   `mapstructure:"group_id"`
	RemediationTopic string   `mapstructure:"remediation_topic"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type WatchdogConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
	// OpenIncidents starts an escalation workflow for every alert.
	OpenIncidents bool `mapstructure:"open_incidents"`
}

type EscalationConfig struct {
	EvaluationInterval time.Duration             `mapstructure:"evaluation_interval"`
	Policies           []models.EscalationPolicy `mapstructure:"policies"`
}

// OpenClawConfig points at the external remediation agent.
type OpenClawConfig struct {
	WebhookURL  string        `mapstructure:"webhook_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// DefaultPolicies escalate critical incidents at once and warnings after 30 minutes.
func DefaultPolicies() []models.EscalationPolicy {
	return []models.EscalationPolicy{
		{Severity: models.SeverityCritical, EscalateAfterMinutes: 0, ReminderEveryMinutes: 15, Active: true},
		{Severity: models.SeverityWarning, EscalateAfterMinutes: 30, ReminderEveryMinutes: 60, Active: true},
		{Severity: models.SeverityInfo, EscalateAfterMinutes: 240, ReminderEveryMinutes: 0, Active: false},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "incident-task-queue")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.metrics_addr", ":9090")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "incident-pipeline.db")

	v.SetDefault("kafka.heartbeat_topic", "service-heartbeats")
	v.SetDefault("kafka.group_id", "incident-pipeline")
	v.SetDefault("kafka.remediation_topic", "remediation-actions")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key_prefix", "incident-pipeline:events:")

	v.SetDefault("watchdog.interval", 60*time.Second)
	v.SetDefault("watchdog.stale_after", 20*time.Minute)
	v.SetDefault("watchdog.open_incidents", true)

	v.SetDefault("escalation.evaluation_interval", time.Minute)

	v.SetDefault("openclaw.timeout", 10*time.Second)
	v.SetDefault("openclaw.max_attempts", 5)
	v.SetDefault("openclaw.base_delay", 2*time.Second)
	v.SetDefault("openclaw.max_delay", 5*time.Minute)

	v.SetDefault("notify.timeout", 5*time.Second)
}

// Load reads path (YAML) when non-empty and overlays INCIDENT_* env vars,
// including those from a .env file in the working directory.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("INCIDENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Escalation.Policies) == 0 {
		cfg.Escalation.Policies = DefaultPolicies()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Watchdog.Interval <= 0 {
		return fmt.Errorf("watchdog.interval must be positive")
	}
	if c.Escalation.EvaluationInterval <= 0 {
		return fmt.Errorf("escalation.evaluation_interval must be positive")
	}
	if c.OpenClaw.MaxAttempts < 1 {
		return fmt.Errorf("openclaw.max_attempts must be at least 1")
	}
	if c.OpenClaw.BaseDelay <= 0 || c.OpenClaw.MaxDelay < c.OpenClaw.BaseDelay {
		return fmt.Errorf("openclaw.base_delay must be positive and not above max_delay")
	}
	seen := map[models.Severity]bool{}
	for _, p := range c.Escalation.Policies {
		if p.Severity.Rank() == 2 && p.Severity != models.SeverityInfo {
			return fmt.Errorf("unknown escalation policy severity %q", p.Severity)
		}
		if seen[p.Severity] {
			return fmt.Errorf("duplicate escalation policy for %s", p.Severity)
		}
		if p.EscalateAfterMinutes < 0 || p.ReminderEveryMinutes < 0 {
			return fmt.Errorf("escalation policy %s has negative minutes", p.Severity)
		}
		seen[p.Severity] = true
	}
	return nil
}
