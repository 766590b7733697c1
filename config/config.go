// Package config defines the engine's configuration, loaded from a YAML
// file with sensitive fields overridable via ELASTIC_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, mapped directly from config.yaml.
type Config struct {
	APIServerPort int       `mapstructure:"api_server_port"`
	StateFilePath string    `mapstructure:"state_file_path"`
	AuditDBPath   string    `mapstructure:"audit_db_path"`
	JWTSecret     string    `mapstructure:"jwt_secret"`
	AlertWebhook  string    `mapstructure:"alert_webhook"`
	Log           LogConfig `mapstructure:"log"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SetDefaults fills in zero-value fields with their defaults.
func (c *Config) SetDefaults() {
	if c.APIServerPort == 0 {
		c.APIServerPort = 8080
	}
	if c.StateFilePath == "" {
		c.StateFilePath = "state.json"
	}
	if c.AuditDBPath == "" {
		c.AuditDBPath = "audit.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Load reads config from a YAML file with ELASTIC_* env var overrides.
// Sensitive fields (jwt_secret, alert_webhook) also honor dedicated
// overrides for deployments that would rather not keep a secret in the
// config file at all.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ELASTIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal config: %w", err)
	}
	cfg.SetDefaults()

	if secret := os.Getenv("ELASTIC_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if hook := os.Getenv("ELASTIC_ALERT_WEBHOOK"); hook != "" {
		cfg.AlertWebhook = hook
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.APIServerPort <= 0 || c.APIServerPort > 65535 {
		return fmt.Errorf("config: api_server_port must be a valid TCP port")
	}
	if c.StateFilePath == "" {
		return fmt.Errorf("config: state_file_path is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt_secret is required (set ELASTIC_JWT_SECRET)")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be one of debug, info, warn, error")
	}
	return nil
}
