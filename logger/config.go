package logger

// Config is the logger configuration.
type Config struct {
	Level string `json:"level"` // debug, info, warn, error (default: info)
}

// SetDefaults fills in zero-value fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}
