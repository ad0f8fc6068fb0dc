// Package config loads and validates the connector configuration from
// defaults, a YAML file, environment variables and CLI flags.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Vendor   VendorConfig   `mapstructure:"vendor"`
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Log      LogConfig      `mapstructure:"log"`
	Debug    bool           `mapstructure:"debug"`
}

// ServerConfig configures the HTTP listener that receives webhooks and
// serves the read API.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	// WebhookSecret, when set, must match the X-Webhook-Secret header of
	// incoming deliveries. Empty disables the check.
	WebhookSecret   string        `mapstructure:"webhook_secret"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// VendorConfig configures access to the vendor HTTP API.
type VendorConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// RatePerSecond caps outgoing vendor calls; Burst is the bucket size.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// DatabaseConfig configures the sqlite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ImportConfig configures the bulk import fallback.
type ImportConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// WorkflowConfig names the workflow types activated for observations that
// arrive with no in-flight request. Zero disables auto-creation.
type WorkflowConfig struct {
	CheckTypeID    int64 `mapstructure:"check_type_id"`
	TrainingTypeID int64 `mapstructure:"training_type_id"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
