package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// Validate validates the entire configuration.
func Validate(cfg *Config) error {
	v := &Validator{}
	v.validateServer(&cfg.Server)
	v.validateVendor(&cfg.Vendor)
	v.validateDatabase(&cfg.Database)
	v.validateImport(&cfg.Import)
	v.validateLog(&cfg.Log)
	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(field string, value interface{}, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: message})
}

func (v *Validator) validateServer(c *ServerConfig) {
	if c.Listen == "" {
		v.addError("server.listen", c.Listen, "must not be empty")
	}
	if c.RequestTimeout <= 0 {
		v.addError("server.request_timeout", c.RequestTimeout, "must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		v.addError("server.shutdown_timeout", c.ShutdownTimeout, "must be positive")
	}
}

func (v *Validator) validateVendor(c *VendorConfig) {
	if c.BaseURL == "" {
		v.addError("vendor.base_url", c.BaseURL, "must not be empty")
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		v.addError("vendor.base_url", c.BaseURL, "must be an absolute URL")
	}
	if c.Timeout <= 0 {
		v.addError("vendor.timeout", c.Timeout, "must be positive")
	}
	if c.RatePerSecond <= 0 {
		v.addError("vendor.rate_per_second", c.RatePerSecond, "must be positive")
	}
	if c.Burst < 1 {
		v.addError("vendor.burst", c.Burst, "must be at least 1")
	}
}

func (v *Validator) validateDatabase(c *DatabaseConfig) {
	if c.Path == "" {
		v.addError("database.path", c.Path, "must not be empty")
	}
}

func (v *Validator) validateImport(c *ImportConfig) {
	if c.PageSize < 1 || c.PageSize > 1000 {
		v.addError("import.page_size", c.PageSize, "must be between 1 and 1000")
	}
}

func (v *Validator) validateLog(c *LogConfig) {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("log.level", c.Level, "must be one of: debug, info, warn, error")
	}
	switch c.Format {
	case "auto", "text", "json":
	default:
		v.addError("log.format", c.Format, "must be one of: auto, text, json")
	}
}
