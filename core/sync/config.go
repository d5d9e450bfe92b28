package sync

import "fmt"

// Config defines drain behaviour for the sync coordinator.
type Config struct {
	BatchSize           int `json:"batch_size"`
	ApplyTimeoutSeconds int `json:"apply_timeout_seconds"`
	RetryBaseSeconds    int `json:"retry_base_seconds"`
	RetryMaxSeconds     int `json:"retry_max_seconds"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.ApplyTimeoutSeconds == 0 {
		c.ApplyTimeoutSeconds = 10
	}
	if c.RetryBaseSeconds == 0 {
		c.RetryBaseSeconds = 2
	}
	if c.RetryMaxSeconds == 0 {
		c.RetryMaxSeconds = 300
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BatchSize < 0 || c.ApplyTimeoutSeconds < 0 || c.RetryBaseSeconds < 0 || c.RetryMaxSeconds < 0 {
		return fmt.Errorf("sync config values must not be negative")
	}
	if c.RetryMaxSeconds < c.RetryBaseSeconds {
		return fmt.Errorf("retry_max_seconds must be >= retry_base_seconds")
	}
	return nil
}
