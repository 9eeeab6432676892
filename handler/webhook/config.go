package webhook

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kbukum/intentflow/security"
)

const defaultTimeout = 10 * time.Second

// Config binds one intent type to an endpoint.
type Config struct {
	URL     string            `yaml:"url" mapstructure:"url"`
	Timeout time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// BearerToken is sent as "Authorization: Bearer <token>".
	BearerToken string `yaml:"bearer_token" mapstructure:"bearer_token"`
	// APIKey is sent in APIKeyHeader (default X-API-Key).
	APIKey       string `yaml:"api_key" mapstructure:"api_key"`
	APIKeyHeader string `yaml:"api_key_header" mapstructure:"api_key_header"`
	// MaxResponseBytes caps the body read from the service. Default 1MB.
	MaxResponseBytes int64 `yaml:"max_response_bytes" mapstructure:"max_response_bytes"`
	// TLS configures a private CA or a client certificate for https URLs.
	TLS security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = "X-API-Key"
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = 1 << 20
	}
}

// Validate checks the endpoint URL.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("webhook: invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook: url must be absolute http(s), got %q", c.URL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("webhook: timeout must not be negative")
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
