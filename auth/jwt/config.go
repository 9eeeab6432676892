package jwt

import (
	"fmt"
	"slices"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Methods accepted for signing and verification.
var Methods = []string{"HS256", "HS384", "HS512"}

// Config configures token validation.
type Config struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Secret is the shared HMAC key.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// Method is the expected algorithm. Default HS256.
	Method   string   `yaml:"method" mapstructure:"method"`
	Issuer   string   `yaml:"issuer" mapstructure:"issuer"`
	Audience []string `yaml:"audience" mapstructure:"audience"`
	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration `yaml:"leeway" mapstructure:"leeway"`
	// TokenTTL is the lifetime of tokens minted by Issue. Default 1h.
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = "HS256"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
}

// Validate checks an enabled configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !slices.Contains(Methods, c.Method) {
		return fmt.Errorf("auth: unsupported method %q, want one of %v", c.Method, Methods)
	}
	if len(c.Secret) < 32 {
		return fmt.Errorf("auth: secret must be at least 32 bytes")
	}
	return nil
}

func (c *Config) signingMethod() gojwt.SigningMethod {
	return gojwt.GetSigningMethod(c.Method)
}
