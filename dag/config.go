package dag

import (
	"fmt"
	"time"
)

// Defaults applied by Config.ApplyDefaults.
const (
	DefaultMaxConcurrency = 8
	DefaultDeadline       = 60 * time.Second
)

// Config configures an Engine.
type Config struct {
	// MaxNodes rejects larger graphs with GraphTooLarge.
	MaxNodes int `yaml:"max_nodes" mapstructure:"max_nodes"`
	// MaxConcurrency caps the nodes of one execution running at once. The
	// effective limit is min(MaxConcurrency, node count).
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	// PoolSize is the number of workers shared by all executions.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`
	// Deadline bounds the wall-clock time of one execution.
	Deadline       time.Duration `yaml:"deadline" mapstructure:"deadline"`
	ProgressBuffer int           `yaml:"progress_buffer" mapstructure:"progress_buffer"`
	Retry          RetryConfig   `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig holds the default retry policy and per-type overrides.
type RetryConfig struct {
	Default RetryPolicy                `yaml:"default" mapstructure:"default"`
	PerType map[IntentType]RetryPolicy `yaml:"per_type" mapstructure:"per_type"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.MaxNodes <= 0 {
		c.MaxNodes = DefaultMaxNodes
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	if c.ProgressBuffer <= 0 {
		c.ProgressBuffer = DefaultProgressBuffer
	}
	if c.Retry.Default.isZero() {
		c.Retry.Default = DefaultRetryPolicy()
	} else {
		c.Retry.Default = mergePolicy(DefaultRetryPolicy(), c.Retry.Default)
	}
	for t, p := range c.Retry.PerType {
		c.Retry.PerType[t] = mergePolicy(c.Retry.Default, p)
	}
}

// mergePolicy overlays the non-zero fields of p on base. MaxRetries is
// always taken from p when any other field of p is set, so zero retries can
// be configured per type.
func mergePolicy(base, p RetryPolicy) RetryPolicy {
	out := base
	out.MaxRetries = p.MaxRetries
	if p.BaseBackoff > 0 {
		out.BaseBackoff = p.BaseBackoff
	}
	if p.Multiplier > 0 {
		out.Multiplier = p.Multiplier
	}
	if p.Jitter > 0 {
		out.Jitter = p.Jitter
	}
	if p.MaxBackoff > 0 {
		out.MaxBackoff = p.MaxBackoff
	}
	if len(p.RetryableCodes) > 0 {
		out.RetryableCodes = p.RetryableCodes
	}
	return out
}

func (p RetryPolicy) isZero() bool {
	return p.MaxRetries == 0 && p.BaseBackoff == 0 && p.Multiplier == 0 &&
		p.Jitter == 0 && p.MaxBackoff == 0 && len(p.RetryableCodes) == 0
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if c.MaxNodes <= 0 {
		return fmt.Errorf("dag: max_nodes must be positive")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("dag: max_concurrency must be positive")
	}
	if c.PoolSize < c.MaxConcurrency {
		return fmt.Errorf("dag: pool_size (%d) must be at least max_concurrency (%d)", c.PoolSize, c.MaxConcurrency)
	}
	if c.Deadline <= 0 {
		return fmt.Errorf("dag: deadline must be positive")
	}
	if err := c.Retry.Default.Validate(); err != nil {
		return fmt.Errorf("dag: retry.default: %w", err)
	}
	for t, p := range c.Retry.PerType {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("dag: retry.per_type.%s: %w", t, err)
		}
	}
	return nil
}
