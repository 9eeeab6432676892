package main

import (
	"fmt"
	"time"

	"github.com/kbukum/intentflow/auth/jwt"
	"github.com/kbukum/intentflow/config"
	"github.com/kbukum/intentflow/dag"
	"github.com/kbukum/intentflow/handler"
	"github.com/kbukum/intentflow/observability"
	"github.com/kbukum/intentflow/progress"
	"github.com/kbukum/intentflow/redis"
	"github.com/kbukum/intentflow/server"
	"github.com/kbukum/intentflow/server/api"
	"github.com/kbukum/intentflow/version"
)

const serviceName = "intentd"

// Progress modes.
const (
	// ProgressLocal streams events from this process's engine only.
	ProgressLocal = "local"
	// ProgressRedis publishes events to Redis and relays every channel to
	// the local SSE hub, so any replica can serve any stream.
	ProgressRedis = "redis"
)

// Config is the intentd configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Engine        dag.Config           `yaml:"engine" mapstructure:"engine"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Auth          jwt.Config           `yaml:"auth" mapstructure:"auth"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Progress      ProgressConfig       `yaml:"progress" mapstructure:"progress"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Handlers      handler.Config       `yaml:"handlers" mapstructure:"handlers"`
}

// ProgressConfig controls progress streaming and result retention.
type ProgressConfig struct {
	Mode          string `yaml:"mode" mapstructure:"mode"`
	ChannelPrefix string `yaml:"channel_prefix" mapstructure:"channel_prefix"`
	// ResultPrefix and ResultTTL apply when Redis is enabled; finished
	// responses are kept for GET /v1/executions/:id.
	ResultPrefix string        `yaml:"result_prefix" mapstructure:"result_prefix"`
	ResultTTL    time.Duration `yaml:"result_ttl" mapstructure:"result_ttl"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Get().Version
	}
	c.ServiceConfig.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Handlers.ApplyDefaults()

	if c.Progress.Mode == "" {
		c.Progress.Mode = ProgressLocal
	}
	if c.Progress.ChannelPrefix == "" {
		c.Progress.ChannelPrefix = progress.DefaultChannelPrefix
	}
	if c.Progress.ResultPrefix == "" {
		c.Progress.ResultPrefix = api.DefaultResultPrefix
	}
	if c.Progress.ResultTTL <= 0 {
		c.Progress.ResultTTL = time.Hour
	}
}

// Validate checks every section and the rules that span sections.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	if err := c.Handlers.Validate(); err != nil {
		return err
	}
	switch c.Progress.Mode {
	case ProgressLocal:
	case ProgressRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("progress: mode %q requires redis.enabled", ProgressRedis)
		}
	default:
		return fmt.Errorf("progress: mode must be %q or %q, got %q", ProgressLocal, ProgressRedis, c.Progress.Mode)
	}
	return nil
}
