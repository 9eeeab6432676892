// Command intentd serves the intent execution API over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/intentflow/bootstrap"
	"github.com/kbukum/intentflow/config"
	"github.com/kbukum/intentflow/handler"
	"github.com/kbukum/intentflow/observability"
	"github.com/kbukum/intentflow/redis"
	"github.com/kbukum/intentflow/server"
	"github.com/kbukum/intentflow/sse"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile, envFile string
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Serve the intent execution API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, envFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to config.yml (default: search standard locations)")
	cmd.Flags().StringVar(&envFile, "env", "", "path to .env file")
	return cmd
}

// loadConfig reads the YAML file and INTENTD_* overrides. Defaults and
// validation are applied by bootstrap.NewApp.
func loadConfig(configFile, envFile string) (*Config, error) {
	var cfg Config
	err := config.LoadConfig(serviceName, &cfg,
		config.WithConfigFile(configFile),
		config.WithEnvFile(envFile),
		config.WithEnvPrefix("INTENTD"),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func run(ctx context.Context, cfg *Config) error {
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	log := app.Logger

	shutdown, err := observability.Setup(ctx, cfg.Observability, cfg.Name, cfg.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	app.OnStop("observability", shutdown)

	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	regOpts := []handler.RegistryOption{handler.WithLogger(log), handler.WithMetrics(metrics)}
	if cfg.Observability.Enabled {
		regOpts = append(regOpts, handler.WithTracing())
	}
	registry, err := handler.NewRegistry(cfg.Handlers, regOpts...)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware(metrics)
	srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll)

	hub := sse.NewComponent("/v1/executions/:id/events", log)
	engine := &engineComponent{
		cfg:      cfg,
		registry: registry,
		srv:      srv,
		hub:      hub.Hub(),
		metrics:  metrics,
		log:      log,
	}
	if cfg.Redis.Enabled {
		engine.redis = redis.NewComponent(cfg.Redis, log)
		if err := app.RegisterComponent(engine.redis); err != nil {
			return err
		}
	}
	if err := app.RegisterComponent(hub); err != nil {
		return err
	}
	if err := app.RegisterComponent(engine); err != nil {
		return err
	}
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}
	return app.Run(ctx)
}
