package main

import (
	"context"
	"fmt"

	"github.com/kbukum/intentflow/auth/jwt"
	"github.com/kbukum/intentflow/component"
	"github.com/kbukum/intentflow/dag"
	"github.com/kbukum/intentflow/logger"
	"github.com/kbukum/intentflow/observability"
	"github.com/kbukum/intentflow/progress"
	"github.com/kbukum/intentflow/redis"
	"github.com/kbukum/intentflow/server"
	"github.com/kbukum/intentflow/server/api"
	"github.com/kbukum/intentflow/sse"
)

// engineComponent builds the engine once its dependencies are started and
// mounts the execution API. Register it after redis and sse and before the
// HTTP server.
type engineComponent struct {
	cfg      *Config
	registry *dag.Registry
	srv      *server.Server
	hub      *sse.Hub
	redis    *redis.Component
	metrics  *observability.Metrics
	log      *logger.Logger

	engine    *dag.Engine
	stopRelay context.CancelFunc
	relayDone chan struct{}
}

var (
	_ component.Component   = (*engineComponent)(nil)
	_ component.Describable = (*engineComponent)(nil)
)

func (c *engineComponent) Name() string { return "engine" }

func (c *engineComponent) Start(ctx context.Context) error {
	opts := []dag.Option{dag.WithLogger(c.log)}
	if c.metrics != nil {
		opts = append(opts, dag.WithEngineMetrics(c.metrics))
	}

	var client *redis.Client
	if c.redis != nil {
		client = c.redis.Client()
	}
	if c.cfg.Progress.Mode == ProgressRedis {
		if err := c.startRelay(ctx, client); err != nil {
			return err
		}
		opts = append(opts, dag.WithPublisher(progress.NewRedisPublisher(client, c.cfg.Progress.ChannelPrefix)))
	} else {
		opts = append(opts, dag.WithPublisher(progress.NewSSEPublisher(c.hub)))
	}

	engine, err := dag.NewEngine(c.cfg.Engine, c.registry, opts...)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	c.engine = engine

	var validator *jwt.Validator
	if c.cfg.Auth.Enabled {
		validator, err = jwt.NewValidator(c.cfg.Auth)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}
	apiOpts := []api.Option{api.WithHub(c.hub), api.WithLogger(c.log)}
	if client != nil {
		store := api.NewRedisResultStore(client, c.cfg.Progress.ResultPrefix)
		apiOpts = append(apiOpts, api.WithResultStore(store, c.cfg.Progress.ResultTTL))
	}
	api.New(engine, apiOpts...).Register(c.srv.APIGroup("/v1", validator))
	return nil
}

// startRelay subscribes to the progress channels and returns once the
// subscription is active.
func (c *engineComponent) startRelay(ctx context.Context, client *redis.Client) error {
	relayCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	c.stopRelay = cancel
	c.relayDone = make(chan struct{})
	go func() {
		defer close(c.relayDone)
		if err := progress.Relay(relayCtx, client, c.cfg.Progress.ChannelPrefix, c.hub, c.log, ready); err != nil {
			errCh <- err
		}
	}()
	select {
	case <-ready:
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the engine, which cancels running executions, then stops
// the relay.
func (c *engineComponent) Stop(ctx context.Context) error {
	var err error
	if c.engine != nil {
		err = c.engine.Close(ctx)
	}
	if c.stopRelay != nil {
		c.stopRelay()
		<-c.relayDone
	}
	return err
}

func (c *engineComponent) Health(_ context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.engine == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
		return h
	}
	h.Message = fmt.Sprintf("%d executions running", len(c.engine.Running()))
	return h
}

func (c *engineComponent) Describe() component.Description {
	e := c.cfg.Engine
	return component.Description{
		Name: "Intent Engine",
		Type: "engine",
		Details: fmt.Sprintf("types=%d pool=%d concurrency=%d deadline=%s progress=%s",
			len(c.registry.Types()), e.PoolSize, e.MaxConcurrency, e.Deadline, c.cfg.Progress.Mode),
	}
}
