package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/kbukum/intentflow/dag"
	"github.com/kbukum/intentflow/handler"
)

type runFlags struct {
	fixtures    string
	handlers    string
	deadline    time.Duration
	concurrency int
	executionID string
	stream      bool
}

func runCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <plan>",
		Short: "Execute a plan and print the response as JSON",
		Long: `Execute a plan. Without --handlers every built-in intent type answers from
--fixtures, or with a dry-run echo of its parameters. The command exits
with status 2 when any node did not succeed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, g, f, args[0])
		},
	}
	cmd.Flags().StringVar(&f.fixtures, "fixtures", "", "YAML file of static handler outcomes")
	cmd.Flags().StringVar(&f.handlers, "handlers", "", "YAML file with a handlers section (webhooks, middleware)")
	cmd.Flags().DurationVar(&f.deadline, "deadline", dag.DefaultDeadline, "Execution deadline")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", dag.DefaultMaxConcurrency, "Maximum nodes running at once")
	cmd.Flags().StringVar(&f.executionID, "execution-id", "", "Execution id (default: random)")
	cmd.Flags().BoolVar(&f.stream, "stream", false, "Print progress events to stderr as JSON lines")
	return cmd
}

func runPlan(cmd *cobra.Command, g *globalFlags, f *runFlags, path string) error {
	log, err := g.newLogger(cmd)
	if err != nil {
		return err
	}
	draft, err := dag.LoadDraftFile(path)
	if err != nil {
		return err
	}
	cfg, err := loadHandlers(f.handlers, f.fixtures)
	if err != nil {
		return err
	}
	reg, err := handler.NewRegistry(cfg, handler.WithLogger(log))
	if err != nil {
		return err
	}

	concurrency := max(f.concurrency, 1)
	opts := []dag.Option{dag.WithLogger(log)}
	if f.stream {
		opts = append(opts, dag.WithPublisher(eventPrinter(cmd)))
	}
	engine, err := dag.NewEngine(dag.Config{
		MaxConcurrency: concurrency,
		PoolSize:       concurrency,
		Deadline:       f.deadline,
	}, reg, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close(context.Background()) }()

	var runOpts []dag.RunOption
	if f.executionID != "" {
		runOpts = append(runOpts, dag.WithExecutionID(f.executionID))
	}
	resp, err := engine.Run(cmd.Context(), draft, runOpts...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if resp.OverallStatus != dag.OverallCompleted {
		return fmt.Errorf("%w: %s", errNotCompleted, resp.OverallStatus)
	}
	return nil
}

// loadHandlers reads the handlers section of a YAML file. Without a file
// the run is a dry run.
func loadHandlers(path, fixtures string) (handler.Config, error) {
	var file struct {
		Handlers handler.Config `yaml:"handlers"`
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return handler.Config{}, err
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return handler.Config{}, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		file.Handlers.DryRun = true
	}
	cfg := file.Handlers
	if fixtures != "" {
		cfg.Fixtures = fixtures
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return handler.Config{}, err
	}
	return cfg, nil
}

func eventPrinter(cmd *cobra.Command) dag.Publisher {
	enc := json.NewEncoder(cmd.ErrOrStderr())
	return dag.PublisherFunc(func(_ context.Context, events []dag.Event) error {
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	})
}
