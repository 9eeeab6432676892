// Command intentctl validates and runs intent graphs from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/intentflow/logger"
)

const appName = "intentctl"

// errNotCompleted makes run exit with status 2 when some node did not
// succeed. The response has already been printed.
var errNotCompleted = errors.New("execution did not complete")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if errors.Is(err, errNotCompleted) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	logLevel string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Validate and run intent graphs",
		Long: `intentctl loads an intent graph from a YAML or JSON plan file and either
validates it or executes it with dry-run fixtures or webhook handlers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		validateCmd(),
		runCmd(g),
		typesCmd(),
		tokenCmd(),
		versionCmd(),
	)
	return cmd
}

// newLogger writes console logs to the command's stderr so stdout carries
// only the result.
func (g *globalFlags) newLogger(cmd *cobra.Command) (*logger.Logger, error) {
	cfg := logger.Config{Level: g.logLevel, Format: logger.FormatConsole, Output: "stderr"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return logger.NewWithWriter(&cfg, appName, cmd.ErrOrStderr()), nil
}
