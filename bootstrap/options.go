package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/intentflow/logger"
)

// Option overrides a setting NewApp would otherwise take from the config.
type Option func(*settings)

type settings struct {
	log             *logger.Logger
	shutdownTimeout time.Duration
	summaryOut      io.Writer
}

// WithLogger uses l instead of initializing the global logger from the
// config's logging section.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithShutdownTimeout overrides ServiceConfig.ShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *settings) { s.shutdownTimeout = d }
}

// WithSummaryOutput writes the startup summary to w instead of stdout.
func WithSummaryOutput(w io.Writer) Option {
	return func(s *settings) { s.summaryOut = w }
}
