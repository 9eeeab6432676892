package bootstrap

import (
	"context"
	"fmt"

	"github.com/kbukum/intentflow/logger"
)

// Hook is a lifecycle callback.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// OnStart registers a hook that runs after every component has started.
// A failing start hook aborts startup.
func (a *App[C]) OnStart(name string, fn Hook) {
	a.onStart = append(a.onStart, namedHook{name: name, fn: fn})
}

// OnStop registers a hook that runs during shutdown before components
// stop. Stop hooks run in reverse registration order and all of them run
// even if one fails.
func (a *App[C]) OnStop(name string, fn Hook) {
	a.onStop = append(a.onStop, namedHook{name: name, fn: fn})
}

func (a *App[C]) runStartHooks(ctx context.Context) error {
	for _, h := range a.onStart {
		if err := h.fn(ctx); err != nil {
			return fmt.Errorf("start hook %q: %w", h.name, err)
		}
	}
	return nil
}

func (a *App[C]) runStopHooks(ctx context.Context) []error {
	var errs []error
	for i := len(a.onStop) - 1; i >= 0; i-- {
		h := a.onStop[i]
		if err := h.fn(ctx); err != nil {
			a.Logger.Error("Stop hook failed", logger.Fields("hook", h.name, "error", err.Error()))
			errs = append(errs, fmt.Errorf("stop hook %q: %w", h.name, err))
		}
	}
	return errs
}
