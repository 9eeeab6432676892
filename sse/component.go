package sse

import (
	"context"
	"fmt"

	"github.com/kbukum/intentflow/component"
	"github.com/kbukum/intentflow/logger"
)

// Component runs a Hub under the component lifecycle.
type Component struct {
	hub     *Hub
	path    string
	stopped chan struct{}
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a hub whose streams are served at path.
func NewComponent(path string, log *logger.Logger) *Component {
	return &Component{hub: NewHub(log), path: path}
}

// Hub returns the hub executions publish to.
func (c *Component) Hub() *Hub { return c.hub }

func (c *Component) Name() string { return "sse" }

func (c *Component) Start(_ context.Context) error {
	c.stopped = make(chan struct{})
	go func() {
		defer close(c.stopped)
		c.hub.Run()
	}()
	return nil
}

// Stop closes every open stream. It waits for the hub loop until ctx is
// done.
func (c *Component) Stop(ctx context.Context) error {
	c.hub.Stop()
	if c.stopped == nil {
		return nil
	}
	select {
	case <-c.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sse stop: %w", ctx.Err())
	}
}

func (c *Component) Health(_ context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients on %d executions", c.hub.ClientCount(), c.hub.ExecutionCount()),
	}
}

func (c *Component) Describe() component.Description {
	return component.Description{Name: "Execution Streams", Type: "sse", Details: "GET " + c.path}
}
