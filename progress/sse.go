package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/kbukum/intentflow/dag"
	"github.com/kbukum/intentflow/sse"
)

// ClientID is the SSE client id of one stream watching executionID.
func ClientID(executionID, connection string) string {
	return "execution:" + executionID + ":" + connection
}

// Pattern matches every stream watching executionID.
func Pattern(executionID string) string {
	return "execution:" + executionID + ":*"
}

// Frame renders ev for SSE. The execution's closing event is Final.
func Frame(ev dag.Event, seq int) (sse.Frame, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return sse.Frame{}, fmt.Errorf("progress: encode event: %w", err)
	}
	return sse.Frame{
		Event: string(ev.Kind),
		ID:    strconv.Itoa(seq),
		Data:  data,
		Final: IsFinal(ev),
	}, nil
}

// IsFinal reports whether ev is the last event of its execution.
func IsFinal(ev dag.Event) bool {
	return ev.Kind == dag.EventExecution && ev.Status != "started"
}

// SSEPublisher broadcasts events to local SSE clients.
type SSEPublisher struct {
	hub sse.Broadcaster
	mu  sync.Mutex
	seq map[string]int
}

var _ dag.Publisher = (*SSEPublisher)(nil)

// NewSSEPublisher creates a publisher. One publisher may serve every
// execution.
func NewSSEPublisher(hub sse.Broadcaster) *SSEPublisher {
	return &SSEPublisher{hub: hub, seq: make(map[string]int)}
}

// Publish implements dag.Publisher.
func (p *SSEPublisher) Publish(_ context.Context, events []dag.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range events {
		p.seq[ev.ExecutionID]++
		f, err := Frame(ev, p.seq[ev.ExecutionID])
		if err != nil {
			return err
		}
		p.hub.Broadcast(Pattern(ev.ExecutionID), f)
		if f.Final {
			delete(p.seq, ev.ExecutionID)
		}
	}
	return nil
}
