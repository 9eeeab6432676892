package dag

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/intentflow/logger"
)

// EventKind distinguishes node transitions from execution milestones.
type EventKind string

const (
	EventNode      EventKind = "node"
	EventExecution EventKind = "execution"
)

// Event is one progress notification. Status holds a node status name, or
// for execution events "started" or an overall status.
type Event struct {
	ExecutionID string     `json:"execution_id"`
	Kind        EventKind  `json:"kind"`
	NodeID      string     `json:"node_id,omitempty"`
	Type        IntentType `json:"type,omitempty"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	Attempt     int        `json:"attempt,omitempty"`
	Time        time.Time  `json:"time"`
}

// DefaultProgressBuffer is the queue capacity used when none is configured.
const DefaultProgressBuffer = 64

// ProgressQueue is a bounded event buffer owned by one execution. Emit never
// blocks; when the buffer is full the oldest event is dropped.
type ProgressQueue struct {
	mu      sync.Mutex
	buf     []Event
	head    int
	count   int
	dropped int
	closed  bool
	notify  chan struct{}
}

// NewProgressQueue creates a queue holding up to capacity events.
func NewProgressQueue(capacity int) *ProgressQueue {
	if capacity <= 0 {
		capacity = DefaultProgressBuffer
	}
	return &ProgressQueue{
		buf:    make([]Event, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Emit appends ev. Events emitted after Close are discarded.
func (q *ProgressQueue) Emit(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if q.count == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ev
	q.count++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Drain removes and returns every buffered event, oldest first.
func (q *ProgressQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	out := make([]Event, q.count)
	for i := range out {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
		q.buf[(q.head+i)%len(q.buf)] = Event{}
	}
	q.head, q.count = 0, 0
	return out
}

// Notify is signaled after Emit and Close.
func (q *ProgressQueue) Notify() <-chan struct{} { return q.notify }

// Close stops the queue from accepting events. Buffered events can still be
// drained.
func (q *ProgressQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Closed reports whether Close was called.
func (q *ProgressQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Dropped returns the number of events lost to overflow.
func (q *ProgressQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Publisher delivers progress events to a presentation layer.
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, events []Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

// Forward drains q into every publisher until q is closed and empty.
// Publisher errors are logged and otherwise ignored.
func Forward(ctx context.Context, q *ProgressQueue, log *logger.Logger, pubs ...Publisher) {
	for {
		closed := q.Closed()
		if events := q.Drain(); len(events) > 0 {
			for _, p := range pubs {
				if err := p.Publish(ctx, events); err != nil {
					log.Warn("progress publish failed", logger.Fields(
						logger.FieldExecutionID, events[0].ExecutionID,
						logger.FieldError, err.Error(),
					))
				}
			}
		}
		if closed {
			return
		}
		select {
		case <-q.Notify():
		case <-ctx.Done():
			return
		}
	}
}
