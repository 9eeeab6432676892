package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/intentflow/dag"
)

// MockHandler is a scripted dag.Handler. It records every call and returns
// queued errors before falling back to its result.
type MockHandler struct {
	mu      sync.Mutex
	result  any
	errs    []error
	fn      func(ctx context.Context, params map[string]any) (any, error)
	delay   time.Duration
	block   bool
	calls   int
	params  []map[string]any
	running int
	peak    int
	started chan struct{}
}

var _ dag.Handler = (*MockHandler)(nil)

// NewMockHandler returns a handler that succeeds with result.
func NewMockHandler(result any) *MockHandler {
	return &MockHandler{result: result, started: make(chan struct{}, 64)}
}

// NewMockHandlerFunc returns a handler backed by fn.
func NewMockHandlerFunc(fn func(ctx context.Context, params map[string]any) (any, error)) *MockHandler {
	return &MockHandler{fn: fn, started: make(chan struct{}, 64)}
}

// FailTimes makes the next n calls return err.
func (h *MockHandler) FailTimes(n int, err error) *MockHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	for range n {
		h.errs = append(h.errs, err)
	}
	return h
}

// FailAlways makes every call return err.
func (h *MockHandler) FailAlways(err error) *MockHandler {
	return h.WithFunc(func(context.Context, map[string]any) (any, error) { return nil, err })
}

// WithFunc replaces the result with fn.
func (h *MockHandler) WithFunc(fn func(ctx context.Context, params map[string]any) (any, error)) *MockHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fn = fn
	return h
}

// WithDelay makes every call take d, returning early if ctx ends.
func (h *MockHandler) WithDelay(d time.Duration) *MockHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delay = d
	return h
}

// Blocking makes every call wait for its context to end and ignore the
// result.
func (h *MockHandler) Blocking() *MockHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.block = true
	return h
}

// Execute implements dag.Handler.
func (h *MockHandler) Execute(ctx context.Context, params map[string]any) (any, error) {
	h.mu.Lock()
	h.calls++
	h.params = append(h.params, params)
	h.running++
	h.peak = max(h.peak, h.running)
	var err error
	if len(h.errs) > 0 {
		err, h.errs = h.errs[0], h.errs[1:]
	}
	delay, block, fn, result := h.delay, h.block, h.fn, h.result
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running--
		h.mu.Unlock()
	}()
	select {
	case h.started <- struct{}{}:
	default:
	}

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, params)
	}
	return result, nil
}

// Calls returns how many times Execute was invoked.
func (h *MockHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// Params returns the parameters of call i.
func (h *MockHandler) Params(i int) map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.params) {
		return nil
	}
	return h.params[i]
}

// Peak returns the largest number of concurrent calls observed.
func (h *MockHandler) Peak() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peak
}

// Started receives a value each time a call begins.
func (h *MockHandler) Started() <-chan struct{} { return h.started }
