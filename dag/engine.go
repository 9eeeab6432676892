package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/intentflow/logger"
	"github.com/kbukum/intentflow/observability"
)

// ErrEngineClosed is returned by Run after Close.
var ErrEngineClosed = errors.New("dag: engine closed")

// ErrExecutionRunning is returned when an execution id is already in use.
var ErrExecutionRunning = errors.New("dag: execution id already running")

// Engine validates intent graphs and executes them on a shared worker pool.
// It is safe for concurrent use; every call to Run or Execute gets its own
// isolated execution.
type Engine struct {
	cfg        Config
	builder    *Builder
	registry   *Registry
	pool       *Pool
	ownPool    bool
	retry      *RetryCoordinator
	log        *logger.Logger
	metrics    *observability.Metrics
	publishers []Publisher

	mu      sync.Mutex
	live    map[string]*execution
	closed  bool
	forward sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithPool shares an existing worker pool. The engine does not close it.
func WithPool(p *Pool) Option {
	return func(e *Engine) { e.pool = p }
}

// WithPublisher adds a progress publisher that receives the events of every
// execution.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publishers = append(e.publishers, p) }
}

// WithRetryCoordinator replaces the coordinator built from Config.Retry.
func WithRetryCoordinator(c *RetryCoordinator) Option {
	return func(e *Engine) { e.retry = c }
}

// WithEngineMetrics records execution and retry metrics.
func WithEngineMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine. cfg is defaulted and validated.
func NewEngine(cfg Config, registry *Registry, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Engine{
		cfg:      cfg,
		builder:  NewBuilder(cfg.MaxNodes),
		registry: registry,
		live:     make(map[string]*execution),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	e.log = e.log.WithComponent("dag")
	if e.pool == nil {
		e.pool = NewPool(cfg.PoolSize)
		e.ownPool = true
	}
	if e.retry == nil {
		e.retry = NewRetryCoordinator(cfg.Retry.Default, cfg.Retry.PerType)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Registry returns the handler registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Validate runs the graph builder without executing anything.
func (e *Engine) Validate(d *Draft) (*Graph, error) {
	return e.builder.Build(d)
}

// runOptions configures one execution.
type runOptions struct {
	id          string
	userID      string
	deadline    time.Duration
	concurrency int
	publishers  []Publisher
}

// RunOption configures a single Run or Execute call.
type RunOption func(*runOptions)

// WithExecutionID sets the execution id instead of generating one.
func WithExecutionID(id string) RunOption {
	return func(o *runOptions) { o.id = id }
}

// WithUserID tags the execution with the requesting user.
func WithUserID(id string) RunOption {
	return func(o *runOptions) { o.userID = id }
}

// WithDeadline overrides the configured deadline.
func WithDeadline(d time.Duration) RunOption {
	return func(o *runOptions) { o.deadline = d }
}

// WithConcurrency overrides the configured per-execution concurrency.
func WithConcurrency(n int) RunOption {
	return func(o *runOptions) { o.concurrency = n }
}

// WithProgress adds a publisher for this execution only.
func WithProgress(p Publisher) RunOption {
	return func(o *runOptions) { o.publishers = append(o.publishers, p) }
}

// Run validates d and executes it. A *GraphValidationError is returned when
// the draft is rejected; otherwise the aggregated response is returned,
// whatever the node outcomes.
func (e *Engine) Run(ctx context.Context, d *Draft, opts ...RunOption) (*Response, error) {
	g, err := e.builder.Build(d)
	if err != nil {
		e.log.Info("graph rejected", logger.MergeWithError(nil, err))
		return nil, err
	}
	return e.Execute(ctx, g, opts...)
}

// Execute runs a validated graph until every node is terminal, the
// execution is canceled, or the deadline passes.
func (e *Engine) Execute(ctx context.Context, g *Graph, opts ...RunOption) (*Response, error) {
	o := runOptions{deadline: e.cfg.Deadline, concurrency: e.cfg.MaxConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.deadline <= 0 {
		o.deadline = e.cfg.Deadline
	}
	if o.concurrency <= 0 {
		o.concurrency = e.cfg.MaxConcurrency
	}

	x := e.newExecution(ctx, g, o)
	if err := e.track(x); err != nil {
		x.stopRun()
		return nil, err
	}
	defer e.untrack(x)

	pubs := append(append([]Publisher(nil), e.publishers...), o.publishers...)
	if len(pubs) > 0 {
		e.forward.Add(1)
		go func() {
			defer e.forward.Done()
			Forward(context.WithoutCancel(ctx), x.progress, x.log, pubs...)
		}()
	}

	x.log.Info("execution started", logger.Fields(
		"nodes", g.Len(),
		"concurrency", x.limit,
		"deadline_ms", o.deadline.Milliseconds(),
	))
	x.run()
	resp := x.response()
	x.finish(resp)

	e.metrics.RecordExecution(ctx, string(resp.OverallStatus), resp.EndedAt.Sub(resp.StartedAt))
	x.log.Info("execution finished", logger.MergeWithDuration(logger.Fields(
		logger.FieldStatus, string(resp.OverallStatus),
		"succeeded", resp.Count(StatusSucceeded),
		"failed", resp.Count(StatusFailed),
		"skipped", resp.Count(StatusSkipped),
		"canceled", resp.Canceled,
	), resp.EndedAt.Sub(resp.StartedAt)))
	return resp, nil
}

func (e *Engine) newExecution(ctx context.Context, g *Graph, o runOptions) *execution {
	limit := min(o.concurrency, g.Len())
	if limit < 1 {
		limit = 1
	}
	deadline := time.Now().Add(o.deadline)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	runCtx, stop := context.WithDeadline(ctx, deadline)

	log := e.log.WithFields(map[string]interface{}{logger.FieldExecutionID: o.id})
	if o.userID != "" {
		log = log.WithFields(map[string]interface{}{logger.FieldUserID: o.userID})
	}
	return &execution{
		id:          o.id,
		userID:      o.userID,
		graph:       g,
		store:       NewResultStore(),
		states:      make([]nodeState, g.Len()),
		deadline:    deadline,
		limit:       limit,
		engine:      e,
		log:         log,
		progress:    NewProgressQueue(e.cfg.ProgressBuffer),
		runCtx:      runCtx,
		stopRun:     stop,
		completions: make(chan completion, limit),
		retries:     make(chan int, g.Len()),
		timers:      make(map[int]*time.Timer),
		done:        make(chan struct{}),
	}
}

func (e *Engine) track(x *execution) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if _, dup := e.live[x.id]; dup {
		return fmt.Errorf("%w: %s", ErrExecutionRunning, x.id)
	}
	e.live[x.id] = x
	return nil
}

func (e *Engine) untrack(x *execution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live[x.id] == x {
		delete(e.live, x.id)
	}
}

// Cancel cancels the running execution with the given id. It reports
// whether such an execution was found.
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	x, ok := e.live[id]
	e.mu.Unlock()
	if ok {
		x.Cancel()
	}
	return ok
}

// Running returns the ids of executions in progress.
func (e *Engine) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.live))
	for id := range e.live {
		ids = append(ids, id)
	}
	return ids
}

// Close cancels running executions, waits for progress forwarding to drain
// and stops the worker pool if the engine created it.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	live := make([]*execution, 0, len(e.live))
	for _, x := range e.live {
		live = append(live, x)
	}
	e.mu.Unlock()

	for _, x := range live {
		x.Cancel()
	}
	for _, x := range live {
		select {
		case <-x.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	drained := make(chan struct{})
	go func() {
		e.forward.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	if e.ownPool {
		return e.pool.Close(ctx)
	}
	return nil
}
