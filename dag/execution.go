package dag

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/intentflow/dag/expr"
	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/logger"
)

// nodeState is the mutable runtime state of one node. It is owned by the
// execution's scheduler goroutine.
type nodeState struct {
	status   Status
	result   any
	err      error
	reason   SkipReason
	attempts int
	started  time.Time
	elapsed  time.Duration
	// waiting marks a Ready node whose retry backoff has not elapsed.
	waiting bool
}

type completion struct {
	index   int
	result  any
	err     error
	elapsed time.Duration
}

// execution is the per-request ExecutionContext: the graph, its results,
// node states, a cancellation flag and a deadline. It is never shared.
type execution struct {
	id       string
	userID   string
	graph    *Graph
	store    *ResultStore
	states   []nodeState
	deadline time.Time
	limit    int

	engine   *Engine
	log      *logger.Logger
	progress *ProgressQueue

	runCtx          context.Context
	stopRun         context.CancelFunc
	cancelRequested atomic.Bool

	inFlight    int
	completions chan completion
	retries     chan int
	timers      map[int]*time.Timer
	canceled    bool
	timedOut    bool

	startedAt time.Time
	endedAt   time.Time
	done      chan struct{}
	closeOnce sync.Once
}

// Cancel stops dispatching new nodes. Running handlers see their context
// canceled and are given until the deadline to return.
func (x *execution) Cancel() {
	x.cancelRequested.Store(true)
	x.stopRun()
}

func (x *execution) state(n *Node) *nodeState { return &x.states[n.Index] }

// run drives the graph until no node is Ready or Running, the execution is
// canceled and drained, or the deadline passes.
func (x *execution) run() {
	defer x.stopRun()
	x.startedAt = time.Now()
	x.emitExecution("started", "")

	deadline := time.NewTimer(time.Until(x.deadline))
	defer deadline.Stop()

	for {
		if !x.canceled && x.runCtx.Err() != nil && x.interrupt() {
			break
		}
		if !x.canceled {
			x.promote()
			x.dispatchReady()
		}
		if x.inFlight == 0 && len(x.timers) == 0 && !x.hasReady() {
			break
		}

		interrupted := x.runCtx.Done()
		if x.canceled {
			interrupted = nil
		}
		select {
		case c := <-x.completions:
			if !x.canceled && x.runCtx.Err() != nil && x.interrupt() {
				x.endedAt = time.Now()
				return
			}
			x.complete(c)
		case idx := <-x.retries:
			delete(x.timers, idx)
			if st := &x.states[idx]; st.status == StatusReady {
				st.waiting = false
			}
		case <-interrupted:
			// handled at the top of the loop
		case <-deadline.C:
			x.timeout()
			x.endedAt = time.Now()
			return
		}
	}
	x.endedAt = time.Now()
}

// interrupt reacts to runCtx ending. It reports whether the loop must stop.
func (x *execution) interrupt() bool {
	if x.interruptedByDeadline() {
		x.timeout()
		return true
	}
	x.cancel()
	return false
}

// interruptedByDeadline distinguishes an expired deadline, ours or the
// caller's, from a cancellation.
func (x *execution) interruptedByDeadline() bool {
	return !x.cancelRequested.Load() && errors.Is(x.runCtx.Err(), context.DeadlineExceeded)
}

// promote moves Pending nodes whose dependencies are all terminal to Ready,
// or skips them when a referenced dependency has no result or the condition
// does not hold.
func (x *execution) promote() {
	for _, n := range x.graph.order {
		st := x.state(n)
		if st.status != StatusPending || !x.depsSettled(n) {
			continue
		}
		if reason, ok := x.dataDepsMissing(n); ok {
			x.skip(n, reason, "referenced dependency has no result")
			continue
		}
		if n.Condition != nil {
			holds, warn := n.Condition.Evaluate(x.store)
			if warn != nil {
				x.log.Warn("condition could not be evaluated", logger.MergeWithError(
					logger.NodeFields(x.id, n.ID, string(n.Type)), warn))
				x.skip(n, ReasonConditionUnresolved, warn.Error())
				continue
			}
			if !holds {
				x.skip(n, ReasonConditionFalse, "condition "+n.Condition.String()+" is false")
				continue
			}
		}
		st.status = StatusReady
		x.emitNode(n, "")
	}
}

// depsSettled reports whether every dependency is Succeeded or Skipped.
func (x *execution) depsSettled(n *Node) bool {
	for _, id := range n.DependsOn {
		s := x.states[x.graph.nodes[id].Index].status
		if s != StatusSucceeded && s != StatusSkipped {
			return false
		}
	}
	return true
}

func (x *execution) dataDepsMissing(n *Node) (SkipReason, bool) {
	for _, id := range n.DependsOn {
		if !n.dataDeps[id] {
			continue
		}
		switch x.states[x.graph.nodes[id].Index].status {
		case StatusSkipped:
			return ReasonDependencySkipped, true
		case StatusFailed:
			return ReasonDependencyFailed, true
		}
	}
	return "", false
}

func (x *execution) hasReady() bool {
	for i := range x.states {
		if x.states[i].status == StatusReady {
			return true
		}
	}
	return false
}

// dispatchReady submits Ready nodes in topological order until the
// in-flight limit is reached.
func (x *execution) dispatchReady() {
	for _, n := range x.graph.order {
		if x.inFlight >= x.limit {
			return
		}
		st := x.state(n)
		if st.status != StatusReady || st.waiting {
			continue
		}
		if x.runCtx.Err() != nil {
			return
		}
		x.dispatch(n)
	}
}

func (x *execution) dispatch(n *Node) {
	st := x.state(n)
	h, ok := x.engine.registry.Lookup(n.Type)
	if !ok {
		st.attempts++
		x.fail(n, apperrors.UnsupportedIntentType(string(n.Type)))
		return
	}
	params, err := resolveParameters(n.Parameters, x.store)
	if err != nil {
		st.attempts++
		var unresolved *expr.UnresolvedError
		if errors.As(err, &unresolved) {
			x.fail(n, apperrors.UnresolvedReference(unresolved.Ref.String()))
		} else {
			x.fail(n, apperrors.Internal(err))
		}
		return
	}

	st.status = StatusRunning
	st.attempts++
	st.started = time.Now()
	attempt := st.attempts
	index := n.Index
	ctx := x.handlerContext(n, attempt)

	task := func() {
		start := time.Now()
		result, err := invoke(ctx, h, params)
		x.completions <- completion{index: index, result: result, err: err, elapsed: time.Since(start)}
	}
	if err := x.engine.pool.Submit(x.runCtx, task); err != nil {
		st.status = StatusReady
		st.attempts--
		if errors.Is(err, ErrPoolClosed) {
			x.fail(n, apperrors.ServiceUnavailable("worker pool"))
		}
		return
	}
	x.inFlight++
	fields := logger.NodeFields(x.id, n.ID, string(n.Type))
	fields[logger.FieldAttempt] = attempt
	x.log.Debug("node dispatched", fields)
	x.emitNode(n, fmt.Sprintf("attempt %d", attempt))
}

// invoke runs the handler, turning a panic into a non-retryable error.
func invoke(ctx context.Context, h Handler, params map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Internal(fmt.Errorf("handler panic: %v", r)).
				WithDetail("stack", string(debug.Stack()))
		}
	}()
	return h.Execute(ctx, params)
}

func (x *execution) handlerContext(n *Node, attempt int) context.Context {
	ctx := logger.ContextWithExecutionID(x.runCtx, x.id)
	ctx = ContextWithCall(ctx, Call{ExecutionID: x.id, NodeID: n.ID, Type: n.Type, Attempt: attempt})
	if x.userID != "" {
		ctx = logger.ContextWithUserID(ctx, x.userID)
	}
	return ctx
}

func (x *execution) complete(c completion) {
	x.inFlight--
	n := x.graph.order[c.index]
	st := x.state(n)
	st.elapsed += c.elapsed

	if x.canceled {
		// The node finished after cancellation; keep its real outcome but
		// drop the result from the response.
		if c.err != nil {
			st.status, st.err = StatusFailed, c.err
			if errors.Is(c.err, context.Canceled) {
				st.err = apperrors.Canceled("intent " + n.ID)
			}
		} else {
			st.status = StatusSucceeded
		}
		st.reason = ReasonCanceled
		x.emitNode(n, "finished after cancellation")
		return
	}

	if c.err == nil {
		if err := x.store.Put(n.ID, c.result); err != nil {
			x.fail(n, apperrors.Internal(err))
			return
		}
		st.status = StatusSucceeded
		st.result = c.result
		x.emitNode(n, "")
		return
	}

	if delay, ok := x.engine.retry.Next(n.Type, st.attempts, c.err); ok {
		st.status = StatusReady
		st.waiting = true
		idx := c.index
		x.timers[idx] = time.AfterFunc(delay, func() { x.retries <- idx })
		x.engine.metrics.RecordRetry(x.runCtx, string(n.Type))
		x.log.Warn("node attempt failed, retrying", logger.MergeWithError(logger.Fields(
			logger.FieldExecutionID, x.id,
			logger.FieldNodeID, n.ID,
			logger.FieldIntentType, string(n.Type),
			logger.FieldAttempt, st.attempts,
			"backoff_ms", delay.Milliseconds(),
		), c.err))
		x.emit(Event{Kind: EventNode, NodeID: n.ID, Type: n.Type, Status: "retrying",
			Message: fmt.Sprintf("retry in %s", delay.Round(time.Millisecond)), Attempt: st.attempts})
		return
	}
	x.fail(n, c.err)
}

// fail marks n Failed and skips everything downstream of it.
func (x *execution) fail(n *Node, err error) {
	st := x.state(n)
	st.status = StatusFailed
	st.err = err
	st.waiting = false
	x.log.Error("node failed", logger.MergeWithError(logger.Fields(
		logger.FieldExecutionID, x.id,
		logger.FieldNodeID, n.ID,
		logger.FieldIntentType, string(n.Type),
		logger.FieldAttempt, st.attempts,
	), err))
	x.emitNode(n, err.Error())
	x.cascade(n, ReasonDependencyFailed)
}

// skip marks n Skipped and cascades to its transitive dependents.
func (x *execution) skip(n *Node, reason SkipReason, message string) {
	st := x.state(n)
	st.status = StatusSkipped
	st.reason = reason
	x.emitNode(n, message)

	downstream := ReasonDependencySkipped
	if reason == ReasonDependencyFailed {
		downstream = ReasonDependencyFailed
	}
	x.cascade(n, downstream)
}

func (x *execution) cascade(from *Node, reason SkipReason) {
	queue := []*Node{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, id := range cur.dependents {
			dep := x.graph.nodes[id]
			st := x.state(dep)
			if st.status.Terminal() {
				continue
			}
			st.status = StatusSkipped
			st.reason = reason
			x.emitNode(dep, "upstream "+from.ID+" did not succeed")
			queue = append(queue, dep)
		}
	}
}

// cancel skips every node that has not started. Running nodes are left to
// finish.
func (x *execution) cancel() {
	x.canceled = true
	x.stopTimers()
	for _, n := range x.graph.order {
		st := x.state(n)
		if st.status == StatusPending || st.status == StatusReady {
			st.status = StatusSkipped
			st.reason = ReasonCanceled
			st.waiting = false
			x.emitNode(n, "execution canceled")
		}
	}
	x.log.Info("execution canceled", logger.Fields(
		logger.FieldExecutionID, x.id,
		"running", x.inFlight,
	))
}

// timeout fails every unfinished node. Handlers still running are
// abandoned; their completions land in the buffered channel unread.
func (x *execution) timeout() {
	x.timedOut = true
	x.stopTimers()
	x.stopRun()
	now := time.Now()
	for _, n := range x.graph.order {
		st := x.state(n)
		if st.status.Terminal() {
			continue
		}
		if st.status == StatusRunning {
			st.elapsed += now.Sub(st.started)
		}
		st.status = StatusFailed
		st.err = apperrors.Timeout("intent " + n.ID)
		st.waiting = false
		x.emitNode(n, "deadline exceeded")
	}
	x.log.Warn("execution deadline exceeded", logger.Fields(
		logger.FieldExecutionID, x.id,
		"abandoned", x.inFlight,
	))
}

func (x *execution) stopTimers() {
	for idx, t := range x.timers {
		t.Stop()
		delete(x.timers, idx)
	}
}

// response assembles the aggregated output in topological order.
func (x *execution) response() *Response {
	resp := &Response{
		ExecutionID: x.id,
		Nodes:       make([]NodeReport, 0, len(x.graph.order)),
		StartedAt:   x.startedAt,
		EndedAt:     x.endedAt,
		Canceled:    x.canceled,
		TimedOut:    x.timedOut,
	}
	for _, n := range x.graph.order {
		st := x.state(n)
		report := NodeReport{
			ID:       n.ID,
			Type:     n.Type,
			Status:   st.status,
			Reason:   st.reason,
			Attempts: st.attempts,
			Duration: st.elapsed,
		}
		if st.reason == "" {
			report.Result = st.result
		}
		if st.status == StatusFailed {
			report.Error = errorBody(st.err)
		}
		resp.Nodes = append(resp.Nodes, report)
	}
	resp.OverallStatus = overallStatus(resp)
	return resp
}

func (x *execution) emitNode(n *Node, message string) {
	st := x.state(n)
	x.emit(Event{Kind: EventNode, NodeID: n.ID, Type: n.Type, Status: st.status.String(),
		Message: message, Attempt: st.attempts})
}

func (x *execution) emitExecution(status, message string) {
	x.emit(Event{Kind: EventExecution, Status: status, Message: message})
}

func (x *execution) emit(ev Event) {
	ev.ExecutionID = x.id
	ev.Time = time.Now()
	x.progress.Emit(ev)
}

// finish closes the progress queue once the final event is emitted.
func (x *execution) finish(resp *Response) {
	x.emitExecution(string(resp.OverallStatus), "")
	x.closeOnce.Do(func() {
		x.progress.Close()
		close(x.done)
	})
}
