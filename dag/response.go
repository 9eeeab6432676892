package dag

import (
	"time"

	apperrors "github.com/kbukum/intentflow/errors"
)

// OverallStatus summarizes an execution.
type OverallStatus string

const (
	// OverallCompleted means every node succeeded and the execution was
	// neither canceled nor timed out. A skipped node rules it out.
	OverallCompleted OverallStatus = "completed"
	// OverallPartialFailure covers every other outcome, including a graph
	// whose nodes were all skipped by their conditions.
	OverallPartialFailure OverallStatus = "partial_failure"
	// OverallFailed means no node succeeded and either a node failed or the
	// execution was canceled or timed out.
	OverallFailed OverallStatus = "failed"
)

// SkipReason explains why a node did not run or why its result was dropped.
type SkipReason string

const (
	ReasonConditionFalse      SkipReason = "condition_false"
	ReasonConditionUnresolved SkipReason = "condition_unresolved"
	ReasonDependencySkipped   SkipReason = "dependency_skipped"
	ReasonDependencyFailed    SkipReason = "dependency_failed"
	ReasonCanceled            SkipReason = "canceled"
)

// Response is the structured outcome of one execution. It carries no
// presentation text.
type Response struct {
	ExecutionID   string        `json:"execution_id"`
	OverallStatus OverallStatus `json:"overall_status"`
	// Nodes are listed in topological order.
	Nodes     []NodeReport `json:"nodes"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
	Canceled  bool         `json:"canceled,omitempty"`
	TimedOut  bool         `json:"timed_out,omitempty"`
}

// NodeReport is the final state of one node.
type NodeReport struct {
	ID       string               `json:"id"`
	Type     IntentType           `json:"type"`
	Status   Status               `json:"status"`
	Result   any                  `json:"result,omitempty"`
	Error    *apperrors.ErrorBody `json:"error,omitempty"`
	Reason   SkipReason           `json:"reason,omitempty"`
	Attempts int                  `json:"attempts"`
	Duration time.Duration        `json:"duration_ns"`
}

// Node returns the report for id.
func (r *Response) Node(id string) (NodeReport, bool) {
	for _, n := range r.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeReport{}, false
}

// Count returns how many nodes ended in s.
func (r *Response) Count(s Status) int {
	c := 0
	for _, n := range r.Nodes {
		if n.Status == s {
			c++
		}
	}
	return c
}

// Results maps the id of every reported succeeded node to its result.
func (r *Response) Results() map[string]any {
	out := make(map[string]any)
	for _, n := range r.Nodes {
		if n.Status == StatusSucceeded && n.Reason == "" {
			out[n.ID] = n.Result
		}
	}
	return out
}

// overallStatus summarizes resp. A node that finished after cancellation
// does not count as succeeded.
func overallStatus(resp *Response) OverallStatus {
	succeeded, failed := 0, false
	for _, n := range resp.Nodes {
		switch {
		case n.Status == StatusSucceeded && n.Reason == "":
			succeeded++
		case n.Status == StatusFailed:
			failed = true
		}
	}
	interrupted := resp.Canceled || resp.TimedOut
	switch {
	case !interrupted && len(resp.Nodes) > 0 && succeeded == len(resp.Nodes):
		return OverallCompleted
	case succeeded == 0 && (failed || interrupted):
		return OverallFailed
	default:
		return OverallPartialFailure
	}
}

// errorBody converts a node error for the response.
func errorBody(err error) *apperrors.ErrorBody {
	if err == nil {
		return nil
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.From(err, "handler")
	}
	body := appErr.ToResponse().Error
	return &body
}
