package api

import (
	"encoding/json"

	"github.com/kbukum/intentflow/dag"
)

// SubmitRequest is the body of POST /v1/executions and
// POST /v1/executions/validate.
type SubmitRequest struct {
	Graph       json.RawMessage `json:"graph" validate:"required"`
	DeadlineMS  int64           `json:"deadline_ms,omitempty" validate:"gte=0"`
	Concurrency int             `json:"concurrency,omitempty" validate:"gte=0,lte=1024"`
}

// ValidateResponse is returned for a valid graph.
type ValidateResponse struct {
	Valid bool     `json:"valid"`
	Nodes int      `json:"nodes"`
	Order []string `json:"order"`
}

// CancelResponse acknowledges a cancellation request.
type CancelResponse struct {
	ExecutionID string `json:"execution_id"`
	Canceled    bool   `json:"canceled"`
}

// RunningResponse lists executions in progress.
type RunningResponse struct {
	Executions []string `json:"executions"`
}

// IntentTypesResponse lists the registered intent types.
type IntentTypesResponse struct {
	Types []dag.IntentType `json:"types"`
}
