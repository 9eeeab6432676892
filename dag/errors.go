package dag

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/kbukum/intentflow/errors"
)

// ValidationKind classifies a GraphValidationError.
type ValidationKind string

const (
	KindInvalidNode       ValidationKind = "InvalidNode"
	KindDuplicateNode     ValidationKind = "DuplicateNode"
	KindDanglingReference ValidationKind = "DanglingReference"
	KindCycleDetected     ValidationKind = "CycleDetected"
	KindGraphTooLarge     ValidationKind = "GraphTooLarge"
)

// Sentinels matched by errors.Is against a GraphValidationError of the same kind.
var (
	ErrInvalidNode       = errors.New("dag: invalid node")
	ErrDuplicateNode     = errors.New("dag: duplicate node")
	ErrDanglingReference = errors.New("dag: dangling reference")
	ErrCycleDetected     = errors.New("dag: cycle detected")
	ErrGraphTooLarge     = errors.New("dag: graph too large")
)

var kindSentinels = map[ValidationKind]error{
	KindInvalidNode:       ErrInvalidNode,
	KindDuplicateNode:     ErrDuplicateNode,
	KindDanglingReference: ErrDanglingReference,
	KindCycleDetected:     ErrCycleDetected,
	KindGraphTooLarge:     ErrGraphTooLarge,
}

var kindCodes = map[ValidationKind]apperrors.ErrorCode{
	KindInvalidNode:       apperrors.ErrCodeInvalidGraph,
	KindDuplicateNode:     apperrors.ErrCodeDuplicateNode,
	KindDanglingReference: apperrors.ErrCodeDanglingReference,
	KindCycleDetected:     apperrors.ErrCodeCycleDetected,
	KindGraphTooLarge:     apperrors.ErrCodeGraphTooLarge,
}

// GraphValidationError rejects a draft before anything executes.
type GraphValidationError struct {
	Kind ValidationKind
	// NodeID is the offending node, when one can be named.
	NodeID string
	// Ref is the unknown id for DanglingReference.
	Ref string
	// Cycle lists the node ids forming a cycle, first id repeated at the end.
	Cycle []string
	// Size and Limit are set for GraphTooLarge.
	Size, Limit int
	// Cause carries the underlying parse or field validation error.
	Cause error
}

func (e *GraphValidationError) Error() string {
	var msg string
	switch e.Kind {
	case KindDanglingReference:
		msg = fmt.Sprintf("node %q references unknown node %q", e.NodeID, e.Ref)
	case KindCycleDetected:
		msg = "cycle " + strings.Join(e.Cycle, " -> ")
	case KindGraphTooLarge:
		msg = fmt.Sprintf("%d nodes exceeds the limit of %d", e.Size, e.Limit)
	case KindDuplicateNode:
		msg = fmt.Sprintf("node id %q is declared more than once", e.NodeID)
	default:
		msg = "malformed graph"
		if e.NodeID != "" {
			msg = fmt.Sprintf("node %q is malformed", e.NodeID)
		}
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return "dag: " + string(e.Kind) + ": " + msg
}

// Is matches the sentinel for the error's kind.
func (e *GraphValidationError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func (e *GraphValidationError) Unwrap() error { return e.Cause }

// AppError converts the error for API responses.
func (e *GraphValidationError) AppError() *apperrors.AppError {
	appErr := apperrors.New(kindCodes[e.Kind], e.Error(), http.StatusUnprocessableEntity).
		WithDetail("kind", string(e.Kind))
	if e.NodeID != "" {
		appErr.WithDetail("node_id", e.NodeID)
	}
	if e.Ref != "" {
		appErr.WithDetail("ref", e.Ref)
	}
	if len(e.Cycle) > 0 {
		appErr.WithDetail("cycle", e.Cycle)
	}
	if e.Limit > 0 {
		appErr.WithDetails(map[string]any{"size": e.Size, "limit": e.Limit})
	}
	if fieldErr, ok := apperrors.AsAppError(e.Cause); ok {
		if fields, ok := fieldErr.Details["fields"]; ok {
			appErr.WithDetail("fields", fields)
		}
	}
	return appErr
}

// ErrResultExists is returned when a node's result is written twice.
var ErrResultExists = errors.New("dag: result already recorded")
