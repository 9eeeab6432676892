// Package validation checks API and draft input.
//
// Struct tags are checked with the go-playground validator. Failures are
// reported as an INVALID_INPUT AppError whose "fields" detail lists every
// offending field by its JSON path:
//
//	err := validation.Validate(draft) // fields: nodes[1].type is required
//
// Checks that depend on headers or configured limits use a Validator:
//
//	v := validation.New().ExecutionID("X-Execution-Id", id).
//		MaxDuration("deadline_ms", req.DeadlineMS, maxDeadline)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
