package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kbukum/intentflow/errors"
)

// executionIDPattern bounds caller-chosen execution ids. They appear in SSE
// client ids, Redis keys and log fields.
var executionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// FieldError is one failed check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator accumulates failures from checks that struct tags cannot
// express, such as limits taken from configuration.
type Validator struct {
	errors []FieldError
}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

func (v *Validator) HasErrors() bool { return len(v.errors) > 0 }

func (v *Validator) Errors() []FieldError { return v.errors }

// Validate returns nil if nothing failed. Otherwise it returns one
// INVALID_INPUT error whose message joins every failure and whose "fields"
// detail lists them.
func (v *Validator) Validate() *errors.AppError {
	if len(v.errors) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range v.errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Field)
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return errors.Validation(b.String()).WithDetail("fields", v.errors)
}

// Custom records message when ok is false.
func (v *Validator) Custom(ok bool, field, message string) *Validator {
	if !ok {
		v.AddError(field, message)
	}
	return v
}

// ExecutionID checks a caller-supplied execution id.
func (v *Validator) ExecutionID(field, id string) *Validator {
	return v.Custom(IsExecutionID(id), field, "must be 1-64 letters, digits, '.', '_' or '-'")
}

// MaxDuration checks that a millisecond count does not exceed limit. A
// zero limit disables the check.
func (v *Validator) MaxDuration(field string, ms int64, limit time.Duration) *Validator {
	if limit <= 0 {
		return v
	}
	return v.Custom(ms <= limit.Milliseconds(), field,
		fmt.Sprintf("must not exceed %d", limit.Milliseconds()))
}

// IsExecutionID reports whether id is usable as an execution id.
func IsExecutionID(id string) bool {
	return executionIDPattern.MatchString(id)
}
