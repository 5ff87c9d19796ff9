package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind is a stable, wire-safe categorization of runtime failures. The
// transport adapter reports the kind (never a raw Go error) in the
// session_failed event, and ToolResultTurn carries it so the reasoning engine
// can distinguish failure classes.
type ErrorKind string

const (
	// KindValidation marks tool arguments that do not match the declared schema. Recoverable.
	KindValidation ErrorKind = "validation_error"
	// KindUnknownTool marks a request for a tool absent from the registry. Recoverable once.
	KindUnknownTool ErrorKind = "unknown_tool"
	// KindDuplicateTool marks a registration collision. Startup-time only.
	KindDuplicateTool ErrorKind = "duplicate_tool"
	// KindExecution marks a tool-internal failure. Recoverable.
	KindExecution ErrorKind = "execution_error"
	// KindTimeout marks an operation exceeding its configured deadline.
	// Recoverable for tools, retried for reasoning calls.
	KindTimeout ErrorKind = "timeout"
	// KindStepBudgetExceeded marks step budget exhaustion. Fatal for the session.
	KindStepBudgetExceeded ErrorKind = "step_budget_exceeded"
	// KindReasoningUnavailable marks a reasoning backend outage surviving all
	// configured retries. Fatal for the session.
	KindReasoningUnavailable ErrorKind = "reasoning_unavailable"
	// KindCancelled marks a front-end disconnect cancelling an in-flight turn.
	// Fatal for the session.
	KindCancelled ErrorKind = "cancelled"
)

// ValidationError reports tool arguments failing schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// UnknownToolError reports a lookup of a tool name absent from the registry.
type UnknownToolError struct {
	Tool string
}

func (e *UnknownToolError) Error() string { return fmt.Sprintf("unknown tool %q", e.Tool) }

// DuplicateToolError reports a registration under an already-taken name.
type DuplicateToolError struct {
	Tool string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Tool)
}

// ExecutionError wraps a failure raised inside a tool implementation.
type ExecutionError struct {
	Tool  string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.Tool, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// TimeoutError reports an operation exceeding its configured deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// StepBudgetExceededError reports a session consuming more reasoning/tool
// round trips than max_steps allows.
type StepBudgetExceededError struct {
	Steps    int
	MaxSteps int
}

func (e *StepBudgetExceededError) Error() string {
	return fmt.Sprintf("step budget exceeded: %d steps taken, max %d", e.Steps, e.MaxSteps)
}

// ReasoningUnavailableError reports a reasoning backend outage that survived
// the configured retry count.
type ReasoningUnavailableError struct {
	Attempts int
	Cause    error
}

func (e *ReasoningUnavailableError) Error() string {
	return fmt.Sprintf("reasoning backend unavailable after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ReasoningUnavailableError) Unwrap() error { return e.Cause }

// KindOf maps an error to its stable kind. Context cancellation maps to
// KindCancelled; anything unrecognized maps to KindExecution so a terminal
// failure always yields a reportable kind.
func KindOf(err error) ErrorKind {
	var (
		validationErr  *ValidationError
		unknownErr     *UnknownToolError
		duplicateErr   *DuplicateToolError
		execErr        *ExecutionError
		timeoutErr     *TimeoutError
		budgetErr      *StepBudgetExceededError
		unavailableErr *ReasoningUnavailableError
	)
	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &unknownErr):
		return KindUnknownTool
	case errors.As(err, &duplicateErr):
		return KindDuplicateTool
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &budgetErr):
		return KindStepBudgetExceeded
	case errors.As(err, &unavailableErr):
		return KindReasoningUnavailable
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &execErr):
		return KindExecution
	default:
		return KindExecution
	}
}

// Recoverable reports whether an error of the given kind is fed back to the
// reasoning engine as a ToolResultTurn payload instead of failing the session.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case KindValidation, KindUnknownTool, KindExecution, KindTimeout:
		return true
	default:
		return false
	}
}
