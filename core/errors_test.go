package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"validation", &ValidationError{Field: "a", Message: "missing"}, KindValidation},
		{"unknown tool", &UnknownToolError{Tool: "nope"}, KindUnknownTool},
		{"duplicate tool", &DuplicateToolError{Tool: "twice"}, KindDuplicateTool},
		{"execution", &ExecutionError{Tool: "calc", Cause: errors.New("boom")}, KindExecution},
		{"timeout", &TimeoutError{Op: "tool", Timeout: time.Second}, KindTimeout},
		{"step budget", &StepBudgetExceededError{Steps: 9, MaxSteps: 8}, KindStepBudgetExceeded},
		{"reasoning unavailable", &ReasoningUnavailableError{Attempts: 3, Cause: errors.New("down")}, KindReasoningUnavailable},
		{"cancelled", context.Canceled, KindCancelled},
		{"wrapped cancelled", fmt.Errorf("turn aborted: %w", context.Canceled), KindCancelled},
		{"wrapped typed", fmt.Errorf("dispatch: %w", &UnknownToolError{Tool: "x"}), KindUnknownTool},
		{"plain error", errors.New("mystery"), KindExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorKindRecoverable(t *testing.T) {
	assert.True(t, KindValidation.Recoverable())
	assert.True(t, KindUnknownTool.Recoverable())
	assert.True(t, KindExecution.Recoverable())
	assert.True(t, KindTimeout.Recoverable())

	assert.False(t, KindStepBudgetExceeded.Recoverable())
	assert.False(t, KindReasoningUnavailable.Recoverable())
	assert.False(t, KindCancelled.Recoverable())
	assert.False(t, KindDuplicateTool.Recoverable())
}

func TestExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &ExecutionError{Tool: "calc", Cause: cause}
	assert.ErrorIs(t, err, cause)
}

func TestReasoningUnavailableErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ReasoningUnavailableError{Attempts: 3, Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "3 attempts")
}
