package reason

import (
	"context"
	"errors"
	"time"

	"github.com/lingobridge/lingobridge/core"
	"github.com/lingobridge/lingobridge/logging"
)

// Executor wraps an Engine with per-attempt deadlines and bounded retries.
// Backend failures are retried with exponential backoff; when every attempt
// fails the executor returns a ReasoningUnavailableError carrying the last
// cause. Parent cancellation is never retried.
type Executor struct {
	engine  Engine
	timeout time.Duration
	retries int
	backoff time.Duration
	logger  logging.Logger
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Timeout bounds each individual backend attempt. Zero disables the
	// deadline.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first failure.
	Retries int
	// Backoff is the base delay before retry n, doubled per attempt.
	Backoff time.Duration
	// Logger receives structured attempt records.
	Logger logging.Logger
}

// NewExecutor constructs an Executor around the given engine.
func NewExecutor(engine Engine, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Timeout: 30 * time.Second,
		Retries: 2,
		Backoff: 250 * time.Millisecond,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		engine:  engine,
		timeout: opts.Timeout,
		retries: opts.Retries,
		backoff: opts.Backoff,
		logger:  opts.Logger,
	}
}

// Engine returns the wrapped backend.
func (e *Executor) Engine() Engine { return e.engine }

// Step performs one reasoning step, retrying transient backend failures.
func (e *Executor) Step(ctx context.Context, req Request) (StepResult, error) {
	var lastErr error

	attempts := e.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := e.backoff << (attempt - 1)
			e.logger.Warn("reason.step.retry", "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", lastErr.Error())
			select {
			case <-ctx.Done():
				return StepResult{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := e.attempt(ctx, req)
		if err == nil {
			if !result.Valid() {
				lastErr = errors.New("backend returned neither answer nor tool request")
				continue
			}
			return result, nil
		}

		// A cancelled parent means the front end is gone; retrying is pointless.
		if ctx.Err() != nil {
			return StepResult{}, ctx.Err()
		}
		lastErr = err
	}

	e.logger.Error("reason.step.unavailable", "attempts", attempts, "error", lastErr.Error())
	return StepResult{}, &core.ReasoningUnavailableError{Attempts: attempts, Cause: lastErr}
}

func (e *Executor) attempt(ctx context.Context, req Request) (StepResult, error) {
	attemptCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.engine.Step(attemptCtx, req)
}
