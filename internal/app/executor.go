package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

// Collection mutations run as Validate → Perform → Verify → Archive → Respond.
// Only Archive writes to the durable store, so an operation rejected in an
// earlier step never reaches persisted state.

// ExecutionStep names a stage of an Operation.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError records the step an operation failed in.
// The cause stays reachable through errors.Is and errors.As.
type ExecutionError struct {
	Operation string
	Step      ExecutionStep
	Cause     error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Operation, e.Step, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Executor runs Operations with per-step logging.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an executor. A nil logger uses slog.Default.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger}
}

// Operation is one state transition. I is the input, P what Perform produces,
// V what Verify accepts and O what the caller gets back. Nil steps are skipped;
// a nil Verify hands the performed value on unchanged when P and V match.
type Operation[I, P, V, O any] struct {
	Name string

	Validate func(ctx context.Context, input I) error
	Perform  func(ctx context.Context, input I) (P, error)
	Verify   func(ctx context.Context, input I, performed P) (V, error)
	Archive  func(ctx context.Context, input I, verified V) error
	Respond  func(ctx context.Context, input I, verified V) (O, error)
}

// Execute runs op against input. The first failing step aborts the rest and
// is reported as an *ExecutionError.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (O, error) {
	var (
		zero      O
		performed P
		verified  V
		result    O
	)

	logger := logging.FromContextOr(ctx, exec.logger).With(slog.String("operation", op.Name))
	start := time.Now()

	steps := []struct {
		name ExecutionStep
		run  func() error
	}{
		{StepValidate, func() error {
			if op.Validate == nil {
				return nil
			}

			return op.Validate(ctx, input)
		}},
		{StepPerform, func() (err error) {
			if op.Perform == nil {
				return nil
			}

			performed, err = op.Perform(ctx, input)

			return err
		}},
		{StepVerify, func() (err error) {
			if op.Verify == nil {
				if v, ok := any(performed).(V); ok {
					verified = v
				}

				return nil
			}

			verified, err = op.Verify(ctx, input, performed)

			return err
		}},
		{StepArchive, func() error {
			if op.Archive == nil {
				return nil
			}

			return op.Archive(ctx, input, verified)
		}},
		{StepRespond, func() (err error) {
			if op.Respond == nil {
				return nil
			}

			result, err = op.Respond(ctx, input, verified)

			return err
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			level := slog.LevelError
			if step.name == StepValidate {
				level = slog.LevelWarn
			}

			logger.Log(ctx, level, "operation step failed",
				slog.String("step", string(step.name)),
				slog.Any("error", err),
			)

			return zero, &ExecutionError{Operation: op.Name, Step: step.name, Cause: err}
		}

		logger.Log(ctx, logging.LevelTrace, "operation step done", slog.String("step", string(step.name)))
	}

	logger.DebugContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return result, nil
}

// GetExecutionStep extracts the failing step from an execution error.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}
