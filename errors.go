package testcase

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-testcase/types"
)

// Process exit codes
const (
	ExitSuccess      = 0 // Every selected test passed
	ExitTestFailure  = 1 // At least one test failed, errored or timed out
	ExitRuntimeError = 2 // The run could not be carried out
)

// Stages of a run that can fail with a RuntimeError
const (
	StageConfig    = "config"
	StageTelemetry = "telemetry"
	StageService   = "service"
	StageSelect    = "select"
	StageRun       = "run"
	StageReport    = "report"
)

// RuntimeError means the suite could not be run or reported at all, as
// opposed to tests that ran and did not pass.
type RuntimeError struct {
	Stage string
	Err   error
}

func NewRuntimeError(stage string, err error) *RuntimeError {
	return &RuntimeError{Stage: stage, Err: err}
}

func (e *RuntimeError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("runtime error: %v", e.Err)
	}
	return fmt.Sprintf("runtime error during %s: %v", e.Stage, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports a completed run whose summary is not OK
type TestFailureError struct {
	Summary *types.Summary
}

func NewTestFailureError(summary *types.Summary) *TestFailureError {
	return &TestFailureError{Summary: summary}
}

func (e *TestFailureError) Error() string {
	s := e.Summary
	if s == nil {
		return "test failure"
	}
	// Failures already include timeouts
	return fmt.Sprintf("test failure: %d of %d tests did not pass (%d failed, %d errored, %d timed out)",
		s.Failures+s.Errors, s.Tests, s.Failures-s.Timeouts, s.Errors, s.Timeouts)
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// ExitCode maps the error returned by a run to the process exit code.
// Errors of unknown type count as test failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case IsRuntimeError(err):
		return ExitRuntimeError
	default:
		return ExitTestFailure
	}
}
