package types

import (
	"fmt"
	"time"
)

// TestStatus represents the classified result of a single test run
type TestStatus string

const (
	TestStatusSuccess TestStatus = "success"
	TestStatusFailure TestStatus = "failure"
	TestStatusError   TestStatus = "error"
	// TestStatusTimeout is a failure variant kept distinguishable for reporting.
	TestStatusTimeout TestStatus = "timeout"
)

// IsFailure reports whether s counts as a failure (assertion failure or timeout).
func (s TestStatus) IsFailure() bool {
	return s == TestStatusFailure || s == TestStatusTimeout
}

// TestDescriptor identifies a test in lifecycle events
type TestDescriptor struct {
	Name    string
	Context string // Name of the context declaring the test
}

// ErrorRecord is the reportable form of a thrown value
type ErrorRecord struct {
	Name    string // Error kind, eg. "AssertionError"
	Message string
	Stack   []string // Stack trace, one frame line per element
}

func (e *ErrorRecord) String() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Outcome captures the classified result of a single test run
type Outcome struct {
	Test       TestDescriptor
	Status     TestStatus
	Elapsed    time.Duration
	Assertions int          // Assertions executed by the test body
	Error      *ErrorRecord // Set for every non-success status
}

// Summary aggregates the outcomes of a run
type Summary struct {
	RunID      string
	Contexts   int // Root contexts run
	Tests      int
	Failures   int // Includes timeouts
	Errors     int
	Timeouts   int
	Assertions int // Assertions run by successful tests
	OK         bool
	StartTime  time.Time
	Duration   time.Duration
}

// Add folds a test outcome into the summary
func (s *Summary) Add(o Outcome) {
	s.Tests++
	switch o.Status {
	case TestStatusSuccess:
		s.Assertions += o.Assertions
	case TestStatusFailure:
		s.Failures++
	case TestStatusTimeout:
		s.Failures++
		s.Timeouts++
	case TestStatusError:
		s.Errors++
	}
	s.OK = s.Failures == 0 && s.Errors == 0
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d contexts, %d tests, %d assertions, %d failures, %d errors, %d timeouts",
		s.Contexts, s.Tests, s.Assertions, s.Failures, s.Errors, s.Timeouts)
}
