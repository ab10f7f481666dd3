package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-testcase/assertion"
	"github.com/ethereum-optimism/infra/op-testcase/types"
)

// TimeoutError is reported when a test body does not settle within the configured timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timed out after %s", e.Timeout)
}

func (e *TimeoutError) Kind() string {
	return KindTimeout
}

// countError is an assertion-count policy violation. It carries the
// classifier's assertion kind so it is always classified as a failure.
type countError struct {
	kind string
	msg  string
}

func (e *countError) Error() string {
	return e.msg
}

func (e *countError) Kind() string {
	return e.kind
}

// Stages collects what each stage of a test's fixture chain threw
type Stages struct {
	SetUp      error   // First failing setUp, later setUps are skipped
	Body       error   // Body failure or assertion-count violation
	TearDown   []error // Every failing tearDown, leaf first
	Assertions int     // Assertions run by the body
}

// Err returns the thrown value that decides the outcome: setUp, then body, then tearDown.
func (s Stages) Err() error {
	if s.SetUp != nil {
		return s.SetUp
	}
	if s.Body != nil {
		return s.Body
	}
	if len(s.TearDown) > 0 {
		return s.TearDown[0]
	}
	return nil
}

// Classifier decides the outcome of a test run
type Classifier struct {
	AssertionKind      string
	FailOnNoAssertions bool
}

// NewClassifier creates a classifier. An empty kind selects assertion.Kind.
func NewClassifier(assertionKind string, failOnNoAssertions bool) *Classifier {
	if assertionKind == "" {
		assertionKind = assertion.Kind
	}
	return &Classifier{
		AssertionKind:      assertionKind,
		FailOnNoAssertions: failOnNoAssertions,
	}
}

// CheckAssertions applies the assertion-count policy to a body that did not
// throw. An explicit expectation on the case takes precedence over the
// zero-assertion rule.
func (c *Classifier) CheckAssertions(tc *types.Case, count int) error {
	if expected, ok := tc.ExpectedAssertions(); ok {
		if expected != count {
			return &countError{kind: c.AssertionKind, msg: fmt.Sprintf(AssertionMismatchTemplate, expected, count)}
		}
		return nil
	}
	if c.FailOnNoAssertions && count == 0 {
		return &countError{kind: c.AssertionKind, msg: NoAssertionsMessage}
	}
	return nil
}

// Status maps a thrown value to a test status
func (c *Classifier) Status(err error) types.TestStatus {
	if err == nil {
		return types.TestStatusSuccess
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return types.TestStatusTimeout
	}
	if types.ErrorKind(err) == c.AssertionKind {
		return types.TestStatusFailure
	}
	return types.TestStatusError
}

// Classify builds the outcome of a test from its stages
func (c *Classifier) Classify(test types.TestDescriptor, stages Stages) types.Outcome {
	err := stages.Err()
	return types.Outcome{
		Test:       test,
		Status:     c.Status(err),
		Assertions: stages.Assertions,
		Error:      types.NewErrorRecord(err),
	}
}
