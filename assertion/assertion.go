// Package assertion is the assertion library consumed by the test engine.
//
// The engine only relies on two conventions: a Counter that tells it how many
// assertions ran since the last reset, and the Kind carried by assertion
// errors. Assertions delegates the comparisons themselves to testify and turns
// a failed comparison into a panic carrying an *Error, which the engine
// recovers and classifies as a test failure.
package assertion

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// Kind is the error kind identifying assertion failures.
const Kind = "AssertionError"

// Error is an assertion failure.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Kind implements the kinded error convention used by the engine's classifier.
func (e *Error) Kind() string {
	return Kind
}

// Errorf returns an assertion failure carrying the caller's stack trace.
func Errorf(format string, args ...any) error {
	return errors.WithStack(&Error{Message: fmt.Sprintf(format, args...)})
}

// Counter counts executed assertions. It is safe for concurrent use since
// asynchronous test bodies may assert from their own goroutines.
type Counter struct {
	n atomic.Int64
}

// Default is the process-wide counter used when no other counter is configured.
var Default = &Counter{}

func (c *Counter) Inc() {
	c.n.Add(1)
}

func (c *Counter) Count() int {
	return int(c.n.Load())
}

func (c *Counter) Reset() {
	c.n.Store(0)
}

// Incrementer is notified once per executed assertion.
type Incrementer interface {
	Inc()
}

// Assertions exposes testify's assertions with panic-on-failure semantics.
type Assertions struct {
	counter Incrementer
}

// New returns Assertions reporting to counter. A nil counter disables counting.
func New(counter Incrementer) *Assertions {
	return &Assertions{counter: counter}
}

func (a *Assertions) check(fn func(t assert.TestingT) bool) {
	if a.counter != nil {
		a.counter.Inc()
	}
	rec := &recorder{}
	if !fn(rec) {
		panic(errors.WithStack(&Error{Message: rec.message()}))
	}
}

func (a *Assertions) Equal(expected, actual any, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.Equal(t, expected, actual, msgAndArgs...) })
}

func (a *Assertions) NotEqual(expected, actual any, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.NotEqual(t, expected, actual, msgAndArgs...) })
}

func (a *Assertions) EqualValues(expected, actual any, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.EqualValues(t, expected, actual, msgAndArgs...) })
}

func (a *Assertions) True(value bool, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.True(t, value, msgAndArgs...) })
}

func (a *Assertions) False(value bool, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.False(t, value, msgAndArgs...) })
}

func (a *Assertions) Nil(object any, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.Nil(t, object, msgAndArgs...) })
}

func (a *Assertions) NotNil(object any, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.NotNil(t, object, msgAndArgs...) })
}

func (a *Assertions) NoError(err error, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.NoError(t, err, msgAndArgs...) })
}

func (a *Assertions) Error(err error, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.Error(t, err, msgAndArgs...) })
}

func (a *Assertions) ErrorIs(err, target error, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.ErrorIs(t, err, target, msgAndArgs...) })
}

func (a *Assertions) Contains(s, contains any, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.Contains(t, s, contains, msgAndArgs...) })
}

func (a *Assertions) NotContains(s, contains any, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.NotContains(t, s, contains, msgAndArgs...) })
}

func (a *Assertions) Len(object any, length int, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.Len(t, object, length, msgAndArgs...) })
}

func (a *Assertions) Empty(object any, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.Empty(t, object, msgAndArgs...) })
}

func (a *Assertions) NotEmpty(object any, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.NotEmpty(t, object, msgAndArgs...) })
}

// Fail records an assertion and fails it unconditionally.
func (a *Assertions) Fail(failureMessage string, msgAndArgs ...any) {
	a.check(func(t assert.TestingT) bool { return assert.Fail(t, failureMessage, msgAndArgs...) })
}

// recorder captures testify's failure output instead of reporting to a *testing.T.
type recorder struct {
	raw []string
}

func (r *recorder) Errorf(format string, args ...any) {
	r.raw = append(r.raw, fmt.Sprintf(format, args...))
}

// testify renders failures as "\tLabel:<padding>\tcontent" lines with
// continuation lines indented past the label column.
var labelLine = regexp.MustCompile(`^\t([A-Za-z ]+):\s*\t(.*)$`)

func (r *recorder) message() string {
	raw := strings.Join(r.raw, "\n")
	fields := make(map[string][]string)
	current := ""
	for _, line := range strings.Split(raw, "\n") {
		if m := labelLine.FindStringSubmatch(line); m != nil {
			current = m[1]
			if v := strings.TrimSpace(m[2]); v != "" {
				fields[current] = append(fields[current], v)
			}
			continue
		}
		if v := strings.TrimSpace(line); current != "" && v != "" {
			fields[current] = append(fields[current], v)
		}
	}

	msg := strings.Join(fields["Error"], "\n")
	if msg == "" {
		msg = strings.TrimSpace(raw)
	}
	if extra := strings.Join(fields["Messages"], " "); extra != "" {
		msg = extra + ": " + msg
	}
	return msg
}
