package types

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/ethereum-optimism/infra/op-testcase/async"
)

// Kind names used for thrown values that do not carry their own kind
const (
	KindError        = "Error"
	KindRuntimeError = "RuntimeError"
	KindPanic        = "Panic"
)

// Kinded is implemented by errors that name their own kind, eg. assertion errors.
type Kinded interface {
	Kind() string
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

type stackLiner interface {
	StackLines() []string
}

// ErrorKind returns the kind of err: the first Kind() found in its chain,
// RuntimeError for runtime panics, Panic for panics with a non-error value
// on an async goroutine, Error otherwise.
func ErrorKind(err error) string {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	var re runtime.Error
	if errors.As(err, &re) {
		return KindRuntimeError
	}
	var pe *async.PanicError
	if errors.As(err, &pe) {
		return KindPanic
	}
	return KindError
}

// PanicError is a recovered panic.
type PanicError struct {
	Value any
	stack []string
}

// NewPanicError wraps a recovered value together with the current goroutine stack.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, stack: splitLines(string(debug.Stack()))}
}

func (p *PanicError) Error() string {
	if err, ok := p.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(p.Value)
}

func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

// Kind delegates to the panicked error, if any.
func (p *PanicError) Kind() string {
	if err, ok := p.Value.(error); ok {
		return ErrorKind(err)
	}
	return KindPanic
}

func (p *PanicError) StackLines() []string {
	return p.stack
}

// NewErrorRecord converts a thrown value into its reportable form. Stack
// lines come from the innermost pkg/errors stack trace when present, or from
// the recovered goroutine stack for panics.
func NewErrorRecord(err error) *ErrorRecord {
	if err == nil {
		return nil
	}
	return &ErrorRecord{
		Name:    ErrorKind(err),
		Message: err.Error(),
		Stack:   StackLines(err),
	}
}

// StackLines extracts the stack trace carried by err, if any.
func StackLines(err error) []string {
	var innermost stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			innermost = st
		}
	}
	if innermost != nil {
		return splitLines(fmt.Sprintf("%+v", innermost.StackTrace()))
	}
	var sl stackLiner
	if errors.As(err, &sl) {
		return sl.StackLines()
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
