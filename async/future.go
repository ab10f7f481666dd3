// Package async provides a minimal future type used to suspend the test engine
// at fixture and test boundaries.
//
// A Future is either pending or settled with a value or an error. Settling is
// done through the Deferred that owns the future and happens at most once.
// Awaiting is explicit: nothing in this package schedules work on its own.
package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
)

// ErrRejected is used as the rejection reason when a future is rejected with a nil error.
var ErrRejected = errors.New("future rejected")

// Future is the read side of an asynchronous result.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// Deferred is the write side of a Future.
type Deferred struct {
	future *Future
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// NewDeferred creates a Deferred holding a pending future.
func NewDeferred() *Deferred {
	return &Deferred{future: newFuture()}
}

// Future returns the future controlled by d.
func (d *Deferred) Future() *Future {
	return d.future
}

// Resolve settles the future with v. It returns false if the future was already settled.
func (d *Deferred) Resolve(v any) bool {
	return d.future.settle(v, nil)
}

// Reject settles the future with err. It returns false if the future was already settled.
func (d *Deferred) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	return d.future.settle(nil, err)
}

func (f *Future) settle(v any, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		settled = true
		close(f.done)
	})
	return settled
}

// Resolved returns a future already settled with v.
func Resolved(v any) *Future {
	f := newFuture()
	f.settle(v, nil)
	return f
}

// Rejected returns a future already settled with err.
func Rejected(err error) *Future {
	if err == nil {
		err = ErrRejected
	}
	f := newFuture()
	f.settle(nil, err)
	return f
}

// PanicError is the rejection reason of a future whose function panicked.
type PanicError struct {
	Value any
	stack []string
}

func newPanicError(v any) *PanicError {
	var lines []string
	for _, line := range strings.Split(string(debug.Stack()), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return &PanicError{Value: v, stack: lines}
}

func (p *PanicError) Error() string {
	if err, ok := p.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(p.Value)
}

// Unwrap returns the panicked value when it is an error.
func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

// StackLines returns the stack of the panicking goroutine.
func (p *PanicError) StackLines() []string {
	return p.stack
}

// Go runs fn on a new goroutine and returns a future settled with its result.
// A panic in fn rejects the future with a *PanicError.
func Go(fn func() (any, error)) *Future {
	d := NewDeferred()
	go func() {
		defer func() {
			if v := recover(); v != nil {
				d.Reject(newPanicError(v))
			}
		}()
		v, err := fn()
		if err != nil {
			d.Reject(err)
			return
		}
		d.Resolve(v)
	}()
	return d.Future()
}

// Done returns a channel closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error. Both are zero while the future is pending.
func (f *Future) Result() (any, error) {
	if !f.Settled() {
		return nil, nil
	}
	return f.value, f.err
}

// Await blocks until the future settles or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
