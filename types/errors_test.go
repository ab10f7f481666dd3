package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testcase/assertion"
	"github.com/ethereum-optimism/infra/op-testcase/async"
)

type kindErr struct{ kind string }

func (k kindErr) Error() string { return "kinded" }
func (k kindErr) Kind() string  { return k.kind }

func recoverPanic(fn func()) (err *PanicError) {
	defer func() {
		if v := recover(); v != nil {
			err = NewPanicError(v)
		}
	}()
	fn()
	return nil
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "plain error", err: errors.New("x"), want: KindError},
		{name: "kinded", err: kindErr{kind: "TypeError"}, want: "TypeError"},
		{name: "wrapped kinded", err: fmt.Errorf("ctx: %w", kindErr{kind: "TypeError"}), want: "TypeError"},
		{name: "assertion", err: assertion.Errorf("nope"), want: assertion.Kind},
		{name: "non-error panic", err: &PanicError{Value: "boom"}, want: KindPanic},
		{name: "error panic", err: &PanicError{Value: kindErr{kind: "RangeError"}}, want: "RangeError"},
		{name: "async non-error panic", err: &async.PanicError{Value: "boom"}, want: KindPanic},
		{name: "async assertion panic", err: &async.PanicError{Value: assertion.Errorf("nope")}, want: assertion.Kind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestErrorKind_RuntimePanic(t *testing.T) {
	err := recoverPanic(func() {
		var m map[string]int
		m["x"] = 1
	})
	require.NotNil(t, err)
	assert.Equal(t, KindRuntimeError, ErrorKind(err))
	assert.NotEmpty(t, err.StackLines())
}

func TestNewErrorRecord(t *testing.T) {
	assert.Nil(t, NewErrorRecord(nil))

	rec := NewErrorRecord(errors.New("plain"))
	assert.Equal(t, &ErrorRecord{Name: "Error", Message: "plain"}, rec)

	rec = NewErrorRecord(pkgerrors.New("with stack"))
	assert.Equal(t, "Error", rec.Name)
	assert.Equal(t, "with stack", rec.Message)
	require.NotEmpty(t, rec.Stack)
	assert.Contains(t, rec.Stack[0], "TestNewErrorRecord")
	for _, line := range rec.Stack {
		assert.Equal(t, strings.TrimSpace(line), line, "lines are trimmed")
		assert.NotContains(t, line, "\n")
	}
}

func TestNewErrorRecord_PanicValue(t *testing.T) {
	err := recoverPanic(func() { panic("kaboom") })

	rec := NewErrorRecord(err)
	assert.Equal(t, KindPanic, rec.Name)
	assert.Equal(t, "kaboom", rec.Message)
	assert.NotEmpty(t, rec.Stack)
}

func TestNewErrorRecord_PrefersInnermostStack(t *testing.T) {
	inner := assertion.Errorf("deep")
	err := pkgerrors.Wrap(inner, "outer")

	lines := StackLines(err)
	require.NotEmpty(t, lines)
	assert.Equal(t, StackLines(inner), lines)
}

func TestErrorRecord_String(t *testing.T) {
	var nilRec *ErrorRecord
	assert.Equal(t, "", nilRec.String())
	assert.Equal(t, "TypeError", (&ErrorRecord{Name: "TypeError"}).String())
	assert.Equal(t, "TypeError: bad", (&ErrorRecord{Name: "TypeError", Message: "bad"}).String())
}

func TestSummary_Add(t *testing.T) {
	s := &Summary{}
	s.Add(Outcome{Status: TestStatusSuccess, Assertions: 2})
	assert.True(t, s.OK)

	s.Add(Outcome{Status: TestStatusFailure, Assertions: 5})
	s.Add(Outcome{Status: TestStatusTimeout})
	s.Add(Outcome{Status: TestStatusError})

	assert.Equal(t, 4, s.Tests)
	assert.Equal(t, 2, s.Failures)
	assert.Equal(t, 1, s.Timeouts)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 2, s.Assertions)
	assert.False(t, s.OK)
	assert.True(t, TestStatusTimeout.IsFailure())
	assert.False(t, TestStatusError.IsFailure())
}
