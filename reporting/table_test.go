package reporting

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testcase/events"
	"github.com/ethereum-optimism/infra/op-testcase/types"
)

func emitTest(bus *events.Bus, name events.Name, test string, rec *types.ErrorRecord) {
	desc := &types.TestDescriptor{Name: test}
	bus.Emit(events.Event{Name: name, Test: desc, Outcome: &types.Outcome{Test: *desc, Error: rec}})
}

func TestTableReporter_RendersOnSuiteEnd(t *testing.T) {
	var out bytes.Buffer
	clk := clock.NewDeterministicClock(time.Unix(0, 0))
	bus := events.NewBus()
	NewTableReporter(&out, "Results", true).WithClock(clk).Listen(bus)

	parser := types.Describe("Parser").Build()
	nested := types.Describe("Nested").Build()
	lexer := types.Describe("Lexer").Build()

	bus.Emit(events.Event{Name: events.SuiteStart})
	bus.Emit(events.Event{Name: events.ContextStart, Context: parser})
	emitTest(bus, events.TestSuccess, "parses", nil)
	bus.Emit(events.Event{Name: events.ContextStart, Context: nested})
	emitTest(bus, events.TestFailure, "rejects junk", &types.ErrorRecord{Name: "AssertionError", Message: "expected error"})
	bus.Emit(events.Event{Name: events.ContextEnd, Context: nested})
	clk.AdvanceTime(1500 * time.Millisecond)
	bus.Emit(events.Event{Name: events.ContextEnd, Context: parser})
	bus.Emit(events.Event{Name: events.ContextStart, Context: lexer})
	emitTest(bus, events.TestError, "tokens", &types.ErrorRecord{Name: "Panic", Message: "boom"})
	bus.Emit(events.Event{Name: events.ContextEnd, Context: lexer})

	assert.Empty(t, out.String(), "nothing is printed before suite:end")
	bus.Emit(events.Event{Name: events.SuiteEnd, Summary: &types.Summary{Tests: 3, Failures: 1, Errors: 1}})

	s := out.String()
	assert.Contains(t, s, "Results")
	assert.Contains(t, s, "Parser")
	assert.Contains(t, s, "Lexer")
	assert.NotContains(t, s, "Nested", "only root contexts get a row")
	assert.Contains(t, s, "1.5s")
	assert.Contains(t, s, "└── rejects junk")
	assert.Contains(t, s, "AssertionError: expected error")
	assert.Contains(t, s, "Panic: boom")
	assert.Contains(t, s, "TOTAL")
	assert.Contains(t, s, "✗ fail")
}

func TestTableReporter_RenderWithoutSummary(t *testing.T) {
	var out bytes.Buffer
	bus := events.NewBus()
	r := NewTableReporter(&out, "", false).Listen(bus)

	ctx := types.Describe("Only").Build()
	bus.Emit(events.Event{Name: events.ContextStart, Context: ctx})
	emitTest(bus, events.TestSuccess, "ok", nil)
	bus.Emit(events.Event{Name: events.ContextEnd, Context: ctx})

	require.NoError(t, r.Render(nil))
	assert.Contains(t, out.String(), "Only")
	assert.Contains(t, out.String(), "✓ pass")
	assert.NotContains(t, out.String(), "✗ fail")
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestTableReporter_RenderError(t *testing.T) {
	r := NewTableReporter(errWriter{}, "", false)
	assert.EqualError(t, r.Render(nil), "closed")
}
