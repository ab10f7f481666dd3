package reporting

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/clock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testcase/events"
	"github.com/ethereum-optimism/infra/op-testcase/types"
)

func newTestXMLReporter() (*XMLReporter, *bytes.Buffer, *clock.DeterministicClock) {
	var out bytes.Buffer
	clk := clock.NewDeterministicClock(time.Unix(1700000000, 0))
	r := NewXMLReporter(&out, WithClock(clk), WithLogger(log.NewLogger(log.DiscardHandler())))
	return r, &out, clk
}

func failed(kind, msg string, stack ...string) types.Outcome {
	return types.Outcome{
		Status: types.TestStatusFailure,
		Error:  &types.ErrorRecord{Name: kind, Message: msg, Stack: stack},
	}
}

func TestXMLReporter_PrologOnSuiteStart(t *testing.T) {
	r, out, _ := newTestXMLReporter()
	r.SuiteStart()
	r.SuiteStart()

	assert.Equal(t, "<?xml version=\"1.0\" encoding=\"UTF-8\" ?>\n", out.String())
}

func TestXMLReporter_TestsuiteOnContextEnd(t *testing.T) {
	r, out, _ := newTestXMLReporter()
	r.ContextStart("Context")
	r.ContextEnd("Context")

	assert.Equal(t, `<testsuite errors="0" tests="0" time="0.0" failures="0" name="Context">
    <testcase time="0.0" name="Context">
    </testcase>
</testsuite>
`, out.String())
}

func TestXMLReporter_SuiteTime(t *testing.T) {
	r, out, clk := newTestXMLReporter()
	r.ContextStart("Context")
	clk.AdvanceTime(100 * time.Millisecond)
	r.ContextEnd("Context")
	r.ContextStart("Context #2")
	clk.AdvanceTime(200 * time.Millisecond)
	r.ContextEnd("Context #2")

	assert.Contains(t, out.String(), `<testsuite errors="0" tests="0" time="0.1" failures="0" name="Context">`)
	assert.Contains(t, out.String(), `<testsuite errors="0" tests="0" time="0.2" failures="0" name="Context #2">`)
}

func TestXMLReporter_TestcaseTimePerContext(t *testing.T) {
	r, out, clk := newTestXMLReporter()
	r.ContextStart("Context")
	clk.AdvanceTime(100 * time.Millisecond)
	r.ContextStart("Context #2")
	clk.AdvanceTime(200 * time.Millisecond)
	r.ContextEnd("Context #2")
	r.ContextEnd("Context")

	assert.Equal(t, `<testsuite errors="0" tests="0" time="0.3" failures="0" name="Context">
    <testcase time="0.2" name="Context #2">
    </testcase>
    <testcase time="0.3" name="Context">
    </testcase>
</testsuite>
`, out.String())
}

func TestXMLReporter_Counts(t *testing.T) {
	r, out, _ := newTestXMLReporter()

	r.ContextStart("Context")
	r.TestSuccess(types.Outcome{})
	r.TestError(types.Outcome{})
	r.TestFailure(types.Outcome{})
	r.TestTimeout(types.Outcome{})
	r.ContextEnd("Context")

	assert.Contains(t, out.String(), `<testsuite errors="1" tests="4" time="0.0" failures="2" name="Context">`)
}

func TestXMLReporter_ResetsCountsPerRootContext(t *testing.T) {
	r, out, _ := newTestXMLReporter()

	r.ContextStart("Context")
	r.TestError(types.Outcome{})
	r.TestFailure(types.Outcome{})
	r.ContextEnd("Context")
	r.ContextStart("Context #2")
	r.TestFailure(types.Outcome{})
	r.TestFailure(types.Outcome{})
	r.TestError(types.Outcome{})
	r.TestError(types.Outcome{})
	r.ContextEnd("Context #2")

	assert.Contains(t, out.String(), `<testsuite errors="1" tests="2" time="0.0" failures="1" name="Context">`)
	assert.Contains(t, out.String(), `<testsuite errors="2" tests="4" time="0.0" failures="2" name="Context #2">`)
}

func TestXMLReporter_NestedContextsRollUp(t *testing.T) {
	r, out, _ := newTestXMLReporter()

	r.ContextStart("Context")
	r.TestFailure(types.Outcome{})
	r.TestError(types.Outcome{})
	r.ContextStart("Context #2")
	r.TestError(types.Outcome{})
	r.TestFailure(types.Outcome{})
	r.TestSuccess(types.Outcome{})
	r.ContextEnd("Context #2")
	r.ContextEnd("Context")

	assert.Contains(t, out.String(), `<testsuite errors="2" tests="5" time="0.0" failures="2" name="Context">`)
	assert.NotRegexp(t, regexp.MustCompile(`<testsuite[^>]+name="Context #2">`), out.String())
	assert.Contains(t, out.String(), `<testcase time="0.0" name="Context #2">`)
}

func TestXMLReporter_FailureElements(t *testing.T) {
	r, out, _ := newTestXMLReporter()

	r.ContextStart("Context")
	r.TestFailure(failed("AssertionError", "Expected no failure", "STACK", "STACK"))
	r.TestError(failed("TypeError", "#2", "stack"))
	r.ContextEnd("Context")

	assert.Equal(t, `<testsuite errors="1" tests="2" time="0.0" failures="1" name="Context">
    <testcase time="0.0" name="Context">
        <failure type="AssertionError" message="Expected no failure">
            STACK
            STACK
        </failure>
        <failure type="TypeError" message="#2">
            stack
        </failure>
    </testcase>
</testsuite>
`, out.String())
}

func TestXMLReporter_FailuresStayWithTheirContext(t *testing.T) {
	r, out, _ := newTestXMLReporter()

	r.ContextStart("outer")
	r.ContextStart("inner")
	r.TestFailure(failed("AssertionError", "deep"))
	r.ContextEnd("inner")
	r.TestTimeout(types.Outcome{Status: types.TestStatusTimeout, Error: &types.ErrorRecord{Name: "TimeoutError", Message: "Timed out after 1s"}})
	r.ContextEnd("outer")

	assert.Equal(t, `<testsuite errors="0" tests="2" time="0.0" failures="2" name="outer">
    <testcase time="0.0" name="inner">
        <failure type="AssertionError" message="deep">
        </failure>
    </testcase>
    <testcase time="0.0" name="outer">
        <failure type="TimeoutError" message="Timed out after 1s">
        </failure>
    </testcase>
</testsuite>
`, out.String())
}

func TestXMLReporter_EscapesAndStripsColour(t *testing.T) {
	r, out, _ := newTestXMLReporter()

	r.ContextStart(`a "quoted" <name> & co`)
	r.TestFailure(failed("AssertionError", "\x1b[31mexpected\x1b[0m <1>", "at x < y"))
	r.ContextEnd(`a "quoted" <name> & co`)

	s := out.String()
	assert.Contains(t, s, `name="a &#34;quoted&#34; &lt;name&gt; &amp; co"`)
	assert.Contains(t, s, `message="expected &lt;1&gt;"`)
	assert.Contains(t, s, "            at x &lt; y\n")
	assert.NotContains(t, s, "\x1b")
}

func TestXMLReporter_StreamsFinishedSuites(t *testing.T) {
	r, out, _ := newTestXMLReporter()

	r.ContextStart("first")
	r.ContextEnd("first")
	written := out.Len()
	require.NotZero(t, written)

	r.ContextStart("second")
	r.TestSuccess(types.Outcome{})
	assert.Equal(t, written, out.Len(), "open suite stays buffered")
	r.ContextEnd("second")
	assert.Greater(t, out.Len(), written)
}

func TestXMLReporter_UnbalancedEventsAreIgnored(t *testing.T) {
	r, out, _ := newTestXMLReporter()

	assert.NotPanics(t, func() {
		r.ContextEnd("ghost")
		r.TestFailure(failed("AssertionError", "orphan"))
	})
	assert.Empty(t, out.String())
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write([]byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

func TestXMLReporter_WriteErrorIsSticky(t *testing.T) {
	w := &failingWriter{}
	r := NewXMLReporter(w, WithLogger(log.NewLogger(log.DiscardHandler())))

	r.SuiteStart()
	r.ContextStart("c")
	r.ContextEnd("c")

	require.Error(t, r.Err())
	assert.Contains(t, r.Err().Error(), "disk full")
	assert.Equal(t, 1, w.calls)
}

func TestXMLReporter_Listen(t *testing.T) {
	r, out, _ := newTestXMLReporter()
	bus := events.NewBus()
	r.Listen(bus)

	ctx := types.Describe("Context").Build()
	desc := &types.TestDescriptor{Name: "#1", Context: "Context"}
	bus.Emit(events.Event{Name: events.SuiteStart})
	bus.Emit(events.Event{Name: events.ContextStart, Context: ctx})
	bus.Emit(events.Event{Name: events.TestSuccess, Test: desc, Outcome: &types.Outcome{Test: *desc}})
	bus.Emit(events.Event{Name: events.TestFailure, Test: desc})
	bus.Emit(events.Event{Name: events.TestError, Test: desc})
	bus.Emit(events.Event{Name: events.TestTimeout, Test: desc})
	bus.Emit(events.Event{Name: events.ContextEnd, Context: ctx})

	assert.Contains(t, out.String(), xmlProlog)
	assert.Contains(t, out.String(), `<testsuite errors="1" tests="4" time="0.0" failures="2" name="Context">`)
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0.0"},
		{100 * time.Millisecond, "0.1"},
		{1500 * time.Millisecond, "1.5"},
		{12 * time.Second, "12.0"},
		{999 * time.Microsecond, "0.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSeconds(tt.d), tt.d.String())
	}
}
