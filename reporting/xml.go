package reporting

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/optimism/op-service/clock"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-testcase/events"
	"github.com/ethereum-optimism/infra/op-testcase/types"
)

const (
	xmlProlog = `<?xml version="1.0" encoding="UTF-8" ?>`

	testcaseIndent = "    "
	failureIndent  = "        "
	stackIndent    = "            "
)

// frame holds the rolled-up counters of one open context
type frame struct {
	name     string
	tests    int
	failures int
	errors   int
	start    time.Time
	failed   bytes.Buffer // rendered <failure> elements of the context's own tests
}

// XMLReporter renders engine events as a JUnit-style XML stream. Each root
// context becomes a <testsuite>, and every context at any depth becomes a
// <testcase> inside it. Only the body of the currently open root suite is
// buffered, since its header carries the rolled-up totals.
type XMLReporter struct {
	w      io.Writer
	clock  clock.Clock
	log    log.Logger
	prolog bool
	frames []*frame
	body   bytes.Buffer
	err    error
}

// XMLOption configures an XMLReporter
type XMLOption func(*XMLReporter)

// WithClock sets the clock used for context timing
func WithClock(c clock.Clock) XMLOption {
	return func(r *XMLReporter) {
		r.clock = c
	}
}

// WithLogger sets the logger used to report write failures
func WithLogger(l log.Logger) XMLOption {
	return func(r *XMLReporter) {
		r.log = l
	}
}

// NewXMLReporter creates a reporter writing to w
func NewXMLReporter(w io.Writer, opts ...XMLOption) *XMLReporter {
	r := &XMLReporter{
		w:     w,
		clock: clock.SystemClock,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = log.New()
	}
	return r
}

// Listen subscribes the reporter to src and returns it
func (r *XMLReporter) Listen(src events.Source) *XMLReporter {
	src.On(events.SuiteStart, func(events.Event) { r.SuiteStart() })
	src.On(events.ContextStart, func(ev events.Event) { r.ContextStart(contextName(ev)) })
	src.On(events.ContextEnd, func(ev events.Event) { r.ContextEnd(contextName(ev)) })
	src.On(events.TestSuccess, func(ev events.Event) { r.TestSuccess(outcome(ev)) })
	src.On(events.TestFailure, func(ev events.Event) { r.TestFailure(outcome(ev)) })
	src.On(events.TestError, func(ev events.Event) { r.TestError(outcome(ev)) })
	src.On(events.TestTimeout, func(ev events.Event) { r.TestTimeout(outcome(ev)) })
	return r
}

// Err returns the first error hit while writing to the sink
func (r *XMLReporter) Err() error {
	return r.err
}

// SuiteStart writes the XML prolog. Later calls do nothing.
func (r *XMLReporter) SuiteStart() {
	if r.prolog {
		return
	}
	r.prolog = true
	r.write([]byte(xmlProlog + "\n"))
}

// ContextStart opens a counter frame for the named context
func (r *XMLReporter) ContextStart(name string) {
	r.frames = append(r.frames, &frame{name: name, start: r.clock.Now()})
}

// ContextEnd closes the innermost frame, rendering its <testcase>. Closing a
// root frame writes the whole <testsuite> to the sink.
func (r *XMLReporter) ContextEnd(name string) {
	if len(r.frames) == 0 {
		r.log.Warn("Context end without matching start", "context", name)
		return
	}
	f := r.frames[len(r.frames)-1]
	r.frames = r.frames[:len(r.frames)-1]
	elapsed := formatSeconds(r.clock.Now().Sub(f.start))

	fmt.Fprintf(&r.body, "%s<testcase time=%q name=\"%s\">\n", testcaseIndent, elapsed, escape(f.name))
	f.failed.WriteTo(&r.body)
	fmt.Fprintf(&r.body, "%s</testcase>\n", testcaseIndent)

	if len(r.frames) > 0 {
		return
	}

	var suite bytes.Buffer
	fmt.Fprintf(&suite, "<testsuite errors=\"%d\" tests=\"%d\" time=%q failures=\"%d\" name=\"%s\">\n",
		f.errors, f.tests, elapsed, f.failures, escape(f.name))
	r.body.WriteTo(&suite)
	suite.WriteString("</testsuite>\n")
	r.write(suite.Bytes())
}

// TestSuccess counts a passing test
func (r *XMLReporter) TestSuccess(types.Outcome) {
	r.count(func(f *frame) { f.tests++ })
}

// TestFailure counts a failed test and records its failure element
func (r *XMLReporter) TestFailure(o types.Outcome) {
	r.count(func(f *frame) {
		f.tests++
		f.failures++
	})
	r.addFailure(o)
}

// TestError counts an errored test and records its failure element
func (r *XMLReporter) TestError(o types.Outcome) {
	r.count(func(f *frame) {
		f.tests++
		f.errors++
	})
	r.addFailure(o)
}

// TestTimeout is counted as a failure
func (r *XMLReporter) TestTimeout(o types.Outcome) {
	r.TestFailure(o)
}

// count applies inc to every open frame
func (r *XMLReporter) count(inc func(*frame)) {
	if len(r.frames) == 0 {
		r.log.Warn("Test result outside of any context")
		return
	}
	for _, f := range r.frames {
		inc(f)
	}
}

func (r *XMLReporter) addFailure(o types.Outcome) {
	if len(r.frames) == 0 {
		return
	}
	rec := o.Error
	if rec == nil {
		rec = &types.ErrorRecord{}
	}
	buf := &r.frames[len(r.frames)-1].failed
	fmt.Fprintf(buf, "%s<failure type=\"%s\" message=\"%s\">\n", failureIndent, escape(rec.Name), escape(rec.Message))
	for _, line := range rec.Stack {
		fmt.Fprintf(buf, "%s%s\n", stackIndent, escape(line))
	}
	fmt.Fprintf(buf, "%s</failure>\n", failureIndent)
}

func (r *XMLReporter) write(p []byte) {
	if r.err != nil {
		return
	}
	if _, err := r.w.Write(p); err != nil {
		r.err = fmt.Errorf("writing xml report: %w", err)
		r.log.Error("Failed to write XML report", "err", err)
	}
}

// formatSeconds renders d in seconds with one decimal digit, at millisecond resolution
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Milliseconds())/1000, 'f', 1, 64)
}

func escape(s string) string {
	var b strings.Builder
	// strings.Builder never returns a write error
	_ = xml.EscapeText(&b, []byte(stripansi.Strip(s)))
	return b.String()
}

func contextName(ev events.Event) string {
	if ev.Context == nil {
		return ""
	}
	return ev.Context.Name()
}

func outcome(ev events.Event) types.Outcome {
	if ev.Outcome != nil {
		return *ev.Outcome
	}
	if ev.Test != nil {
		return types.Outcome{Test: *ev.Test}
	}
	return types.Outcome{}
}
