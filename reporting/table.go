package reporting

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-testcase/events"
	"github.com/ethereum-optimism/infra/op-testcase/types"
)

// contextRow is the tally of one root context
type contextRow struct {
	name     string
	start    time.Time
	duration time.Duration
	tests    int
	passed   int
	failed   int
	errors   int
	problems []types.Outcome
}

// TableReporter prints an end-of-suite summary table, one row per root context
type TableReporter struct {
	w         io.Writer
	title     string
	clock     clock.Clock
	showTests bool
	depth     int
	rows      []*contextRow
}

// NewTableReporter creates a table reporter. With showTests set, every test
// that did not pass is listed below its context.
func NewTableReporter(w io.Writer, title string, showTests bool) *TableReporter {
	return &TableReporter{
		w:         w,
		title:     title,
		clock:     clock.SystemClock,
		showTests: showTests,
	}
}

// WithClock sets the clock used for context durations
func (r *TableReporter) WithClock(c clock.Clock) *TableReporter {
	r.clock = c
	return r
}

// Listen subscribes the reporter to src and returns it
func (r *TableReporter) Listen(src events.Source) *TableReporter {
	src.On(events.ContextStart, func(ev events.Event) { r.contextStart(contextName(ev)) })
	src.On(events.ContextEnd, func(events.Event) { r.contextEnd() })
	for _, name := range []events.Name{events.TestSuccess, events.TestFailure, events.TestError, events.TestTimeout} {
		src.On(name, func(ev events.Event) { r.testDone(outcome(ev), name) })
	}
	src.On(events.SuiteEnd, func(ev events.Event) {
		// Writer errors are not actionable at this point
		_ = r.Render(ev.Summary)
	})
	return r
}

func (r *TableReporter) contextStart(name string) {
	if r.depth == 0 {
		r.rows = append(r.rows, &contextRow{name: name, start: r.clock.Now()})
	}
	r.depth++
}

func (r *TableReporter) contextEnd() {
	if r.depth == 0 {
		return
	}
	r.depth--
	if r.depth == 0 {
		row := r.rows[len(r.rows)-1]
		row.duration = r.clock.Now().Sub(row.start)
	}
}

func (r *TableReporter) testDone(o types.Outcome, name events.Name) {
	if len(r.rows) == 0 || r.depth == 0 {
		return
	}
	row := r.rows[len(r.rows)-1]
	row.tests++
	switch name {
	case events.TestSuccess:
		row.passed++
		return
	case events.TestError:
		row.errors++
	default:
		row.failed++
	}
	row.problems = append(row.problems, o)
}

// Render writes the table. summary may be nil, in which case the footer
// is computed from the rows.
func (r *TableReporter) Render(summary *types.Summary) error {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(r.title)

	t.AppendHeader(table.Row{
		"Context", "Duration", "Tests", "Passed", "Failed", "Errors", "Status",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Context", WidthMax: 200, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Errors", Align: text.AlignRight},
	})

	total := types.Summary{OK: true}
	var duration time.Duration
	for _, row := range r.rows {
		t.AppendRow(table.Row{
			row.name,
			formatDuration(row.duration),
			row.tests,
			row.passed,
			row.failed,
			row.errors,
			statusString(row.failed == 0 && row.errors == 0),
		})
		if r.showTests {
			for _, p := range row.problems {
				t.AppendRow(table.Row{
					fmt.Sprintf("└── %s", p.Test.Name),
					formatDuration(p.Elapsed),
					"", "", "", "",
					p.Error.String(),
				})
			}
		}
		total.Tests += row.tests
		total.Failures += row.failed
		total.Errors += row.errors
		duration += row.duration
	}
	if summary == nil {
		total.OK = total.Failures == 0 && total.Errors == 0
		total.Duration = duration
		summary = &total
	}

	if summary.OK {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		formatDuration(summary.Duration),
		summary.Tests,
		summary.Tests - summary.Failures - summary.Errors,
		summary.Failures,
		summary.Errors,
		statusString(summary.OK),
	})

	t.Render()
	_, err := r.w.Write(buf.Bytes())
	return err
}

func statusString(ok bool) string {
	if ok {
		return "✓ pass"
	}
	return "✗ fail"
}

// formatDuration renders d in seconds with one decimal digit
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
