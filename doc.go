// Package testcase wires the test engine into a run-once command line
// application: it loads the run plan, selects registered contexts, runs them
// and writes the XML report, summary table and metrics.
package testcase
