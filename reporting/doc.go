// Package reporting turns engine events into reports: a streaming JUnit-style
// XML document and an end-of-suite summary table.
package reporting
