package runner

// Engine constants
const (
	// TracerName is the OpenTelemetry tracer used for context and test spans
	TracerName = "test engine"

	// Assertion-count policy failure messages
	NoAssertionsMessage       = "Expected assertions but none were run"
	AssertionMismatchTemplate = "Expected %d assertions, ran %d"

	// KindTimeout is the error kind reported for timed out test bodies
	KindTimeout = "TimeoutError"
)
