package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-testcase/events"
	"github.com/ethereum-optimism/infra/op-testcase/types"
)

const (
	MetricsNamespace = "testcase"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusSuccess, types.TestStatusFailure, types.TestStatusError, types.TestStatusTimeout}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of finished tests",
	}, []string{
		"plan",
		"context",
		"result",
	})

	assertionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "assertions_total",
		Help:      "Count of assertions run by passing tests",
	}, []string{
		"plan",
	})

	suiteResult = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_result",
		Help:      "Result of the last suite, 1 if every test passed",
	}, []string{
		"plan",
	})

	suiteTests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_tests",
		Help:      "Test counts of the last suite by result",
	}, []string{
		"plan",
		"result",
	})

	suiteDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_duration_seconds",
		Help:      "Duration of the last suite",
	}, []string{
		"plan",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordTest(plan string, context string, o types.Outcome) {
	if !isValidResult(o.Status) {
		log.Error("RecordTest - invalid result", "result", o.Status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"plan", plan,
			"context", context,
			"test", o.Test.Name,
			"result", o.Status)
	}
	testsTotal.WithLabelValues(plan, context, string(o.Status)).Inc()
	if o.Status == types.TestStatusSuccess {
		assertionsTotal.WithLabelValues(plan).Add(float64(o.Assertions))
	}
}

func RecordSuite(plan string, s *types.Summary) {
	if s == nil {
		return
	}
	result := 0.0
	if s.OK {
		result = 1
	}
	suiteResult.WithLabelValues(plan).Set(result)
	suiteTests.WithLabelValues(plan, "total").Set(float64(s.Tests))
	suiteTests.WithLabelValues(plan, "passed").Set(float64(s.Tests - s.Failures - s.Errors))
	suiteTests.WithLabelValues(plan, "failed").Set(float64(s.Failures))
	suiteTests.WithLabelValues(plan, "errored").Set(float64(s.Errors))
	suiteTests.WithLabelValues(plan, "timed_out").Set(float64(s.Timeouts))
	suiteDuration.WithLabelValues(plan).Set(s.Duration.Seconds())
}

// Listen records test and suite metrics for every run published on src.
// Tests are labelled with the root context they belong to.
func Listen(src events.Source, plan string) {
	var stack []string
	src.On(events.ContextStart, func(ev events.Event) {
		if ev.Context != nil {
			stack = append(stack, ev.Context.Name())
		}
	})
	src.On(events.ContextEnd, func(ev events.Event) {
		if ev.Context != nil && len(stack) > 0 {
			stack = stack[:len(stack)-1]
		}
	})
	for _, name := range []events.Name{events.TestSuccess, events.TestFailure, events.TestError, events.TestTimeout} {
		src.On(name, func(ev events.Event) {
			if ev.Outcome == nil {
				return
			}
			root := ""
			if len(stack) > 0 {
				root = stack[0]
			}
			RecordTest(plan, root, *ev.Outcome)
		})
	}
	src.On(events.SuiteEnd, func(ev events.Event) {
		RecordSuite(plan, ev.Summary)
	})
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
