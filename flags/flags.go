package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_TESTCASE"

var (
	Plan = &cli.StringFlag{
		Name:    "plan",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLAN"),
		Usage:   "Path to a YAML run plan (eg. 'plan.yaml')",
	}
	Filter = &cli.StringSliceFlag{
		Name:    "filter",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FILTER"),
		Usage:   "Glob over root context names selecting what to run. Repeatable, adds to the plan's contexts",
	}
	XMLOut = &cli.StringFlag{
		Name:    "xml-out",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "XML_OUT"),
		Usage:   "Write a JUnit-style XML report to this file. Use '-' for stdout",
	}
	Summary = &cli.BoolFlag{
		Name:    "summary",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUMMARY"),
		Usage:   "Print a summary table when the suite ends",
	}
	ShowFailures = &cli.BoolFlag{
		Name:    "show-failures",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_FAILURES"),
		Usage:   "List failing tests in the summary table",
	}
	FailOnNoAssertions = &cli.BoolFlag{
		Name:    "fail-on-no-assertions",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FAIL_ON_NO_ASSERTIONS"),
		Usage:   "Fail tests that finish without running any assertion",
	}
	AssertionKind = &cli.StringFlag{
		Name:    "assertion-kind",
		Value:   "AssertionError",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ASSERTION_KIND"),
		Usage:   "Error kind classified as an assertion failure rather than an error",
	}
	TestTimeout = &cli.DurationFlag{
		Name:    "test-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_TIMEOUT"),
		Usage:   "Timeout for each test body (e.g. '30s'). Set to 0 or omit to disable",
	}
	HealthzEnabled = &cli.BoolFlag{
		Name:    "healthz.enabled",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ENABLED"),
		Usage:   "Serve /healthz while the suite runs",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "0.0.0.0:8080",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Listen address of the healthz server",
	}
	TelemetryEnabled = &cli.BoolFlag{
		Name:    "telemetry.enabled",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TELEMETRY_ENABLED"),
		Usage:   "Export OpenTelemetry traces, configured through the standard OTEL_* environment",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Plan,
	Filter,
	XMLOut,
	Summary,
	ShowFailures,
	FailOnNoAssertions,
	AssertionKind,
	TestTimeout,
	HealthzEnabled,
	HealthzAddr,
	TelemetryEnabled,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
