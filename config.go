package testcase

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-testcase/flags"
	"github.com/ethereum-optimism/infra/op-testcase/registry"
	"github.com/ethereum-optimism/infra/op-testcase/service"
	"github.com/ethereum/go-ethereum/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// Config holds the application configuration
type Config struct {
	PlanName           string        // Label for reports and metrics, taken from the plan
	PlanFile           string        // Absolute path of the plan, empty without one
	Filters            []string      // Root context globs, plan contexts first
	XMLOut             string        // XML report destination, "-" for stdout, empty to disable
	Summary            bool          // Print a summary table at the end of the suite
	ShowFailures       bool          // List failing tests in the summary table
	FailOnNoAssertions bool          // Fail tests that run no assertion
	AssertionKind      string        // Error kind classified as failure
	TestTimeout        time.Duration // Timeout for each test body, 0 disables it
	TelemetryEnabled   bool          // Export OpenTelemetry traces
	Service            service.Config
	Log                log.Logger
}

// NewConfig creates a new Config from cli context. Flags set explicitly on
// the command line win over values from the plan.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}
	svcCfg := service.DefaultConfig()
	svcCfg.Log = log
	svcCfg.HealthzEnabled = ctx.Bool(flags.HealthzEnabled.Name)
	svcCfg.HealthzAddr = ctx.String(flags.HealthzAddr.Name)
	svcCfg.MetricsEnabled = metricsCfg.Enabled
	svcCfg.MetricsAddr = fmt.Sprintf("%s:%d", metricsCfg.ListenAddr, metricsCfg.ListenPort)

	cfg := &Config{
		PlanName:           "default",
		XMLOut:             ctx.String(flags.XMLOut.Name),
		Summary:            ctx.Bool(flags.Summary.Name),
		ShowFailures:       ctx.Bool(flags.ShowFailures.Name),
		FailOnNoAssertions: ctx.Bool(flags.FailOnNoAssertions.Name),
		AssertionKind:      ctx.String(flags.AssertionKind.Name),
		TestTimeout:        ctx.Duration(flags.TestTimeout.Name),
		TelemetryEnabled:   ctx.Bool(flags.TelemetryEnabled.Name),
		Service:            svcCfg,
		Log:                log,
	}

	if planFile := ctx.String(flags.Plan.Name); planFile != "" {
		absPlan, err := filepath.Abs(planFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for plan '%s': %w", planFile, err)
		}
		plan, err := registry.LoadPlan(absPlan)
		if err != nil {
			return nil, fmt.Errorf("failed to load plan: %w", err)
		}
		cfg.PlanFile = absPlan
		cfg.applyPlan(ctx, plan)
	}
	cfg.Filters = append(cfg.Filters, ctx.StringSlice(flags.Filter.Name)...)

	return cfg, nil
}

func (c *Config) applyPlan(ctx *cli.Context, plan *registry.Plan) {
	if plan.Name != "" {
		c.PlanName = plan.Name
	}
	c.Filters = append(c.Filters, plan.Contexts...)
	if plan.FailOnNoAssertions != nil && !ctx.IsSet(flags.FailOnNoAssertions.Name) {
		c.FailOnNoAssertions = *plan.FailOnNoAssertions
	}
	if plan.AssertionKind != "" && !ctx.IsSet(flags.AssertionKind.Name) {
		c.AssertionKind = plan.AssertionKind
	}
	if plan.TestTimeout != 0 && !ctx.IsSet(flags.TestTimeout.Name) {
		c.TestTimeout = plan.TestTimeout
	}
}
