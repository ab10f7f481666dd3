package testcase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/honeycombio/otel-config-go/otelconfig"

	"github.com/ethereum-optimism/infra/op-testcase/assertion"
	"github.com/ethereum-optimism/infra/op-testcase/metrics"
	"github.com/ethereum-optimism/infra/op-testcase/registry"
	"github.com/ethereum-optimism/infra/op-testcase/reporting"
	"github.com/ethereum-optimism/infra/op-testcase/runner"
	"github.com/ethereum-optimism/infra/op-testcase/service"
	"github.com/ethereum-optimism/infra/op-testcase/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

const AppName = "op-testcase"

// app implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &app{}

// app runs the selected registered contexts once and reports on them.
type app struct {
	config   *Config
	version  string
	registry *registry.Registry
	service  *service.Service
	stdout   io.Writer
	summary  *types.Summary

	running           atomic.Bool
	telemetryShutdown func()

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(config *Config, version string, reg *registry.Registry, shutdownCallback func(error)) (*app, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	config.Log.Debug("Creating app with config",
		"plan", config.PlanName,
		"filters", config.Filters,
		"xmlOut", config.XMLOut,
		"testTimeout", config.TestTimeout)

	return &app{
		config:           config,
		version:          version,
		registry:         reg,
		service:          service.New(config.Service),
		stdout:           os.Stdout,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the suite once.
// Start implements the cliapp.Lifecycle interface.
func (a *app) Start(ctx context.Context) error {
	a.running.Store(true)

	if a.config.TelemetryEnabled {
		shutdown, err := otelconfig.ConfigureOpenTelemetry(
			otelconfig.WithServiceName(AppName),
			otelconfig.WithServiceVersion(a.version),
		)
		if err != nil {
			return NewRuntimeError(StageTelemetry, fmt.Errorf("failed to setup open telemetry: %w", err))
		}
		a.telemetryShutdown = shutdown
	}

	if err := a.service.Start(); err != nil {
		return NewRuntimeError(StageService, err)
	}
	a.service.Healthz.SetStatus("running")
	defer a.service.Healthz.SetStatus("done")

	if err := a.runSuite(ctx); err != nil {
		a.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	if !a.summary.OK {
		a.config.Log.Warn("Test run completed with failures, returning exit code 1")
		return NewTestFailureError(a.summary)
	}

	a.config.Log.Info("Tests completed, exiting")
	go func() {
		a.shutdownCallback(nil)
	}()
	return nil
}

// runSuite selects the contexts, wires the reporters and runs the suite
func (a *app) runSuite(ctx context.Context) error {
	roots, err := a.registry.Select(a.config.Filters)
	if err != nil {
		return NewRuntimeError(StageSelect, err)
	}
	if len(roots) == 0 {
		return NewRuntimeError(StageSelect, errors.New("no contexts registered"))
	}

	engine := runner.NewEngine(runner.Config{
		Log:               a.config.Log,
		Counter:           assertion.Default,
		AssertionKind:     a.config.AssertionKind,
		AllowNoAssertions: !a.config.FailOnNoAssertions,
		TestTimeout:       a.config.TestTimeout,
	})

	xmlOut, closeXML, err := a.openXML()
	if err != nil {
		return NewRuntimeError(StageReport, err)
	}
	var xmlReporter *reporting.XMLReporter
	if xmlOut != nil {
		xmlReporter = reporting.NewXMLReporter(xmlOut, reporting.WithLogger(a.config.Log)).Listen(engine)
	}
	if a.config.Summary {
		title := fmt.Sprintf("Test Results (%s)", a.config.PlanName)
		reporting.NewTableReporter(a.stdout, title, a.config.ShowFailures).Listen(engine)
	}
	metrics.Listen(engine, a.config.PlanName)

	a.config.Log.Info("Running tests...", "contexts", len(roots))
	summary, runErr := engine.RunSuite(ctx, roots)
	closeErr := closeXML()

	if runErr != nil {
		metrics.RecordErrorDetails("run", runErr)
		return NewRuntimeError(StageRun, runErr)
	}
	if xmlReporter != nil && xmlReporter.Err() != nil {
		return NewRuntimeError(StageReport, xmlReporter.Err())
	}
	if closeErr != nil {
		return NewRuntimeError(StageReport, closeErr)
	}

	a.summary = summary
	a.config.Log.Info("Test run completed", "run_id", summary.RunID, "ok", summary.OK, "summary", summary.String())
	return nil
}

// openXML returns the XML sink, or nil when no report was requested
func (a *app) openXML() (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch a.config.XMLOut {
	case "":
		return nil, noop, nil
	case "-":
		return a.stdout, noop, nil
	}
	f, err := os.Create(a.config.XMLOut)
	if err != nil {
		return nil, noop, err
	}
	return f, f.Close, nil
}

// Stop stops the app.
// Stop implements the cliapp.Lifecycle interface.
func (a *app) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping op-testcase")

	if !a.running.Load() {
		a.config.Log.Debug("App already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)

	a.service.Shutdown()
	if a.telemetryShutdown != nil {
		a.telemetryShutdown()
	}

	a.config.Log.Info("op-testcase stopped successfully")
	return nil
}

// Stopped returns true if the app is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *app) Stopped() bool {
	return !a.running.Load()
}

// Summary returns the summary of the finished run, nil before it completes
func (a *app) Summary() *types.Summary {
	return a.summary
}
