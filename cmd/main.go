package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	testcase "github.com/ethereum-optimism/infra/op-testcase"
	"github.com/ethereum-optimism/infra/op-testcase/flags"
	"github.com/ethereum-optimism/infra/op-testcase/registry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = testcase.AppName
	app.Usage = "Test context runner"
	app.Description = "op-testcase runs registered test contexts and reports on them"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), testcase.ExitCode(err)))
		}
	}

	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := testcase.NewConfig(ctx, log)
	if err != nil {
		return nil, testcase.NewRuntimeError(testcase.StageConfig, err)
	}

	cfg.Log.Debug("Config", "config", cfg)

	app, err := testcase.New(cfg, Version, registry.Default, closeApp)
	if err != nil {
		return nil, testcase.NewRuntimeError(testcase.StageConfig, fmt.Errorf("failed to create app: %w", err))
	}
	return app, nil
}
