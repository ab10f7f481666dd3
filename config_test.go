package testcase

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-testcase/flags"
)

func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg *Config
		err error
	)
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, err = NewConfig(ctx, log.NewLogger(log.DiscardHandler()))
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{AppName}, args...)))
	return cfg, err
}

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(t)
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.PlanName)
	assert.Empty(t, cfg.Filters)
	assert.Empty(t, cfg.XMLOut)
	assert.True(t, cfg.Summary)
	assert.True(t, cfg.FailOnNoAssertions)
	assert.Equal(t, "AssertionError", cfg.AssertionKind)
	assert.Zero(t, cfg.TestTimeout)
	assert.False(t, cfg.Service.HealthzEnabled)
	assert.False(t, cfg.Service.MetricsEnabled)
}

func TestNewConfig_Flags(t *testing.T) {
	cfg, err := parseConfig(t,
		"--filter", "Parser*", "--filter", "Lexer",
		"--xml-out", "-",
		"--fail-on-no-assertions=false",
		"--test-timeout", "2s",
		"--healthz.enabled",
		"--metrics.enabled", "--metrics.port", "9000",
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Parser*", "Lexer"}, cfg.Filters)
	assert.Equal(t, "-", cfg.XMLOut)
	assert.False(t, cfg.FailOnNoAssertions)
	assert.Equal(t, 2*time.Second, cfg.TestTimeout)
	assert.True(t, cfg.Service.HealthzEnabled)
	assert.True(t, cfg.Service.MetricsEnabled)
	assert.Equal(t, "0.0.0.0:9000", cfg.Service.MetricsAddr)
}

func TestNewConfig_Plan(t *testing.T) {
	path := writePlan(t, `
name: nightly
fail_on_no_assertions: false
assertion_kind: CheckError
test_timeout: 10s
contexts: ["Parser*"]
`)

	cfg, err := parseConfig(t, "--plan", path, "--filter", "Lexer", "--test-timeout", "1s")
	require.NoError(t, err)

	assert.Equal(t, "nightly", cfg.PlanName)
	assert.Equal(t, path, cfg.PlanFile)
	assert.Equal(t, []string{"Parser*", "Lexer"}, cfg.Filters)
	assert.False(t, cfg.FailOnNoAssertions)
	assert.Equal(t, "CheckError", cfg.AssertionKind)
	assert.Equal(t, time.Second, cfg.TestTimeout, "explicit flag wins over plan")
}

func TestNewConfig_InvalidPlan(t *testing.T) {
	path := writePlan(t, "name: nightly\nworkers: 4\n")

	_, err := parseConfig(t, "--plan", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load plan")

	_, err = parseConfig(t, "--plan", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
