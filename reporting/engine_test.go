package reporting_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/clock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testcase/assertion"
	"github.com/ethereum-optimism/infra/op-testcase/reporting"
	"github.com/ethereum-optimism/infra/op-testcase/runner"
	"github.com/ethereum-optimism/infra/op-testcase/types"
)

func buildTree() *types.Context {
	pass := func(c *types.Case) error {
		c.Assert().True(true)
		return nil
	}
	return types.Describe("Context").
		Test("#1", pass).
		Test("#2", func(*types.Case) error { return errors.New("generic") }).
		Context(types.Describe("Nested").Test("#3", pass)).
		Build()
}

func runWithXML(t *testing.T, root *types.Context) string {
	t.Helper()
	var out bytes.Buffer
	clk := clock.NewDeterministicClock(time.Unix(0, 0))
	logger := log.NewLogger(log.DiscardHandler())

	engine := runner.NewEngine(runner.Config{Log: logger, Counter: &assertion.Counter{}, Clock: clk})
	xml := reporting.NewXMLReporter(&out, reporting.WithClock(clk), reporting.WithLogger(logger)).Listen(engine)

	_, err := engine.RunSuite(context.Background(), []*types.Context{root})
	require.NoError(t, err)
	require.NoError(t, xml.Err())
	return out.String()
}

func TestXMLReporter_EngineRollUp(t *testing.T) {
	out := runWithXML(t, buildTree())

	assert.Contains(t, out, `<testsuite errors="1" tests="3" time="0.0" failures="0" name="Context">`)
	assert.NotContains(t, out, `<testsuite errors="0" tests="1" time="0.0" failures="0" name="Nested">`)
	assert.Contains(t, out, `<testcase time="0.0" name="Nested">`)
	assert.Contains(t, out, `<failure type="Error" message="generic">`)
}

func TestXMLReporter_RunIsIdempotent(t *testing.T) {
	first := runWithXML(t, buildTree())
	second := runWithXML(t, buildTree())
	assert.Equal(t, first, second)
}

func TestXMLReporter_SetUpAssertionFailure(t *testing.T) {
	root := types.Describe("Context").
		SetUp(func(c *types.Case) error {
			c.Assert().Fail("not ready")
			return nil
		}).
		Test("#1", func(c *types.Case) error {
			c.Assert().True(true)
			return nil
		}).
		Build()

	out := runWithXML(t, root)
	assert.Contains(t, out, `<testsuite errors="0" tests="1" time="0.0" failures="1" name="Context">`)
	assert.Contains(t, out, `<failure type="AssertionError" message="not ready">`)
}
