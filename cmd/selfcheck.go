package main

import (
	"errors"
	"time"

	"github.com/ethereum-optimism/infra/op-testcase/async"
	"github.com/ethereum-optimism/infra/op-testcase/registry"
	"github.com/ethereum-optimism/infra/op-testcase/types"
)

// The self-check contexts exercise the engine end to end when no other
// contexts are linked into the binary. Select them with --filter "selfcheck/**".
func init() {
	registry.MustRegister(fixturesContext())
	registry.MustRegister(asyncContext())
}

func fixturesContext() *types.Context {
	return types.Describe("selfcheck/fixtures").
		SetUp(func(c *types.Case) error {
			c.Set("calls", []string{"setUp"})
			return nil
		}).
		TearDown(func(c *types.Case) error {
			calls, _ := c.Get("calls").([]string)
			if len(calls) == 0 || calls[0] != "setUp" {
				return errors.New("tearDown saw no setUp")
			}
			return nil
		}).
		Test("setUp runs before the body", func(c *types.Case) error {
			c.Assert().Equal([]string{"setUp"}, c.Get("calls"))
			return nil
		}).
		Test("counts expected assertions", func(c *types.Case) error {
			c.Expect(2)
			c.Assert().NotEmpty(c.Name())
			c.Assert().True(c.Get("calls") != nil)
			return nil
		}).
		Context(types.Describe("nested").
			SetUp(func(c *types.Case) error {
				calls, _ := c.Get("calls").([]string)
				c.Set("calls", append(calls, "nested setUp"))
				return nil
			}).
			Test("outer setUp runs first", func(c *types.Case) error {
				c.Assert().Equal([]string{"setUp", "nested setUp"}, c.Get("calls"))
				return nil
			})).
		Build()
}

func asyncContext() *types.Context {
	return types.Describe("selfcheck/async").
		AsyncSetUp(func(c *types.Case) *async.Future {
			return async.Go(func() (any, error) {
				time.Sleep(time.Millisecond)
				return "ready", nil
			})
		}).
		AsyncTest("resolves on another goroutine", func(c *types.Case) *async.Future {
			d := async.NewDeferred()
			go func() {
				d.Resolve(42)
			}()
			c.Assert().NotNil(d.Future())
			return d.Future()
		}).
		AsyncTest("settled futures complete immediately", func(c *types.Case) *async.Future {
			f := async.Resolved("done")
			v, err := f.Result()
			c.Assert().NoError(err)
			c.Assert().Equal("done", v)
			return f
		}).
		Build()
}
