package types

import (
	"github.com/ethereum-optimism/infra/op-testcase/assertion"
)

// Case is the per-test receiver shared by a test's setUp chain, body and
// tearDown chain. A new Case is created for every test run and dropped after
// its tearDown chain completes.
type Case struct {
	name     string
	assert   *assertion.Assertions
	expected *int
	state    map[string]any
}

// NewCase creates the receiver for test name. a may be nil.
func NewCase(name string, a *assertion.Assertions) *Case {
	if a == nil {
		a = assertion.New(nil)
	}
	return &Case{
		name:   name,
		assert: a,
		state:  make(map[string]any),
	}
}

// Name returns the name of the test this case belongs to.
func (c *Case) Name() string {
	return c.name
}

// Assert returns the assertion helpers wired to the running engine's counter.
func (c *Case) Assert() *assertion.Assertions {
	return c.assert
}

// Set stores a value visible to the rest of this test's fixture chain.
func (c *Case) Set(key string, value any) {
	c.state[key] = value
}

// Get returns the value stored under key, or nil.
func (c *Case) Get(key string) any {
	return c.state[key]
}

// Lookup returns the value stored under key and whether it was set.
func (c *Case) Lookup(key string) (any, bool) {
	v, ok := c.state[key]
	return v, ok
}

// Expect declares how many assertions the test body must run.
func (c *Case) Expect(n int) {
	c.expected = &n
}

// ExpectedAssertions returns the declared assertion count, if any.
func (c *Case) ExpectedAssertions() (int, bool) {
	if c.expected == nil {
		return 0, false
	}
	return *c.expected, true
}
