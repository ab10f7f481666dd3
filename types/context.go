package types

import (
	"github.com/ethereum-optimism/infra/op-testcase/async"
)

// Func is a synchronous fixture or test body. Returning a non-nil error or
// panicking counts as a thrown value.
type Func func(c *Case) error

// AsyncFunc is a fixture or test body that completes when the returned future
// settles. A nil future means the step completed synchronously.
type AsyncFunc func(c *Case) *async.Future

// Step is the engine-facing form of every fixture and test body.
type Step func(c *Case) *async.Future

// Sync adapts a synchronous function into a Step.
func Sync(fn Func) Step {
	return func(c *Case) *async.Future {
		if err := fn(c); err != nil {
			return async.Rejected(err)
		}
		return nil
	}
}

// Async adapts an asynchronous function into a Step.
func Async(fn AsyncFunc) Step {
	return Step(fn)
}

// Test is a named test body declared on a context.
type Test struct {
	Name string
	Body Step
}

// Context is a node of the test tree. It is immutable once built.
type Context struct {
	name     string
	tests    []Test
	contexts []*Context
	setUp    Step
	tearDown Step
}

func (c *Context) Name() string {
	return c.name
}

// Tests returns the tests declared directly on c, in declaration order.
func (c *Context) Tests() []Test {
	out := make([]Test, len(c.tests))
	copy(out, c.tests)
	return out
}

// Contexts returns the child contexts of c, in declaration order.
func (c *Context) Contexts() []*Context {
	out := make([]*Context, len(c.contexts))
	copy(out, c.contexts)
	return out
}

// SetUp returns the context's own setUp fixture, or nil.
func (c *Context) SetUp() Step {
	return c.setUp
}

// TearDown returns the context's own tearDown fixture, or nil.
func (c *Context) TearDown() Step {
	return c.tearDown
}

// CountTests returns the number of tests in c and all of its descendants.
func (c *Context) CountTests() int {
	n := len(c.tests)
	for _, child := range c.contexts {
		n += child.CountTests()
	}
	return n
}

// Builder assembles a Context. Builders are not safe for concurrent use.
type Builder struct {
	name     string
	tests    []Test
	index    map[string]int
	children []*Builder
	setUp    Step
	tearDown Step
}

// Describe starts a new context named name.
func Describe(name string) *Builder {
	return &Builder{
		name:  name,
		index: make(map[string]int),
	}
}

// SetUp sets the context's setUp fixture.
func (b *Builder) SetUp(fn Func) *Builder {
	b.setUp = Sync(fn)
	return b
}

// AsyncSetUp sets an asynchronous setUp fixture.
func (b *Builder) AsyncSetUp(fn AsyncFunc) *Builder {
	b.setUp = Async(fn)
	return b
}

// TearDown sets the context's tearDown fixture.
func (b *Builder) TearDown(fn Func) *Builder {
	b.tearDown = Sync(fn)
	return b
}

// AsyncTearDown sets an asynchronous tearDown fixture.
func (b *Builder) AsyncTearDown(fn AsyncFunc) *Builder {
	b.tearDown = Async(fn)
	return b
}

// Test declares a test. Declaring an existing name replaces its body but
// keeps its original position.
func (b *Builder) Test(name string, fn Func) *Builder {
	return b.step(name, Sync(fn))
}

// AsyncTest declares an asynchronous test.
func (b *Builder) AsyncTest(name string, fn AsyncFunc) *Builder {
	return b.step(name, Async(fn))
}

func (b *Builder) step(name string, body Step) *Builder {
	if i, ok := b.index[name]; ok {
		b.tests[i].Body = body
		return b
	}
	b.index[name] = len(b.tests)
	b.tests = append(b.tests, Test{Name: name, Body: body})
	return b
}

// Context appends child contexts.
func (b *Builder) Context(children ...*Builder) *Builder {
	b.children = append(b.children, children...)
	return b
}

// Build returns an immutable snapshot of the context tree. The builder can
// keep being modified afterwards without affecting built contexts.
func (b *Builder) Build() *Context {
	c := &Context{
		name:     b.name,
		tests:    make([]Test, len(b.tests)),
		contexts: make([]*Context, 0, len(b.children)),
		setUp:    b.setUp,
		tearDown: b.tearDown,
	}
	copy(c.tests, b.tests)
	for _, child := range b.children {
		c.contexts = append(c.contexts, child.Build())
	}
	return c
}
