// Package events is the synchronous publish/subscribe channel between the
// test engine and its reporters.
package events

import (
	"sync"

	"github.com/ethereum-optimism/infra/op-testcase/types"
)

// Name identifies a lifecycle event
type Name string

const (
	SuiteStart   Name = "suite:start"
	SuiteEnd     Name = "suite:end"
	ContextStart Name = "context:start"
	ContextEnd   Name = "context:end"
	TestSetUp    Name = "test:setUp"
	TestStart    Name = "test:start"
	TestTearDown Name = "test:tearDown"
	TestSuccess  Name = "test:success"
	TestFailure  Name = "test:failure"
	TestError    Name = "test:error"
	TestTimeout  Name = "test:timeout"
)

// TerminalFor returns the terminal event published for a test status.
func TerminalFor(status types.TestStatus) Name {
	switch status {
	case types.TestStatusSuccess:
		return TestSuccess
	case types.TestStatusFailure:
		return TestFailure
	case types.TestStatusTimeout:
		return TestTimeout
	default:
		return TestError
	}
}

// Event is the payload delivered to handlers. Which fields are set depends on Name:
// context events carry Context, test events carry Test, terminal test events
// also carry Outcome, and suite:end carries Summary.
type Event struct {
	Name    Name
	Context *types.Context
	Test    *types.TestDescriptor
	Outcome *types.Outcome
	Summary *types.Summary
}

// Handler receives events.
type Handler func(Event)

// Source is anything handlers can subscribe to.
type Source interface {
	On(name Name, h Handler)
}

var _ Source = (*Bus)(nil)

// Bus maps event names to ordered handler lists. Emit invokes handlers
// synchronously, in registration order, on the emitting goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[Name][]Handler)}
}

// On subscribes h to events named name.
func (b *Bus) On(name Name, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Emit publishes ev to every handler subscribed to ev.Name.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	handlers := b.handlers[ev.Name]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Listeners returns the number of handlers subscribed to name.
func (b *Bus) Listeners(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}
