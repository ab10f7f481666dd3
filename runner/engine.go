package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/clock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-testcase/assertion"
	"github.com/ethereum-optimism/infra/op-testcase/async"
	"github.com/ethereum-optimism/infra/op-testcase/events"
	"github.com/ethereum-optimism/infra/op-testcase/types"
)

// ErrNoContext is returned when a run is requested without a context to run
var ErrNoContext = errors.New("no context to run")

// AssertionCounter is the counter the engine resets before each test body and
// reads after it. Counters that also implement assertion.Incrementer are
// handed to each Case so its assertions are counted.
type AssertionCounter interface {
	Count() int
	Reset()
}

// Config holds configuration for creating a new engine
type Config struct {
	Log               log.Logger
	Bus               *events.Bus      // Event bus, a new one is created if nil
	Counter           AssertionCounter // Defaults to assertion.Default
	AssertionKind     string           // Error kind classified as a failure, defaults to assertion.Kind
	AllowNoAssertions bool             // Whether a body may finish without running any assertion
	TestTimeout       time.Duration    // Limit for each test body, zero disables it
	Clock             clock.Clock
}

// Engine runs context trees and publishes their lifecycle on a bus
type Engine struct {
	log        log.Logger
	bus        *events.Bus
	counter    AssertionCounter
	classifier *Classifier
	timeout    time.Duration
	clock      clock.Clock
	tracer     trace.Tracer
}

// NewEngine creates a new engine instance
func NewEngine(cfg Config) *Engine {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.Counter == nil {
		cfg.Counter = assertion.Default
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.SystemClock
	}

	cfg.Log.Debug("NewEngine()", "assertionKind", cfg.AssertionKind,
		"allowNoAssertions", cfg.AllowNoAssertions, "testTimeout", cfg.TestTimeout)

	return &Engine{
		log:        cfg.Log,
		bus:        cfg.Bus,
		counter:    cfg.Counter,
		classifier: NewClassifier(cfg.AssertionKind, !cfg.AllowNoAssertions),
		timeout:    cfg.TestTimeout,
		clock:      cfg.Clock,
		tracer:     otel.Tracer(TracerName),
	}
}

// On subscribes h to the engine's events
func (e *Engine) On(name events.Name, h events.Handler) {
	e.bus.On(name, h)
}

// Bus returns the engine's event bus
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Run executes a single root context. No suite events are published.
// The returned error is only set when the run could not start or ctx was
// cancelled; failing tests are reported through the summary.
func (e *Engine) Run(ctx context.Context, root *types.Context) (*types.Summary, error) {
	if root == nil {
		return nil, ErrNoContext
	}
	s := e.newSession()
	err := s.runRoot(ctx, root)
	return s.finish(), err
}

// RunSuite executes the given root contexts in order, framed by suite:start
// and suite:end. The summary published with suite:end is also returned.
func (e *Engine) RunSuite(ctx context.Context, roots []*types.Context) (*types.Summary, error) {
	if err := validateRoots(roots); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "suite")
	defer span.End()

	s := e.newSession()
	s.log.Debug("Running suite", "run_id", s.summary.RunID, "contexts", len(roots))
	e.bus.Emit(events.Event{Name: events.SuiteStart})

	var err error
	for _, root := range roots {
		if err = s.runRoot(ctx, root); err != nil {
			break
		}
	}

	summary := s.finish()
	if !summary.OK {
		span.SetStatus(codes.Error, summary.String())
	}
	e.bus.Emit(events.Event{Name: events.SuiteEnd, Summary: summary})
	return summary, err
}

// RunAsync starts Run on its own goroutine. The future resolves with the
// *types.Summary, or rejects right away when there is nothing to run.
func (e *Engine) RunAsync(ctx context.Context, root *types.Context) *async.Future {
	if root == nil {
		return async.Rejected(ErrNoContext)
	}
	return async.Go(func() (any, error) {
		summary, err := e.Run(ctx, root)
		if err != nil {
			return nil, err
		}
		return summary, nil
	})
}

// RunSuiteAsync starts RunSuite on its own goroutine.
func (e *Engine) RunSuiteAsync(ctx context.Context, roots []*types.Context) *async.Future {
	if err := validateRoots(roots); err != nil {
		return async.Rejected(err)
	}
	return async.Go(func() (any, error) {
		summary, err := e.RunSuite(ctx, roots)
		if err != nil {
			return nil, err
		}
		return summary, nil
	})
}

func validateRoots(roots []*types.Context) error {
	if len(roots) == 0 {
		return ErrNoContext
	}
	for i, root := range roots {
		if root == nil {
			return fmt.Errorf("context %d: %w", i, ErrNoContext)
		}
	}
	return nil
}

// session holds the state of one blocking run
type session struct {
	*Engine
	summary types.Summary
	start   time.Time
}

func (e *Engine) newSession() *session {
	start := e.clock.Now()
	return &session{
		Engine: e,
		start:  start,
		summary: types.Summary{
			RunID:     uuid.New().String(),
			OK:        true,
			StartTime: start,
		},
	}
}

func (s *session) finish() *types.Summary {
	summary := s.summary
	summary.Duration = s.clock.Now().Sub(s.start)
	return &summary
}

func (s *session) runRoot(ctx context.Context, root *types.Context) error {
	s.summary.Contexts++
	if err := s.runContext(ctx, root, nil); err != nil {
		return fmt.Errorf("running context %q: %w", root.Name(), err)
	}
	return nil
}

// runContext runs c's own tests and then its children, depth-first. lineage
// holds the ancestors of c, outermost first. context:end is published even
// when ctx is cancelled part way.
func (s *session) runContext(ctx context.Context, c *types.Context, lineage []*types.Context) error {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("context %s", c.Name()))
	defer span.End()

	lineage = append(lineage[:len(lineage):len(lineage)], c)

	s.bus.Emit(events.Event{Name: events.ContextStart, Context: c})
	defer s.bus.Emit(events.Event{Name: events.ContextEnd, Context: c})

	for _, test := range c.Tests() {
		if err := ctx.Err(); err != nil {
			s.log.Warn("Run interrupted, skipping remaining tests", "context", c.Name(), "err", err)
			return err
		}
		s.runTest(ctx, lineage, test)
	}

	for _, child := range c.Contexts() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runContext(ctx, child, lineage); err != nil {
			return err
		}
	}
	return nil
}

// runTest executes the fixture chain of one test on a fresh Case and
// publishes exactly one terminal event for it.
func (s *session) runTest(ctx context.Context, lineage []*types.Context, test types.Test) types.Outcome {
	owner := lineage[len(lineage)-1]
	desc := types.TestDescriptor{Name: test.Name, Context: owner.Name()}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("test %s", test.Name))
	defer span.End()

	s.log.Debug("Running test", "context", owner.Name(), "test", test.Name)
	start := s.clock.Now()
	counter := s.caseCounter()
	tc := types.NewCase(test.Name, assertion.New(counter))

	var stages Stages
	stages.SetUp = s.runSetUps(ctx, lineage, tc)
	if stages.SetUp == nil {
		s.bus.Emit(events.Event{Name: events.TestSetUp, Test: &desc})
		s.bus.Emit(events.Event{Name: events.TestStart, Test: &desc})

		s.counter.Reset()
		stages.Body = s.invoke(ctx, test.Body, tc, s.timeout)
		stages.Assertions = s.counter.Count()
		if stages.Body == nil {
			stages.Body = s.classifier.CheckAssertions(tc, stages.Assertions)
		}
	}

	stages.TearDown = s.runTearDowns(ctx, lineage, tc)
	counter.detach()
	s.bus.Emit(events.Event{Name: events.TestTearDown, Test: &desc})

	outcome := s.classifier.Classify(desc, stages)
	outcome.Elapsed = s.clock.Now().Sub(start)
	s.summary.Add(outcome)

	span.SetAttributes(
		attribute.String("status", string(outcome.Status)),
		attribute.Int("assertions", outcome.Assertions),
	)
	if outcome.Status != types.TestStatusSuccess {
		span.SetStatus(codes.Error, outcome.Error.String())
		s.log.Info("Test did not pass", "context", owner.Name(), "test", test.Name,
			"status", outcome.Status, "err", outcome.Error.String())
	} else {
		s.log.Debug("Test passed", "context", owner.Name(), "test", test.Name,
			"assertions", outcome.Assertions, "elapsed", outcome.Elapsed)
	}

	s.bus.Emit(events.Event{Name: events.TerminalFor(outcome.Status), Test: &desc, Outcome: &outcome})
	return outcome
}

// runSetUps runs setUps outermost first and stops at the first failure.
func (s *session) runSetUps(ctx context.Context, lineage []*types.Context, tc *types.Case) error {
	for _, c := range lineage {
		if err := s.invoke(ctx, c.SetUp(), tc, 0); err != nil {
			return err
		}
	}
	return nil
}

// runTearDowns runs every tearDown innermost first, whatever happened before.
func (s *session) runTearDowns(ctx context.Context, lineage []*types.Context, tc *types.Case) []error {
	var errs []error
	for i := len(lineage) - 1; i >= 0; i-- {
		err := s.invoke(ctx, lineage[i].TearDown(), tc, 0)
		if err == nil {
			continue
		}
		if len(errs) > 0 {
			s.log.Warn("Additional tearDown failure", "context", lineage[i].Name(), "test", tc.Name(), "err", err)
		}
		errs = append(errs, err)
	}
	return errs
}

// caseCounter forwards the assertions of one test to the engine counter
// until it is detached, so a body abandoned on timeout cannot add to the
// count of the tests that follow it.
type caseCounter struct {
	mu     sync.Mutex
	target assertion.Incrementer
}

func (c *caseCounter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target != nil {
		c.target.Inc()
	}
}

func (c *caseCounter) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = nil
}

func (e *Engine) caseCounter() *caseCounter {
	inc, _ := e.counter.(assertion.Incrementer)
	return &caseCounter{target: inc}
}

// invoke runs a step and waits for it to settle. A panic, a returned error
// and a rejected future are all reported as the returned error.
func (e *Engine) invoke(ctx context.Context, step types.Step, tc *types.Case, timeout time.Duration) error {
	if step == nil {
		return nil
	}
	fut, err := call(step, tc)
	if err != nil || fut == nil {
		return err
	}
	return e.await(ctx, fut, timeout)
}

func call(step types.Step, tc *types.Case) (fut *async.Future, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = types.NewPanicError(v)
		}
	}()
	return step(tc), nil
}

// await blocks until fut settles. With a positive timeout the future is
// abandoned once the timeout fires.
func (e *Engine) await(ctx context.Context, fut *async.Future, timeout time.Duration) error {
	if timeout <= 0 || fut.Settled() {
		_, err := fut.Await(ctx)
		return err
	}
	select {
	case <-fut.Done():
		_, err := fut.Result()
		return err
	case <-e.clock.After(timeout):
		return &TimeoutError{Timeout: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}
