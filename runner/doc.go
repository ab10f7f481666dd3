// Package runner provides the engine that executes a tree of test contexts.
//
// The main components are:
//   - Engine: walks contexts depth-first, runs each test's fixture chain on a fresh
//     Case and publishes lifecycle events on an events.Bus
//   - Classifier: turns the thrown values of a fixture chain into a single Outcome,
//     applying the assertion-count policy
//
// Scheduling is single-threaded and cooperative: exactly one fixture or test body
// runs at a time, and the engine only suspends where a step returns a pending
// future. Failures in user code are captured and classified; they never abort a run.
package runner
