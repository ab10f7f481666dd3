// Package registry keeps the root test contexts known to a binary and selects
// the ones a run should execute, either from glob filters or a YAML run plan.
package registry
