package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-testcase/types"
)

var (
	ErrNilContext       = errors.New("context is nil")
	ErrDuplicateContext = errors.New("context already registered")
	ErrNoMatch          = errors.New("pattern matched no context")
)

// Default is the registry used by Register
var Default = NewRegistry(Config{Log: log.Root()})

// Register adds a root context to the default registry
func Register(c *types.Context) error {
	return Default.Register(c)
}

// MustRegister is like Register but panics on error. Meant for package init.
func MustRegister(c *types.Context) {
	if err := Register(c); err != nil {
		panic(err)
	}
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
}

// Registry holds root contexts by name, in registration order
type Registry struct {
	log      log.Logger
	contexts []*types.Context
	names    map[string]struct{}
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Registry{
		log:   cfg.Log,
		names: make(map[string]struct{}),
	}
}

// Register adds a root context. Root context names must be unique.
func (r *Registry) Register(c *types.Context) error {
	if c == nil {
		return ErrNilContext
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.names[c.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateContext, c.Name())
	}
	r.names[c.Name()] = struct{}{}
	r.contexts = append(r.contexts, c)
	r.log.Debug("Registered context", "name", c.Name(), "tests", c.CountTests())
	return nil
}

// Contexts returns every registered root context in registration order
func (r *Registry) Contexts() []*types.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*types.Context(nil), r.contexts...)
}

// Select returns the root contexts whose names match the given glob
// patterns. Results follow pattern order, then registration order, and each
// context appears once. No patterns selects everything.
func (r *Registry) Select(patterns []string) ([]*types.Context, error) {
	all := r.Contexts()
	if len(patterns) == 0 {
		return all, nil
	}

	var selected []*types.Context
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}

		matched := false
		for _, c := range all {
			ok, err := doublestar.Match(pattern, c.Name())
			if err != nil {
				return nil, fmt.Errorf("matching pattern %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
			matched = true
			if _, dup := seen[c.Name()]; dup {
				continue
			}
			seen[c.Name()] = struct{}{}
			selected = append(selected, c)
		}
		if !matched {
			return nil, fmt.Errorf("%w: %q", ErrNoMatch, pattern)
		}
	}

	r.log.Debug("Selected contexts", "patterns", patterns, "len(selected)", len(selected))
	return selected, nil
}
