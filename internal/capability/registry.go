package capability

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// Registry holds the registered capabilities and provides lookup and
// validated invocation. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]*Capability
	byCategory   map[analytics.Category][]*Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		capabilities: make(map[string]*Capability),
		byCategory:   make(map[analytics.Category][]*Capability),
	}
}

// Register adds a capability. Duplicate names are an error.
func (r *Registry) Register(c *Capability) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid capability: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.capabilities[c.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, c.Name)
	}
	if c.Priority == 0 {
		c.Priority = 50
	}
	r.capabilities[c.Name] = c
	r.byCategory[c.Category] = append(r.byCategory[c.Category], c)
	return nil
}

// MustRegister registers a capability and panics on error. Use for the
// static catalog built at startup.
func (r *Registry) MustRegister(c *Capability) {
	if err := r.Register(c); err != nil {
		panic(fmt.Sprintf("register capability %s: %v", c.Name, err))
	}
}

// Get returns a capability by name, or nil.
func (r *Registry) Get(name string) *Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capabilities[name]
}

// Has reports whether a capability is registered.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// ByCategory returns a category's capabilities sorted by priority,
// highest first.
func (r *Registry) ByCategory(category analytics.Category) []*Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Capability, len(r.byCategory[category]))
	copy(out, r.byCategory[category])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// All returns every registered capability sorted by name.
func (r *Registry) All() []*Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Capability, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities)
}

// Invoke validates args against the capability's schema, then runs it
// against the snapshot. Validation failures return before any
// computation. The Invocation carries the outcome either way.
func (r *Registry) Invoke(ctx context.Context, ds *dataset.Dataset, name string, args map[string]interface{}) (*Invocation, error) {
	c := r.Get(name)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	start := time.Now()
	resolved, err := resolveArgs(c, args)
	if err != nil {
		return &Invocation{Capability: c, Err: err, Duration: time.Since(start)}, err
	}
	if err := ctx.Err(); err != nil {
		return &Invocation{Capability: c, Err: err, Duration: time.Since(start)}, err
	}

	result, err := c.Run(ctx, ds, resolved)
	return &Invocation{
		Capability: c,
		Result:     result,
		Err:        err,
		Duration:   time.Since(start),
	}, err
}

// resolveArgs checks declared parameters against the provided arguments:
// required ones must be present, types must match, enums must hold, and
// defaults fill the gaps. Undeclared arguments are dropped.
func resolveArgs(c *Capability, args map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(c.Params))
	for _, p := range c.Params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, fmt.Errorf("%w: %s is required", ErrInvalidParameter, p.Name)
			}
			if p.Default != nil {
				resolved[p.Name] = p.Default
			}
			continue
		}
		coerced, err := coerceParam(p, v)
		if err != nil {
			return nil, err
		}
		resolved[p.Name] = coerced
	}
	return resolved, nil
}

// coerceParam normalizes one argument to its declared type. JSON decoding
// hands numbers over as float64, so integer parameters accept whole
// floats.
func coerceParam(p Param, v interface{}) (interface{}, error) {
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidParameter, p.Name)
		}
		if len(p.Enum) == 0 {
			return s, nil
		}
		for _, allowed := range p.Enum {
			if strings.EqualFold(s, allowed) {
				return allowed, nil
			}
		}
		return nil, fmt.Errorf("%w: %s must be one of %s", ErrInvalidParameter, p.Name, strings.Join(p.Enum, ", "))
	case TypeInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidParameter, p.Name)
			}
			return int(n), nil
		}
		return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidParameter, p.Name)
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, p.Name)
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidParameter, p.Name)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s has unknown type %q", ErrInvalidParameter, p.Name, p.Type)
}
