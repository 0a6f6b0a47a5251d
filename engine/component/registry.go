package component

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hookline/hookline/engine/core"
)

var (
	ErrDuplicateComponent = errors.New("component already registered")
	ErrRegistryFrozen     = errors.New("registry is frozen")
)

// Registry holds every known component definition, bucketed by kind.
// Registration happens once at startup; Freeze then makes the registry
// immutable so lookups on the hot path read without locking.
type Registry struct {
	mu     sync.RWMutex
	frozen atomic.Bool
	defs   map[core.ComponentKind]map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{
		defs: map[core.ComponentKind]map[string]*Definition{
			core.KindTrigger:  {},
			core.KindAction:   {},
			core.KindReaction: {},
		},
	}
}

// Register adds a definition. Names are unique per kind; the same name may
// appear as both a trigger and an action.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("cannot register a nil component definition")
	}
	if err := def.check(); err != nil {
		return err
	}
	if r.frozen.Load() {
		return fmt.Errorf("cannot register %s %q: %w", def.Kind, def.Name, ErrRegistryFrozen)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.defs[def.Kind]
	if _, exists := bucket[def.Name]; exists {
		return fmt.Errorf("%s %q: %w", def.Kind, def.Name, ErrDuplicateComponent)
	}
	bucket[def.Name] = def
	return nil
}

// Freeze flips the registry immutable. Idempotent.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Lookup resolves a component by kind and name. Misses wrap
// core.ErrComponentUnknown.
func (r *Registry) Lookup(kind core.ComponentKind, name string) (*Definition, error) {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	def, ok := r.defs[kind][name]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", kind, name, core.ErrComponentUnknown)
	}
	return def, nil
}

func (r *Registry) Trigger(name string) (*Definition, error) {
	return r.Lookup(core.KindTrigger, name)
}

func (r *Registry) Action(name string) (*Definition, error) {
	return r.Lookup(core.KindAction, name)
}

func (r *Registry) Reaction(name string) (*Definition, error) {
	return r.Lookup(core.KindReaction, name)
}

// ListKind returns the definitions of one kind sorted by name.
func (r *Registry) ListKind(kind core.ComponentKind) []*Definition {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	bucket := r.defs[kind]
	out := make([]*Definition, 0, len(bucket))
	for _, def := range bucket {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
