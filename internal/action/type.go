package action

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Param is a parameter schema entry.
type Param struct {
	Name              string
	Mandatory         bool
	Types             string
	Description       string
	Default           any
	PossibleVariables []string
}

// PrepareFunc runs before Execute: variable substitution and type
// coercion have already happened by the time it is called, so
// implementations only need type-specific pre-checks.
type PrepareFunc func(ctx context.Context, a *Action) error

// ExecuteFunc is a handler's execution body. It returns the resulting
// lifecycle state.
type ExecuteFunc func(ctx context.Context, a *Action) (State, error)

// Type is a registered action kind.
type Type struct {
	Name               string
	ImplementerNS      string
	Rank               int
	Flags              Flags
	Parameters         []Param
	Prepare            PrepareFunc
	Execute            ExecuteFunc
	OverridenType      *Type
}

func (t *Type) mandatoryParams() []Param {
	var out []Param
	for _, p := range t.Parameters {
		if p.Mandatory {
			out = append(out, p)
		}
	}
	return out
}

// Param looks up a single parameter's schema entry by name.
func (t *Type) Param(name string) (Param, bool) {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Registry is the action type registry: a rank-overridden
// mapping from name to Type, with an append-only history per name for
// debuggability.
type Registry struct {
	mu      sync.RWMutex
	current map[string]*Type
	history map[string][]*Type
}

func NewRegistry() *Registry {
	return &Registry{
		current: make(map[string]*Type),
		history: make(map[string][]*Type),
	}
}

// Register adds or overrides a type by name. If a type with this name
// already exists and its rank is strictly greater than the new
// registration's rank, the existing type is kept and returned unchanged.
// Otherwise the new type replaces it, chaining the previous registration
// as OverridenType.
func (r *Registry) Register(t *Type) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.current[t.Name]
	if ok && existing.Rank > t.Rank {
		return existing
	}
	if ok {
		cp := *t
		cp.OverridenType = existing
		t = &cp
	}
	r.current[t.Name] = t
	r.history[t.Name] = append(r.history[t.Name], t)
	return t
}

// Lookup resolves a type by name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.current[name]
	return t, ok
}

// List returns every currently-registered type, sorted by name.
func (r *Registry) List() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, 0, len(r.current))
	for _, t := range r.current {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// History returns every registration ever made for name, oldest first.
func (r *Registry) History(name string) []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, len(r.history[name]))
	copy(out, r.history[name])
	return out
}

// PrintTypes renders a human-readable listing of the given type names, or
// every registered type when selection is empty.
func (r *Registry) PrintTypes(selection ...string) string {
	types := r.List()
	if len(selection) > 0 {
		want := make(map[string]bool, len(selection))
		for _, s := range selection {
			want[s] = true
		}
		var filtered []*Type
		for _, t := range types {
			if want[t.Name] {
				filtered = append(filtered, t)
			}
		}
		types = filtered
	}

	out := ""
	for _, t := range types {
		out += fmt.Sprintf("%s (rank=%d, ns=%s)\n", t.Name, t.Rank, t.ImplementerNS)
		for _, p := range t.Parameters {
			mand := ""
			if p.Mandatory {
				mand = " [mandatory]"
			}
			out += fmt.Sprintf("  %s: %s%s - %s\n", p.Name, p.Types, mand, p.Description)
		}
	}
	return out
}
