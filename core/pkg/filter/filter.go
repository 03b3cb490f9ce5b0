// Package filter holds the pluggable predicates a flag's client_filters refer to.
package filter

import (
	"context"
	"sort"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

// Context is the per-call data merged into every filter invocation.
type Context struct {
	FlagID string
	User   string
	Groups []string
}

// Filter is a named boolean predicate over a filter reference's parameters.
type Filter interface {
	Name() string
	Evaluate(ctx context.Context, ref model.FilterReference, fc Context) (bool, error)
}

type alias struct {
	Filter
	name string
}

func (a alias) Name() string {
	return a.name
}

// Alias registers f under name instead of its own.
func Alias(name string, f Filter) Filter {
	return alias{Filter: f, name: name}
}

// Registry resolves filter names. Registering a name twice keeps the last filter.
type Registry struct {
	filters map[string]Filter
}

func NewRegistry(filters ...Filter) *Registry {
	r := &Registry{filters: make(map[string]Filter, len(filters))}
	for _, f := range filters {
		r.Register(f)
	}
	return r
}

func (r *Registry) Register(f Filter) {
	r.filters[f.Name()] = f
}

func (r *Registry) Get(name string) (Filter, bool) {
	f, ok := r.filters[name]
	return f, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
