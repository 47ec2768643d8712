// Package handlers provides name-keyed resolver and reporter APIs for
// protocols that refer to their handlers by name.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cyberixae/scrapql/internal/scrapql"
)

// ErrUnknownHandler is returned when a protocol calls a handler name the Set
// does not hold.
var ErrUnknownHandler = errors.New("unknown handler")

// Handler kinds.
const (
	KindResolve         = "resolve"
	KindExists          = "exists"
	KindReport          = "report"
	KindReportExistence = "report-existence"
)

// Ref names one handler a protocol depends on.
type Ref struct {
	Kind string
	Name string
}

func (r Ref) String() string { return r.Kind + ":" + r.Name }

// Set holds handlers of the four kinds by name. It is safe for concurrent use.
type Set struct {
	mu                 sync.RWMutex
	resolvers          map[string]scrapql.LeafResolver
	existence          map[string]scrapql.ExistenceResolver
	reporters          map[string]scrapql.LeafReporter
	existenceReporters map[string]scrapql.ExistenceReporter
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{
		resolvers:          make(map[string]scrapql.LeafResolver),
		existence:          make(map[string]scrapql.ExistenceResolver),
		reporters:          make(map[string]scrapql.LeafReporter),
		existenceReporters: make(map[string]scrapql.ExistenceReporter),
	}
}

// RegisterResolver registers or replaces the leaf resolver called name.
func (s *Set) RegisterResolver(name string, r scrapql.LeafResolver) *Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvers[name] = r
	return s
}

// RegisterExistence registers or replaces the existence resolver called name.
func (s *Set) RegisterExistence(name string, r scrapql.ExistenceResolver) *Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existence[name] = r
	return s
}

// RegisterReporter registers or replaces the leaf reporter called name.
func (s *Set) RegisterReporter(name string, r scrapql.LeafReporter) *Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporters[name] = r
	return s
}

// RegisterExistenceReporter registers or replaces the existence reporter
// called name.
func (s *Set) RegisterExistenceReporter(name string, r scrapql.ExistenceReporter) *Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existenceReporters[name] = r
	return s
}

func lookup[H any](s *Set, m map[string]H, kind, name string) (H, error) {
	s.mu.RLock()
	h, ok := m[name]
	s.mu.RUnlock()
	if !ok {
		var zero H
		return zero, fmt.Errorf("%w %s", ErrUnknownHandler, Ref{Kind: kind, Name: name})
	}
	return h, nil
}

// Missing returns the refs that s cannot serve, sorted.
func (s *Set) Missing(refs []Ref) []Ref {
	var out []Ref
	for _, r := range refs {
		var err error
		switch r.Kind {
		case KindResolve:
			_, err = lookup(s, s.resolvers, r.Kind, r.Name)
		case KindExists:
			_, err = lookup(s, s.existence, r.Kind, r.Name)
		case KindReport:
			_, err = lookup(s, s.reporters, r.Kind, r.Name)
		case KindReportExistence:
			_, err = lookup(s, s.existenceReporters, r.Kind, r.Name)
		default:
			err = ErrUnknownHandler
		}
		if err != nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Resolver returns a connector projecting the leaf resolver called name out
// of a Set. The lookup happens on every call.
func Resolver(name string) func(*Set) scrapql.LeafResolver {
	return func(s *Set) scrapql.LeafResolver {
		return func(ctx context.Context, query any, path []string) (any, error) {
			h, err := lookup(s, s.resolvers, KindResolve, name)
			if err != nil {
				return nil, err
			}
			return h(ctx, query, path)
		}
	}
}

// Existence returns a connector for the existence resolver called name.
func Existence(name string) func(*Set) scrapql.ExistenceResolver {
	return func(s *Set) scrapql.ExistenceResolver {
		return func(ctx context.Context, id string, path []string) (bool, error) {
			h, err := lookup(s, s.existence, KindExists, name)
			if err != nil {
				return false, err
			}
			return h(ctx, id, path)
		}
	}
}

// Reporter returns a connector for the leaf reporter called name.
func Reporter(name string) func(*Set) scrapql.LeafReporter {
	return func(s *Set) scrapql.LeafReporter {
		return func(ctx context.Context, result any, path []string) error {
			h, err := lookup(s, s.reporters, KindReport, name)
			if err != nil {
				return err
			}
			return h(ctx, result, path)
		}
	}
}

// ExistenceReporter returns a connector for the existence reporter called
// name.
func ExistenceReporter(name string) func(*Set) scrapql.ExistenceReporter {
	return func(s *Set) scrapql.ExistenceReporter {
		return func(ctx context.Context, exists bool, path []string) error {
			h, err := lookup(s, s.existenceReporters, KindReportExistence, name)
			if err != nil {
				return err
			}
			return h(ctx, exists, path)
		}
	}
}
