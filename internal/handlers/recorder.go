package handlers

import (
	"context"
	"sync"
)

// Call represents a single handler invocation.
type Call struct {
	Kind    string
	Name    string
	Path    []string
	Payload any
}

// Recorder wraps the handlers of a Set and keeps a log of every call.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder creates a Recorder with an empty log.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

// Calls returns a copy of the log in call order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// Wrap returns a new Set holding every handler of s, each recording its
// calls in r before delegating.
func (r *Recorder) Wrap(s *Set) *Set {
	out := NewSet()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, h := range s.resolvers {
		out.resolvers[name] = func(ctx context.Context, query any, path []string) (any, error) {
			r.record(Call{Kind: KindResolve, Name: name, Path: path, Payload: query})
			return h(ctx, query, path)
		}
	}
	for name, h := range s.existence {
		out.existence[name] = func(ctx context.Context, id string, path []string) (bool, error) {
			r.record(Call{Kind: KindExists, Name: name, Path: path, Payload: id})
			return h(ctx, id, path)
		}
	}
	for name, h := range s.reporters {
		out.reporters[name] = func(ctx context.Context, result any, path []string) error {
			r.record(Call{Kind: KindReport, Name: name, Path: path, Payload: result})
			return h(ctx, result, path)
		}
	}
	for name, h := range s.existenceReporters {
		out.existenceReporters[name] = func(ctx context.Context, exists bool, path []string) error {
			r.record(Call{Kind: KindReportExistence, Name: name, Path: path, Payload: exists})
			return h(ctx, exists, path)
		}
	}
	return out
}
