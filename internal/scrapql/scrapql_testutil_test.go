package scrapql

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cyberixae/scrapql/internal/dict"
)

type call struct {
	Handler string
	Payload any
	Path    []string
}

// testAPI serves both as resolvers and reporters and logs every call.
type testAPI struct {
	mu     sync.Mutex
	calls  []call
	exists map[string]bool
	fail   map[string]error
}

func newTestAPI() *testAPI {
	return &testAPI{exists: map[string]bool{}, fail: map[string]error{}}
}

func (a *testAPI) record(handler string, payload any, path []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call{Handler: handler, Payload: payload, Path: path})
	return a.fail[handler+":"+strings.Join(path, "/")]
}

func (a *testAPI) Calls() []call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]call(nil), a.calls...)
}

func (a *testAPI) count(handler string) int {
	n := 0
	for _, c := range a.Calls() {
		if c.Handler == handler {
			n++
		}
	}
	return n
}

// upper resolves a leaf to the upper-cased query joined with the last path
// segment.
func upper(a *testAPI) LeafResolver {
	return func(ctx context.Context, query any, path []string) (any, error) {
		if err := a.record("fetch", query, path); err != nil {
			return nil, err
		}
		last := ""
		if len(path) > 0 {
			last = path[len(path)-1]
		}
		return strings.ToUpper(fmt.Sprint(query)) + last, nil
	}
}

func store(a *testAPI) LeafReporter {
	return func(ctx context.Context, result any, path []string) error {
		return a.record("store", result, path)
	}
}

func exists(a *testAPI) ExistenceResolver {
	return func(ctx context.Context, id string, path []string) (bool, error) {
		if err := a.record("exists", id, path); err != nil {
			return false, err
		}
		return a.exists[id], nil
	}
}

func existed(a *testAPI) ExistenceReporter {
	return func(ctx context.Context, e bool, path []string) error {
		return a.record("existed", e, path)
	}
}

type testProto = Protocol[*testAPI, *testAPI]

type tprop = Prop[*testAPI, *testAPI]

func keysOf(entries ...dict.Entry[string, any]) dict.Dict[string, any] {
	return dict.New(entries...)
}

func kv(k string, v any) dict.Entry[string, any] { return dict.Pair(k, v) }
