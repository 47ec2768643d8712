package scrapql

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cyberixae/scrapql/internal/ctxpath"
	"github.com/cyberixae/scrapql/internal/dict"
	"github.com/cyberixae/scrapql/internal/eventbus"
	"github.com/cyberixae/scrapql/internal/events"
	"github.com/cyberixae/scrapql/internal/maybe"
	"github.com/cyberixae/scrapql/internal/reduce"
)

var optionCmp = cmp.AllowUnexported(maybe.Option[any]{})

func TestLiteralIgnoresQuery(t *testing.T) {
	p := Literal[*testAPI, *testAPI]("v1", "v1")
	api := newTestAPI()
	for _, q := range []any{"v1", "anything", nil, map[string]any{"x": 1}} {
		got, err := p.QueryInstance(api)(context.Background(), q)
		require.NoError(t, err)
		require.Equal(t, "v1", got)
	}
	require.NoError(t, p.ResultInstance(api)(context.Background(), "whatever"))
	require.Empty(t, api.Calls())

	got, err := p.ReduceResult(context.Background(), []any{"v1", "v1", "v1"})
	require.NoError(t, err)
	require.Equal(t, "v1", got)

	_, err = p.ReduceResult(context.Background(), []any{"v1", "v2"})
	require.ErrorIs(t, err, reduce.ErrStructuralMismatch)
}

func TestLeafPassThrough(t *testing.T) {
	p := Leaf(upper, store)
	api := newTestAPI()
	path := ctxpath.Zero.Prepend("a").Prepend("b")

	got, err := ProcessorInstance(p.ProcessQuery, api, path)(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, "Qb", got)

	want := []call{{Handler: "fetch", Payload: "q", Path: []string{"a", "b"}}}
	if diff := cmp.Diff(want, api.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestLeafResolverErrorIsLocated(t *testing.T) {
	errDown := errors.New("backend down")
	api := newTestAPI()
	api.fail["fetch:k1"] = errDown
	p := Keys(Leaf(upper, store))

	_, err := p.QueryInstance(api)(context.Background(), keysOf(kv("k1", "a")))
	require.ErrorIs(t, err, errDown)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "query", pe.Op)
	if diff := cmp.Diff([]string{"k1"}, pe.Path); diff != "" {
		t.Fatalf("path mismatch (-want +got):\n%s", diff)
	}
}

func TestKeysFanOut(t *testing.T) {
	p := Keys(Leaf(upper, store))
	api := newTestAPI()
	outer := ctxpath.Zero.Prepend("outer")

	got, err := ProcessorInstance(p.ProcessQuery, api, outer)(context.Background(), keysOf(kv("k1", "a"), kv("k2", "b")))
	require.NoError(t, err)
	want := keysOf(kv("k1", "Ak1"), kv("k2", "Bk2"))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	paths := map[any][]string{}
	for _, c := range api.Calls() {
		paths[c.Payload] = c.Path
	}
	wantPaths := map[any][]string{"a": {"outer", "k1"}, "b": {"outer", "k2"}}
	if diff := cmp.Diff(wantPaths, paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestKeysRunConcurrently(t *testing.T) {
	var inflight, peak atomic.Int32
	release := make(chan struct{})
	slow := func(*testAPI) LeafResolver {
		return func(ctx context.Context, query any, path []string) (any, error) {
			n := inflight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			if n == 3 {
				close(release)
			}
			select {
			case <-release:
			case <-time.After(2 * time.Second):
			}
			inflight.Add(-1)
			return query, nil
		}
	}
	p := Keys(Leaf(slow, store))
	_, err := p.QueryInstance(newTestAPI())(context.Background(), keysOf(kv("a", 1), kv("b", 2), kv("c", 3)))
	require.NoError(t, err)
	require.Equal(t, int32(3), peak.Load())
}

func TestIdsExistenceGating(t *testing.T) {
	p := Ids(exists, existed, Leaf(upper, store))
	api := newTestAPI()
	api.exists["id1"] = true

	got, err := p.QueryInstance(api)(context.Background(), keysOf(kv("id1", "q"), kv("id2", "q")))
	require.NoError(t, err)
	want := dict.New(
		dict.Pair("id1", maybe.Some[any]("Qid1")),
		dict.Pair("id2", maybe.None[any]()),
	)
	if diff := cmp.Diff(want, got, optionCmp); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, api.count("exists"))
	require.Equal(t, 1, api.count("fetch"))
	for _, c := range api.Calls() {
		switch c.Handler {
		case "exists":
			if diff := cmp.Diff([]string{}, c.Path); diff != "" {
				t.Fatalf("existence path mismatch (-want +got):\n%s", diff)
			}
		case "fetch":
			if diff := cmp.Diff([]string{"id1"}, c.Path); diff != "" {
				t.Fatalf("fetch path mismatch (-want +got):\n%s", diff)
			}
		}
	}
}

func TestHandlerEventsCarryPath(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	var mu sync.Mutex
	var got []string
	unsubscribe := eventbus.Subscribe(func(ctx context.Context, e events.HandlerCall) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Handler+" /"+strings.Join(e.Path, "/"))
	})
	defer unsubscribe()

	p := Keys(Ids(exists, existed, Leaf(upper, store)))
	api := newTestAPI()
	api.exists["id1"] = true
	query := keysOf(kv("k1", keysOf(kv("id1", "q"), kv("id2", "q"))))
	_, err := p.QueryInstance(api)(context.Background(), query)
	require.NoError(t, err)

	sort.Strings(got)
	want := []string{"exists /k1/id1", "exists /k1/id2", "resolve /k1/id1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	for _, c := range api.Calls() {
		if c.Handler == "exists" {
			if diff := cmp.Diff([]string{"k1"}, c.Path); diff != "" {
				t.Fatalf("existence path mismatch (-want +got):\n%s", diff)
			}
		}
	}
}

func TestIdsExistenceErrorFailsNode(t *testing.T) {
	errCheck := errors.New("existence check failed")
	api := newTestAPI()
	api.exists["id1"] = true
	api.fail["exists:"] = errCheck
	p := Ids(exists, existed, Leaf(upper, store))

	_, err := p.QueryInstance(api)(context.Background(), keysOf(kv("id1", "q")))
	require.ErrorIs(t, err, errCheck)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	if diff := cmp.Diff([]string{"id1"}, pe.Path); diff != "" {
		t.Fatalf("path mismatch (-want +got):\n%s", diff)
	}
	require.Zero(t, api.count("fetch"))
}

func TestIdsResultReporting(t *testing.T) {
	p := Ids(exists, existed, Leaf(upper, store))
	api := newTestAPI()
	result := dict.New(
		dict.Pair("id1", maybe.Some[any]("A")),
		dict.Pair("id2", maybe.None[any]()),
	)
	require.NoError(t, p.ResultInstance(api)(context.Background(), result))
	want := []call{
		{Handler: "existed", Payload: true, Path: []string{"id1"}},
		{Handler: "store", Payload: "A", Path: []string{"id1"}},
		{Handler: "existed", Payload: false, Path: []string{"id2"}},
	}
	if diff := cmp.Diff(want, api.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPropertiesPartiality(t *testing.T) {
	p := Properties(
		tprop{Name: "p1", Protocol: Leaf(upper, store)},
		tprop{Name: "p2", Protocol: Leaf(func(a *testAPI) LeafResolver {
			return func(ctx context.Context, q any, path []string) (any, error) {
				return nil, a.record("p2", q, path)
			}
		}, store)},
	)
	api := newTestAPI()
	got, err := p.QueryInstance(api)(context.Background(), map[string]any{"p1": "x"})
	require.NoError(t, err)
	if diff := cmp.Diff(map[string]any{"p1": "X"}, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, api.count("fetch"))
	require.Zero(t, api.count("p2"))

	_, err = p.QueryInstance(api)(context.Background(), map[string]any{"p3": "x"})
	require.ErrorIs(t, err, ErrUnknownProperty)
}

func TestResultReportingFollowsDeclaredOrder(t *testing.T) {
	p := Properties(
		tprop{Name: "b", Protocol: Leaf(upper, store)},
		tprop{Name: "a", Protocol: Keys(Leaf(upper, store))},
	)
	api := newTestAPI()
	result := map[string]any{
		"a": keysOf(kv("k2", 2), kv("k1", 1)),
		"b": "B",
	}
	require.NoError(t, p.ResultInstance(api)(context.Background(), result))
	want := []call{
		{Handler: "store", Payload: "B", Path: []string{}},
		{Handler: "store", Payload: 2, Path: []string{"k2"}},
		{Handler: "store", Payload: 1, Path: []string{"k1"}},
	}
	if diff := cmp.Diff(want, api.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestReporterErrorStopsWalk(t *testing.T) {
	errFull := errors.New("disk full")
	api := newTestAPI()
	api.fail["store:k1"] = errFull
	p := Keys(Leaf(upper, store))

	err := p.ResultInstance(api)(context.Background(), keysOf(kv("k1", 1), kv("k2", 2)))
	require.ErrorIs(t, err, errFull)
	require.Equal(t, 1, api.count("store"))
}

func TestWrongTypesAreErrors(t *testing.T) {
	api := newTestAPI()
	cases := []struct {
		name string
		p    *testProto
		in   any
	}{
		{"keys", Keys(Leaf(upper, store)), map[string]any{"k": 1}},
		{"ids", Ids(exists, existed, Leaf(upper, store)), []any{"id1"}},
		{"properties", Properties[*testAPI, *testAPI](), "x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.p.QueryInstance(api)(context.Background(), tc.in)
			var te *TypeError
			require.ErrorAs(t, err, &te)
			require.Equal(t, tc.name, te.Shape.String())

			err = tc.p.ResultInstance(api)(context.Background(), tc.in)
			require.ErrorAs(t, err, &te)
		})
	}
}

func TestReduceExistenceChange(t *testing.T) {
	errGone := errors.New("gone")
	p := Ids(exists, existed, Leaf(upper, store), WithExistenceChange(func() error { return errGone }))
	_, err := p.ReduceResult(context.Background(), []any{
		dict.New(dict.Pair("id1", maybe.Some[any]("A"))),
		dict.New(dict.Pair("id1", maybe.None[any]())),
	})
	require.ErrorIs(t, err, errGone)
}

func TestReduceLeafCombiner(t *testing.T) {
	p := Keys(Leaf(upper, store, WithCombiner(reduce.KeepWrite)))
	got, err := p.ReduceResult(context.Background(), []any{
		keysOf(kv("k1", "write")),
		keysOf(kv("k1", "read")),
	})
	require.NoError(t, err)
	if diff := cmp.Diff(keysOf(kv("k1", "write")), got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func scenario() *testProto {
	return Properties(
		tprop{Name: "protocol", Protocol: Literal[*testAPI, *testAPI]("scrapql/1", "scrapql/1")},
		tprop{Name: "items", Protocol: Ids(exists, existed, Keys(Leaf(upper, store)))},
	)
}

func TestComposedScenario(t *testing.T) {
	p := scenario()
	api := newTestAPI()
	api.exists["id1"] = true

	query := map[string]any{
		"protocol": "scrapql/1",
		"items":    keysOf(kv("id1", keysOf(kv("k1", true)))),
	}
	got, err := p.QueryInstance(api)(context.Background(), query)
	require.NoError(t, err)

	want := map[string]any{
		"protocol": "scrapql/1",
		"items": dict.New(
			dict.Pair("id1", maybe.Some[any](keysOf(kv("k1", "TRUEk1")))),
		),
	}
	if diff := cmp.Diff(want, got, optionCmp); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	wantQueryCalls := []call{
		{Handler: "exists", Payload: "id1", Path: []string{}},
		{Handler: "fetch", Payload: true, Path: []string{"id1", "k1"}},
	}
	if diff := cmp.Diff(wantQueryCalls, api.Calls()); diff != "" {
		t.Fatalf("query calls mismatch (-want +got):\n%s", diff)
	}

	reporters := newTestAPI()
	require.NoError(t, p.ResultInstance(reporters)(context.Background(), got))
	wantReports := []call{
		{Handler: "existed", Payload: true, Path: []string{"id1"}},
		{Handler: "store", Payload: "TRUEk1", Path: []string{"id1", "k1"}},
	}
	if diff := cmp.Diff(wantReports, reporters.Calls()); diff != "" {
		t.Fatalf("report calls mismatch (-want +got):\n%s", diff)
	}

	merged, err := p.ReduceResult(context.Background(), []any{got, got})
	require.NoError(t, err)
	if diff := cmp.Diff(want, merged, optionCmp); diff != "" {
		t.Fatalf("reduce mismatch (-want +got):\n%s", diff)
	}
}
