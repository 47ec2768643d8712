package scrapql

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cyberixae/scrapql/internal/dict"
	"github.com/cyberixae/scrapql/internal/examples"
	"github.com/cyberixae/scrapql/internal/maybe"
)

func TestQueryExamples(t *testing.T) {
	p := Properties(
		tprop{Name: "protocol", Protocol: Literal[*testAPI, *testAPI]("v1", "v1")},
		tprop{Name: "items", Protocol: Ids(exists, existed,
			Leaf(upper, store, WithQueryExamples(true), WithResultExamples("a", "b")),
			WithKeyExamples("id1", "id2"))},
	)
	g, err := p.QueryExamples()
	require.NoError(t, err)
	want := []any{
		map[string]any{"protocol": "v1", "items": keysOf(kv("id1", true))},
		map[string]any{"protocol": "v1", "items": keysOf(kv("id2", true))},
	}
	if diff := cmp.Diff(want, examples.ToSlice(g)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	g, err = p.ResultExamples()
	require.NoError(t, err)
	some := func(id string, v any) any { return dict.New(dict.Pair(id, maybe.Some(v))) }
	want = []any{
		map[string]any{"protocol": "v1", "items": some("id1", "a")},
		map[string]any{"protocol": "v1", "items": some("id1", "b")},
		map[string]any{"protocol": "v1", "items": some("id2", "a")},
		map[string]any{"protocol": "v1", "items": some("id2", "b")},
	}
	if diff := cmp.Diff(want, examples.ToSlice(g), optionCmp); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExamplesAreRestartable(t *testing.T) {
	p := Keys(Leaf(upper, store, WithQueryExamples("x", "y")))
	g, err := p.QueryExamples()
	require.NoError(t, err)
	first := examples.ToSlice(g)
	second := examples.ToSlice(g)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second enumeration differs (-first +second):\n%s", diff)
	}
	require.Len(t, first, 2)
}

func TestLeafWithoutExamples(t *testing.T) {
	p := Keys(Leaf(upper, store), WithKeyExamples("k"))
	_, err := p.ResultExamples()
	require.ErrorIs(t, err, ErrNoExamples)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	if diff := cmp.Diff([]string{"k"}, pe.Path); diff != "" {
		t.Fatalf("path mismatch (-want +got):\n%s", diff)
	}
}
