// Package dict implements an ordered association list used wherever a query or
// result needs a map with a deterministic enumeration order.
//
// Lookups are linear scans; dicts are expected to carry small fan-outs
// (a handful of keys or ids per request).
package dict

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/cyberixae/scrapql/internal/maybe"
)

// ErrAsymmetric is returned by MergeSymmetric when the merged dicts do not share
// one key set.
var ErrAsymmetric = errors.New("dict: key sets differ")

// Entry is one key/value pair.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Dict is an ordered list of entries. Keys are expected to be unique.
type Dict[K comparable, V any] []Entry[K, V]

// Pair builds an entry.
func Pair[K comparable, V any](k K, v V) Entry[K, V] {
	return Entry[K, V]{Key: k, Value: v}
}

// New builds a dict from entries in the given order.
func New[K comparable, V any](entries ...Entry[K, V]) Dict[K, V] {
	return Dict[K, V](entries)
}

// Len reports the number of entries.
func (d Dict[K, V]) Len() int { return len(d) }

// MapWithIndex applies f to every entry, keeping order and keys.
func MapWithIndex[K comparable, A, B any](d Dict[K, A], f func(K, A) B) Dict[K, B] {
	out := make(Dict[K, B], len(d))
	for i, e := range d {
		out[i] = Entry[K, B]{Key: e.Key, Value: f(e.Key, e.Value)}
	}
	return out
}

// Lookup finds the value stored under k.
func Lookup[K comparable, V any](d Dict[K, V], k K) maybe.Option[V] {
	for _, e := range d {
		if e.Key == k {
			return maybe.Some(e.Value)
		}
	}
	return maybe.None[V]()
}

// Keys returns the keys in order.
func Keys[K comparable, V any](d Dict[K, V]) []K {
	out := make([]K, len(d))
	for i, e := range d {
		out[i] = e.Key
	}
	return out
}

// Values returns the values in order.
func Values[K comparable, V any](d Dict[K, V]) []V {
	out := make([]V, len(d))
	for i, e := range d {
		out[i] = e.Value
	}
	return out
}

// Task is a deferred computation producing one value of a dict.
type Task[V any] func(ctx context.Context) (V, error)

// SequenceTask runs every task concurrently and collects the results in the
// original key order. The first failure cancels the context handed to the
// remaining tasks; SequenceTask still waits for all of them before returning
// that failure.
func SequenceTask[K comparable, V any](ctx context.Context, d Dict[K, Task[V]]) (Dict[K, V], error) {
	out := make(Dict[K, V], len(d))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range d {
		out[i].Key = e.Key
		g.Go(func() error {
			v, err := e.Value(gctx)
			if err != nil {
				return err
			}
			out[i].Value = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SequenceTaskSeq runs the tasks one after another in key order and stops at
// the first failure.
func SequenceTaskSeq[K comparable, V any](ctx context.Context, d Dict[K, Task[V]]) (Dict[K, V], error) {
	out := make(Dict[K, V], 0, len(d))
	for _, e := range d {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Value(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry[K, V]{Key: e.Key, Value: v})
	}
	return out, nil
}

// MergeSymmetric merges dicts that must share one key set, regardless of
// order. For every key of the first dict the values found under that key in
// all dicts (the variants, in dict order) are passed to combine. The merged
// dict follows the first dict's key order.
//
// ErrAsymmetric is returned when any dict has a different key set or repeats
// a key. Errors from combine are returned as is.
func MergeSymmetric[K comparable, V, W any](dicts []Dict[K, V], combine func(k K, variants []V) (W, error)) (Dict[K, W], error) {
	if len(dicts) == 0 {
		return Dict[K, W]{}, nil
	}
	first := dicts[0]
	index := make([]map[K]V, len(dicts))
	for i, d := range dicts {
		if len(d) != len(first) {
			return nil, ErrAsymmetric
		}
		m := make(map[K]V, len(d))
		for _, e := range d {
			if _, dup := m[e.Key]; dup {
				return nil, ErrAsymmetric
			}
			m[e.Key] = e.Value
		}
		index[i] = m
	}

	out := make(Dict[K, W], 0, len(first))
	for _, e := range first {
		variants := make([]V, len(dicts))
		for i := range dicts {
			v, ok := index[i][e.Key]
			if !ok {
				return nil, ErrAsymmetric
			}
			variants[i] = v
		}
		w, err := combine(e.Key, variants)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry[K, W]{Key: e.Key, Value: w})
	}
	return out, nil
}
