// Package examples implements restartable, non-empty, finite generators used to
// enumerate representative queries and results of a protocol.
//
// A Gen is a recipe: every call starts an independent cursor, so the same Gen
// can be enumerated any number of times and nested inside products.
package examples

import (
	"errors"
	"iter"

	"github.com/cyberixae/scrapql/internal/dict"
)

// ErrEmpty is returned when a generator would have no elements.
var ErrEmpty = errors.New("examples: empty generator")

// Next yields the next value and whether it is the final one. Calling Next
// after the final value keeps returning that value with last set.
type Next[A any] func() (value A, last bool)

// Gen starts a fresh cursor.
type Gen[A any] func() Next[A]

// New builds a generator over first followed by rest.
func New[A any](first A, rest ...A) Gen[A] {
	all := append([]A{first}, rest...)
	return func() Next[A] {
		i := 0
		return func() (A, bool) {
			v := all[i]
			if i < len(all)-1 {
				i++
				return v, false
			}
			return v, true
		}
	}
}

// FromSlice builds a generator over xs, which must not be empty.
func FromSlice[A any](xs []A) (Gen[A], error) {
	if len(xs) == 0 {
		return nil, ErrEmpty
	}
	return New(xs[0], xs[1:]...), nil
}

// Map transforms every element, keeping the cardinality.
func Map[A, B any](g Gen[A], f func(A) B) Gen[B] {
	return func() Next[B] {
		next := g()
		return func() (B, bool) {
			a, last := next()
			return f(a), last
		}
	}
}

// Take limits g to its first n elements. n below one is treated as one.
func Take[A any](g Gen[A], n int) Gen[A] {
	if n < 1 {
		n = 1
	}
	return func() Next[A] {
		next := g()
		seen := 0
		var prev A
		done := false
		return func() (A, bool) {
			if done {
				return prev, true
			}
			v, last := next()
			seen++
			if last || seen >= n {
				done = true
			}
			prev = v
			return v, done
		}
	}
}

// Erase widens the element type to any.
func Erase[A any](g Gen[A]) Gen[any] {
	return Map(g, func(a A) any { return a })
}

// SequenceT enumerates the Cartesian product of gens. The last generator
// varies fastest, so the product of [a b] and [c d] is ac, ad, bc, bd.
func SequenceT(gens ...Gen[any]) Gen[[]any] {
	return func() Next[[]any] {
		n := len(gens)
		cursors := make([]Next[any], n)
		vals := make([]any, n)
		lasts := make([]bool, n)
		for i, g := range gens {
			cursors[i] = g()
			vals[i], lasts[i] = cursors[i]()
		}
		finished := false
		var final []any
		return func() ([]any, bool) {
			if finished {
				return append([]any(nil), final...), true
			}
			tuple := append([]any(nil), vals...)
			done := true
			for _, l := range lasts {
				done = done && l
			}
			if done {
				finished = true
				final = tuple
				return append([]any(nil), tuple...), true
			}
			for i := n - 1; i >= 0; i-- {
				if !lasts[i] {
					vals[i], lasts[i] = cursors[i]()
					break
				}
				cursors[i] = gens[i]()
				vals[i], lasts[i] = cursors[i]()
			}
			return tuple, false
		}
	}
}

// Tuple2 is one element of SequenceT2.
type Tuple2[A, B any] struct {
	First  A
	Second B
}

// SequenceT2 is the typed two-generator form of SequenceT.
func SequenceT2[A, B any](a Gen[A], b Gen[B]) Gen[Tuple2[A, B]] {
	return Map(SequenceT(Erase(a), Erase(b)), func(t []any) Tuple2[A, B] {
		// comma-ok keeps nil elements of interface types from panicking
		first, _ := t[0].(A)
		second, _ := t[1].(B)
		return Tuple2[A, B]{First: first, Second: second}
	})
}

// SequenceS is SequenceT over named generators, producing records. The dict
// order decides the nesting: the last entry varies fastest.
func SequenceS(named dict.Dict[string, Gen[any]]) Gen[map[string]any] {
	names := dict.Keys(named)
	return Map(SequenceT(dict.Values(named)...), func(t []any) map[string]any {
		out := make(map[string]any, len(names))
		for i, name := range names {
			out[name] = t[i]
		}
		return out
	})
}

// ToSlice collects every element.
func ToSlice[A any](g Gen[A]) []A {
	var out []A
	next := g()
	for {
		v, last := next()
		out = append(out, v)
		if last {
			return out
		}
	}
}

// All exposes a fresh enumeration as an iterator.
func All[A any](g Gen[A]) iter.Seq[A] {
	return func(yield func(A) bool) {
		next := g()
		for {
			v, last := next()
			if !yield(v) || last {
				return
			}
		}
	}
}
