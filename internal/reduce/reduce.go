// Package reduce merges batches of structurally identical result trees, for
// example the results collected from several writers of the same request, into
// one canonical tree.
//
// Every reducer takes a non-empty batch. The first element is the write
// result; the remaining ones are read results that must agree with it.
// Divergence is reported as an *Error, never as a panic.
package reduce

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cyberixae/scrapql/internal/dict"
	"github.com/cyberixae/scrapql/internal/jsonv"
	"github.com/cyberixae/scrapql/internal/maybe"
)

var (
	// ErrStructuralMismatch means the batch elements do not share a shape:
	// differing literals, key sets, id sets or property sets.
	ErrStructuralMismatch = errors.New("structural mismatch")
	// ErrPayloadMismatch means a leaf combiner refused to merge two payloads.
	ErrPayloadMismatch = errors.New("payload mismatch")
	// ErrExistenceChange is the default error for an id that is present in
	// some batch elements and absent in others.
	ErrExistenceChange = errors.New("existence change")
	// ErrEmptyBatch is returned for a batch without elements.
	ErrEmptyBatch = errors.New("empty batch")
)

// Error locates a reduce failure. Location lists the property names, keys and
// ids leading from the root to the failing node.
type Error struct {
	Shape    string
	Location []string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("reduce %s at /%s: %v", e.Shape, strings.Join(e.Location, "/"), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func failure(shape string, err error) *Error {
	return &Error{Shape: shape, Err: err}
}

// within prefixes segment to the location of a failure raised below it.
func within(segment string, err error) error {
	var re *Error
	if errors.As(err, &re) {
		loc := make([]string, 0, len(re.Location)+1)
		loc = append(loc, segment)
		loc = append(loc, re.Location...)
		return &Error{Shape: re.Shape, Location: loc, Err: re.Err}
	}
	return err
}

// Reducer merges one batch into a single result.
type Reducer func(results []any) (any, error)

// Combiner folds a read result into the accumulated write result.
type Combiner func(write, read any) (any, error)

// RequireEqual is a Combiner accepting only reads that encode to the same JSON
// as the write.
func RequireEqual(write, read any) (any, error) {
	if !jsonv.Equal(write, read) {
		return nil, ErrPayloadMismatch
	}
	return write, nil
}

// KeepWrite is a Combiner that trusts the write result and ignores reads.
func KeepWrite(write, _ any) (any, error) { return write, nil }

// Literal accepts a batch of JSON-equal constants and returns the first.
func Literal(results []any) (any, error) {
	if len(results) == 0 {
		return nil, failure("literal", ErrEmptyBatch)
	}
	head := results[0]
	for _, r := range results[1:] {
		if !jsonv.Equal(head, r) {
			return nil, failure("literal", ErrStructuralMismatch)
		}
	}
	return head, nil
}

// Leaf folds the read results into the write result with combine.
func Leaf(combine Combiner) Reducer {
	if combine == nil {
		combine = RequireEqual
	}
	return func(results []any) (any, error) {
		if len(results) == 0 {
			return nil, failure("leaf", ErrEmptyBatch)
		}
		acc := results[0]
		for _, r := range results[1:] {
			next, err := combine(acc, r)
			if err != nil {
				if errors.Is(err, ErrPayloadMismatch) {
					return nil, failure("leaf", err)
				}
				return nil, failure("leaf", fmt.Errorf("%w: %w", ErrPayloadMismatch, err))
			}
			acc = next
		}
		return acc, nil
	}
}

// Keys merges dict.Dict[string, any] results key by key with sub.
func Keys(sub Reducer) Reducer {
	return func(results []any) (any, error) {
		dicts, err := asDicts[any]("keys", results)
		if err != nil {
			return nil, err
		}
		merged, err := dict.MergeSymmetric(dicts, func(key string, variants []any) (any, error) {
			v, err := sub(variants)
			if err != nil {
				return nil, within(key, err)
			}
			return v, nil
		})
		if errors.Is(err, dict.ErrAsymmetric) {
			return nil, failure("keys", ErrStructuralMismatch)
		}
		if err != nil {
			return nil, err
		}
		return merged, nil
	}
}

// Ids merges dict.Dict[string, maybe.Option[any]] results id by id. Every
// variant of an id must agree on presence; present variants are reduced with
// sub. A disagreement fails with the error built by existenceChange, or
// ErrExistenceChange when it is nil.
func Ids(sub Reducer, existenceChange func() error) Reducer {
	if existenceChange == nil {
		existenceChange = func() error { return ErrExistenceChange }
	}
	return func(results []any) (any, error) {
		dicts, err := asDicts[maybe.Option[any]]("ids", results)
		if err != nil {
			return nil, err
		}
		merged, err := dict.MergeSymmetric(dicts, func(id string, variants []maybe.Option[any]) (maybe.Option[any], error) {
			present := 0
			for _, v := range variants {
				if v.IsSome() {
					present++
				}
			}
			switch present {
			case 0:
				return maybe.None[any](), nil
			case len(variants):
				values := maybe.Sequence(variants).OrElse(nil)
				v, err := sub(values)
				if err != nil {
					return maybe.None[any](), within(id, err)
				}
				return maybe.Some(v), nil
			default:
				return maybe.None[any](), &Error{Shape: "ids", Location: []string{id}, Err: existenceChange()}
			}
		})
		if errors.Is(err, dict.ErrAsymmetric) {
			return nil, failure("ids", ErrStructuralMismatch)
		}
		if err != nil {
			return nil, err
		}
		return merged, nil
	}
}

// Properties merges map[string]any results. The first element decides which
// properties are present; each of them is reduced with its own reducer, in
// the order of reducers. Other elements are expected to carry the same
// properties; one that lacks a property or carries an extra one fails with
// ErrStructuralMismatch.
func Properties(reducers dict.Dict[string, Reducer]) Reducer {
	return func(results []any) (any, error) {
		records := make([]map[string]any, len(results))
		for i, r := range results {
			m, ok := r.(map[string]any)
			if !ok {
				return nil, failure("properties", fmt.Errorf("%w: got %T", ErrStructuralMismatch, r))
			}
			records[i] = m
		}
		if len(records) == 0 {
			return nil, failure("properties", ErrEmptyBatch)
		}
		head := records[0]
		for name := range head {
			if dict.Lookup(reducers, name).IsNone() {
				return nil, &Error{Shape: "properties", Location: []string{name}, Err: ErrStructuralMismatch}
			}
		}
		for _, rec := range records[1:] {
			for name := range rec {
				if _, ok := head[name]; !ok {
					return nil, &Error{Shape: "properties", Location: []string{name}, Err: ErrStructuralMismatch}
				}
			}
		}
		out := make(map[string]any, len(head))
		for _, e := range reducers {
			if _, ok := head[e.Key]; !ok {
				continue
			}
			variants := make([]any, len(records))
			for i, rec := range records {
				v, ok := rec[e.Key]
				if !ok {
					return nil, &Error{Shape: "properties", Location: []string{e.Key}, Err: ErrStructuralMismatch}
				}
				variants[i] = v
			}
			v, err := e.Value(variants)
			if err != nil {
				return nil, within(e.Key, err)
			}
			out[e.Key] = v
		}
		return out, nil
	}
}

func asDicts[V any](shape string, results []any) ([]dict.Dict[string, V], error) {
	if len(results) == 0 {
		return nil, failure(shape, ErrEmptyBatch)
	}
	out := make([]dict.Dict[string, V], len(results))
	for i, r := range results {
		d, ok := r.(dict.Dict[string, V])
		if !ok {
			return nil, failure(shape, fmt.Errorf("%w: got %T", ErrStructuralMismatch, r))
		}
		out[i] = d
	}
	return out, nil
}
