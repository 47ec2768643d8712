// Package maybe provides an optional value.
package maybe

// Option holds either a value (Some) or nothing (None).
type Option[T any] struct {
	value T
	ok    bool
}

func Some[T any](v T) Option[T] { return Option[T]{value: v, ok: true} }

func None[T any]() Option[T] { return Option[T]{} }

// FromPair builds an option from the comma-ok idiom.
func FromPair[T any](v T, ok bool) Option[T] {
	if !ok {
		return None[T]()
	}
	return Some(v)
}

func (o Option[T]) IsSome() bool { return o.ok }

func (o Option[T]) IsNone() bool { return !o.ok }

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) { return o.value, o.ok }

// OrElse returns the value or def when absent.
func (o Option[T]) OrElse(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

// Sequence turns a list of options into an option of the list. It is None as
// soon as any element is None.
func Sequence[T any](opts []Option[T]) Option[[]T] {
	out := make([]T, len(opts))
	for i, o := range opts {
		if !o.ok {
			return None[[]T]()
		}
		out[i] = o.value
	}
	return Some(out)
}
