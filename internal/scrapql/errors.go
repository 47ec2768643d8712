package scrapql

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProperty is returned for a properties payload naming a
	// property the protocol does not declare.
	ErrUnknownProperty = errors.New("unknown property")
	// ErrNoExamples is returned for a leaf protocol built without examples.
	ErrNoExamples = errors.New("no examples")
	// ErrLiteralMismatch is returned when decoding a literal that differs from
	// the protocol constant.
	ErrLiteralMismatch = errors.New("literal mismatch")
)

// PathError records a failure and the path of the node where it happened.
type PathError struct {
	Op   string // "query", "result", "decode" or "examples"
	Path []string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s /%s: %v", e.Op, strings.Join(e.Path, "/"), e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// TypeError reports a payload of the wrong Go type for its shape.
type TypeError struct {
	Shape Kind
	Want  string
	Got   any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: want %s, got %T", e.Shape, e.Want, e.Got)
}

func located(op string, path []string, err error) error {
	var pe *PathError
	if errors.As(err, &pe) {
		return err
	}
	return &PathError{Op: op, Path: path, Err: err}
}
