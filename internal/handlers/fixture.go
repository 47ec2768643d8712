package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cyberixae/scrapql/internal/scrapql"
)

// ErrNotFound is returned by fixture resolvers for paths the document lacks.
var ErrNotFound = errors.New("not found")

// Fixture answers resolvers from an in-memory JSON document. The document is
// an object keyed by handler name; below that name, path segments select
// nested object members.
//
//	{"title": {"id1": {"en": "Hello"}}, "known": {"id1": true}}
//
// Resolver "title" answers path [id1 en] with "Hello", and existence resolver
// "known" reports id1 as present at the root.
type Fixture struct {
	doc map[string]any
}

// LoadFixture parses a fixture document.
func LoadFixture(data []byte) (*Fixture, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &Fixture{doc: doc}, nil
}

// NewFixture wraps an already decoded document.
func NewFixture(doc map[string]any) *Fixture { return &Fixture{doc: doc} }

func (f *Fixture) at(name string, path []string) (any, error) {
	cur, ok := f.doc[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	for i, seg := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, name, strings.Join(path[:i+1], "/"))
		}
		if cur, ok = obj[seg]; !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, name, strings.Join(path[:i+1], "/"))
		}
	}
	return cur, nil
}

// Resolver answers a leaf with the document value at name and path. The
// query payload is ignored.
func (f *Fixture) Resolver(name string) scrapql.LeafResolver {
	return func(ctx context.Context, _ any, path []string) (any, error) {
		return f.at(name, path)
	}
}

// Existence reports whether the document value at name and path is an object
// with a member id, or an array holding the string id.
func (f *Fixture) Existence(name string) scrapql.ExistenceResolver {
	return func(ctx context.Context, id string, path []string) (bool, error) {
		cur, err := f.at(name, path)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		switch v := cur.(type) {
		case map[string]any:
			_, ok := v[id]
			return ok, nil
		case []any:
			for _, x := range v {
				if x == id {
					return true, nil
				}
			}
		}
		return false, nil
	}
}

// Install registers the fixture resolvers named by the resolve and exists
// refs in s.
func (f *Fixture) Install(s *Set, refs []Ref) *Set {
	for _, r := range refs {
		switch r.Kind {
		case KindResolve:
			s.RegisterResolver(r.Name, f.Resolver(r.Name))
		case KindExists:
			s.RegisterExistence(r.Name, f.Existence(r.Name))
		}
	}
	return s
}
