package scrapql

import (
	"context"
	"fmt"
	"time"

	"github.com/cyberixae/scrapql/internal/ctxpath"
	"github.com/cyberixae/scrapql/internal/dict"
	"github.com/cyberixae/scrapql/internal/eventbus"
	"github.com/cyberixae/scrapql/internal/events"
	"github.com/cyberixae/scrapql/internal/maybe"
)

// ProcessQuery walks query, calling the resolvers of api, and returns the
// result. path is the location of p within the whole query.
func (p *Protocol[QA, RA]) ProcessQuery(ctx context.Context, query any, path ctxpath.Path, api QA) (any, error) {
	switch p.kind {
	case KindLiteral:
		return p.result, nil
	case KindLeaf:
		return p.queryLeaf(ctx, query, path, api)
	case KindKeys:
		return p.queryKeys(ctx, query, path, api)
	case KindIds:
		return p.queryIds(ctx, query, path, api)
	case KindProperties:
		return p.queryProperties(ctx, query, path, api)
	default:
		return nil, fmt.Errorf("scrapql: invalid shape %d", p.kind)
	}
}

func (p *Protocol[QA, RA]) queryLeaf(ctx context.Context, query any, path ctxpath.Path, api QA) (any, error) {
	segs := path.Segments()
	var out any
	err := observe(ctx, "resolve", segs, func() error {
		var err error
		out, err = p.resolver(api)(ctx, query, segs)
		return err
	})
	if err != nil {
		return nil, located("query", segs, err)
	}
	return out, nil
}

func (p *Protocol[QA, RA]) queryKeys(ctx context.Context, query any, path ctxpath.Path, api QA) (any, error) {
	d, ok := query.(dict.Dict[string, any])
	if !ok {
		return nil, located("query", path.Segments(), &TypeError{Shape: KindKeys, Want: "dict.Dict[string, any]", Got: query})
	}
	tasks := dict.MapWithIndex(d, func(key string, sub any) dict.Task[any] {
		return func(ctx context.Context) (any, error) {
			return p.child.ProcessQuery(ctx, sub, path.Prepend(key), api)
		}
	})
	out, err := dict.SequenceTask(ctx, tasks)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Protocol[QA, RA]) queryIds(ctx context.Context, query any, path ctxpath.Path, api QA) (any, error) {
	d, ok := query.(dict.Dict[string, any])
	if !ok {
		return nil, located("query", path.Segments(), &TypeError{Shape: KindIds, Want: "dict.Dict[string, any]", Got: query})
	}
	segs := path.Segments()
	tasks := dict.MapWithIndex(d, func(id string, sub any) dict.Task[maybe.Option[any]] {
		return func(ctx context.Context) (maybe.Option[any], error) {
			var exists bool
			at := path.Prepend(id).Segments()
			err := observe(ctx, "exists", at, func() error {
				var err error
				exists, err = p.existence(api)(ctx, id, segs)
				return err
			})
			if err != nil {
				return maybe.None[any](), located("query", at, err)
			}
			if !exists {
				return maybe.None[any](), nil
			}
			r, err := p.child.ProcessQuery(ctx, sub, path.Prepend(id), api)
			if err != nil {
				return maybe.None[any](), err
			}
			return maybe.Some(r), nil
		}
	})
	out, err := dict.SequenceTask(ctx, tasks)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Protocol[QA, RA]) queryProperties(ctx context.Context, query any, path ctxpath.Path, api QA) (any, error) {
	m, ok := query.(map[string]any)
	if !ok {
		return nil, located("query", path.Segments(), &TypeError{Shape: KindProperties, Want: "map[string]any", Got: query})
	}
	for name := range m {
		if _, ok := p.prop(name); !ok {
			return nil, located("query", path.Segments(), fmt.Errorf("%w %q", ErrUnknownProperty, name))
		}
	}
	var tasks dict.Dict[string, dict.Task[any]]
	for _, pr := range p.props {
		sub, ok := m[pr.Name]
		if !ok {
			continue
		}
		child := pr.Protocol
		tasks = append(tasks, dict.Pair[string, dict.Task[any]](pr.Name, func(ctx context.Context) (any, error) {
			return child.ProcessQuery(ctx, sub, path, api)
		}))
	}
	results, err := dict.SequenceTask(ctx, tasks)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(results))
	for _, e := range results {
		out[e.Key] = e.Value
	}
	return out, nil
}

// observe runs call and publishes a HandlerCall event describing it.
func observe(ctx context.Context, handler string, path []string, call func() error) error {
	start := time.Now()
	err := call()
	eventbus.Publish(ctx, events.HandlerCall{
		Handler:  handler,
		Path:     path,
		Start:    start,
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}
