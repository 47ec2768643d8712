package scrapql

import (
	"context"
	"fmt"

	"github.com/cyberixae/scrapql/internal/ctxpath"
	"github.com/cyberixae/scrapql/internal/dict"
	"github.com/cyberixae/scrapql/internal/maybe"
)

// ProcessResult walks result and hands every piece of it to the reporters of
// api, one at a time and in input order. The first reporter error stops the
// walk.
func (p *Protocol[QA, RA]) ProcessResult(ctx context.Context, result any, path ctxpath.Path, api RA) (struct{}, error) {
	return struct{}{}, p.report(ctx, result, path, api)
}

func (p *Protocol[QA, RA]) report(ctx context.Context, result any, path ctxpath.Path, api RA) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch p.kind {
	case KindLiteral:
		return nil
	case KindLeaf:
		segs := path.Segments()
		err := observe(ctx, "report", segs, func() error {
			return p.reporter(api)(ctx, result, segs)
		})
		if err != nil {
			return located("result", segs, err)
		}
		return nil
	case KindKeys:
		d, ok := result.(dict.Dict[string, any])
		if !ok {
			return located("result", path.Segments(), &TypeError{Shape: KindKeys, Want: "dict.Dict[string, any]", Got: result})
		}
		_, err := dict.SequenceTaskSeq(ctx, dict.MapWithIndex(d, func(key string, sub any) dict.Task[struct{}] {
			return func(ctx context.Context) (struct{}, error) {
				return struct{}{}, p.child.report(ctx, sub, path.Prepend(key), api)
			}
		}))
		return err
	case KindIds:
		d, ok := result.(dict.Dict[string, maybe.Option[any]])
		if !ok {
			return located("result", path.Segments(), &TypeError{Shape: KindIds, Want: "dict.Dict[string, maybe.Option[any]]", Got: result})
		}
		_, err := dict.SequenceTaskSeq(ctx, dict.MapWithIndex(d, func(id string, o maybe.Option[any]) dict.Task[struct{}] {
			return func(ctx context.Context) (struct{}, error) {
				sub := path.Prepend(id)
				segs := sub.Segments()
				v, exists := o.Get()
				err := observe(ctx, "report-existence", segs, func() error {
					return p.existenceReporter(api)(ctx, exists, segs)
				})
				if err != nil {
					return struct{}{}, located("result", segs, err)
				}
				if !exists {
					return struct{}{}, nil
				}
				return struct{}{}, p.child.report(ctx, v, sub, api)
			}
		}))
		return err
	case KindProperties:
		m, ok := result.(map[string]any)
		if !ok {
			return located("result", path.Segments(), &TypeError{Shape: KindProperties, Want: "map[string]any", Got: result})
		}
		for name := range m {
			if _, ok := p.prop(name); !ok {
				return located("result", path.Segments(), fmt.Errorf("%w %q", ErrUnknownProperty, name))
			}
		}
		var tasks dict.Dict[string, dict.Task[struct{}]]
		for _, pr := range p.props {
			sub, ok := m[pr.Name]
			if !ok {
				continue
			}
			child := pr.Protocol
			tasks = append(tasks, dict.Pair[string, dict.Task[struct{}]](pr.Name, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, child.report(ctx, sub, path, api)
			}))
		}
		_, err := dict.SequenceTaskSeq(ctx, tasks)
		return err
	default:
		return fmt.Errorf("scrapql: invalid shape %d", p.kind)
	}
}
