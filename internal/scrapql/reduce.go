package scrapql

import (
	"context"
	"time"

	"github.com/cyberixae/scrapql/internal/dict"
	"github.com/cyberixae/scrapql/internal/eventbus"
	"github.com/cyberixae/scrapql/internal/events"
	"github.com/cyberixae/scrapql/internal/reduce"
)

// Reducer assembles the reducer of p from the reducers of its children.
func (p *Protocol[QA, RA]) Reducer() reduce.Reducer {
	switch p.kind {
	case KindLiteral:
		return reduce.Literal
	case KindLeaf:
		return reduce.Leaf(p.opts.combiner)
	case KindKeys:
		return reduce.Keys(p.child.Reducer())
	case KindIds:
		return reduce.Ids(p.child.Reducer(), p.opts.existenceChange)
	case KindProperties:
		reducers := make(dict.Dict[string, reduce.Reducer], 0, len(p.props))
		for _, pr := range p.props {
			reducers = append(reducers, dict.Pair(pr.Name, pr.Protocol.Reducer()))
		}
		return reduce.Properties(reducers)
	default:
		return func([]any) (any, error) { return nil, &TypeError{Shape: p.kind, Want: "a valid shape"} }
	}
}

// ReduceResult merges a batch of results of p. The first result is the write
// result, the others are reads.
func (p *Protocol[QA, RA]) ReduceResult(ctx context.Context, results []any) (any, error) {
	start := time.Now()
	out, err := p.Reducer()(results)
	eventbus.Publish(ctx, events.ReduceFinish{
		Shape:    p.kind.String(),
		Batch:    len(results),
		Start:    start,
		Duration: time.Since(start),
		Err:      err,
	})
	return out, err
}
