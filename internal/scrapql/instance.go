package scrapql

import (
	"context"
	"time"

	"github.com/cyberixae/scrapql/internal/ctxpath"
	"github.com/cyberixae/scrapql/internal/eventbus"
	"github.com/cyberixae/scrapql/internal/events"
	"github.com/cyberixae/scrapql/internal/runid"
)

// QueryInstance returns the query processor of p bound to the resolvers api
// and the root path.
func (p *Protocol[QA, RA]) QueryInstance(api QA) func(context.Context, any) (any, error) {
	process := ProcessorInstance(p.ProcessQuery, api, ctxpath.Zero)
	return func(ctx context.Context, query any) (any, error) {
		ctx, _ = runid.Ensure(ctx)
		shape := p.kind.String()
		eventbus.Publish(ctx, events.QueryStart{Shape: shape})
		start := time.Now()
		out, err := process(ctx, query)
		eventbus.Publish(ctx, events.QueryFinish{Shape: shape, Err: err, Duration: time.Since(start)})
		return out, err
	}
}

// ResultInstance returns the result processor of p bound to the reporters api
// and the root path.
func (p *Protocol[QA, RA]) ResultInstance(api RA) func(context.Context, any) error {
	process := ProcessorInstance(p.ProcessResult, api, ctxpath.Zero)
	return func(ctx context.Context, result any) error {
		ctx, _ = runid.Ensure(ctx)
		shape := p.kind.String()
		eventbus.Publish(ctx, events.ResultStart{Shape: shape})
		start := time.Now()
		_, err := process(ctx, result)
		eventbus.Publish(ctx, events.ResultFinish{Shape: shape, Err: err, Duration: time.Since(start)})
		return err
	}
}
