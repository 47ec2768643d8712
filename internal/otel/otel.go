package otel

import (
	"context"
	"strings"
	"sync"

	"github.com/cyberixae/scrapql/internal/eventbus"
	"github.com/cyberixae/scrapql/internal/events"
	"github.com/cyberixae/scrapql/internal/runid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := NewSubscriber(tp.Tracer("scrapql"))
	unsubscribe := sub.Register()

	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Subscriber turns processor events into spans: one span per query, result
// or reduce run, with one child span per handler call.
type Subscriber struct {
	tracer trace.Tracer
	runs   sync.Map // rid -> trace.Span
}

// NewSubscriber creates a Subscriber recording spans with tracer.
func NewSubscriber(tracer trace.Tracer) *Subscriber {
	return &Subscriber{tracer: tracer}
}

func (s *Subscriber) start(ctx context.Context, name, shape string) {
	rid, _ := runid.FromContext(ctx)
	_, span := s.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("scrapql.shape", shape),
		attribute.Int64("scrapql.run_id", rid),
	)
	s.runs.Store(rid, span)
}

func (s *Subscriber) finish(ctx context.Context, err error) {
	rid, _ := runid.FromContext(ctx)
	v, ok := s.runs.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Register subscribes s to the global bus and returns a function removing
// every subscription.
func (s *Subscriber) Register() (unsubscribe func()) {
	subs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.QueryStart) {
			s.start(ctx, "scrapql.query", e.Shape)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
			s.finish(ctx, e.Err)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ResultStart) {
			s.start(ctx, "scrapql.result", e.Shape)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ResultFinish) {
			s.finish(ctx, e.Err)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HandlerCall) {
			rid, _ := runid.FromContext(ctx)
			parent := ctx
			if v, ok := s.runs.Load(rid); ok {
				parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
			_, span := s.tracer.Start(parent, "scrapql.handler."+e.Handler, trace.WithTimestamp(e.Start))
			span.SetAttributes(attribute.String("scrapql.path", "/"+strings.Join(e.Path, "/")))
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End(trace.WithTimestamp(e.Start.Add(e.Duration)))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ReduceFinish) {
			_, span := s.tracer.Start(ctx, "scrapql.reduce", trace.WithTimestamp(e.Start))
			span.SetAttributes(
				attribute.String("scrapql.shape", e.Shape),
				attribute.Int("scrapql.batch", e.Batch),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End(trace.WithTimestamp(e.Start.Add(e.Duration)))
		}),
	}
	return func() {
		for _, un := range subs {
			un()
		}
	}
}
