package scrapql

import (
	"context"

	"github.com/cyberixae/scrapql/internal/ctxpath"
	"github.com/cyberixae/scrapql/internal/reduce"
)

// Kind identifies one of the five shapes.
type Kind int

const (
	KindLiteral Kind = iota
	KindLeaf
	KindKeys
	KindIds
	KindProperties
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindLeaf:
		return "leaf"
	case KindKeys:
		return "keys"
	case KindIds:
		return "ids"
	case KindProperties:
		return "properties"
	default:
		return "unknown"
	}
}

// LeafResolver fetches the result payload for a leaf query.
type LeafResolver func(ctx context.Context, query any, path []string) (any, error)

// ExistenceResolver reports whether id exists below path.
type ExistenceResolver func(ctx context.Context, id string, path []string) (bool, error)

// LeafReporter consumes a leaf result payload.
type LeafReporter func(ctx context.Context, result any, path []string) error

// ExistenceReporter consumes the existence fact of the id ending path.
type ExistenceReporter func(ctx context.Context, exists bool, path []string) error

// Processor is a built query or result processor. Fixing api and path with
// ProcessorInstance yields a plain function of the input.
type Processor[I, O, A any] func(ctx context.Context, input I, path ctxpath.Path, api A) (O, error)

// ProcessorInstance binds proc to api and the starting path.
func ProcessorInstance[I, O, A any](proc Processor[I, O, A], api A, path ctxpath.Path) func(context.Context, I) (O, error) {
	return func(ctx context.Context, input I) (O, error) {
		return proc(ctx, input, path, api)
	}
}

// Prop names one sub-protocol of a properties protocol.
type Prop[QA, RA any] struct {
	Name     string
	Protocol *Protocol[QA, RA]
}

// Protocol is one schema node: its shape, handler connectors, children,
// codecs and examples. QA is the resolver API handed to query processing and
// RA the reporter API handed to result processing.
//
// A Protocol is immutable once built and safe for concurrent use.
type Protocol[QA, RA any] struct {
	kind Kind

	// literal
	query  any
	result any

	// leaf
	resolver func(QA) LeafResolver
	reporter func(RA) LeafReporter

	// ids
	existence         func(QA) ExistenceResolver
	existenceReporter func(RA) ExistenceReporter

	// keys, ids
	child *Protocol[QA, RA]

	// properties
	props []Prop[QA, RA]

	opts options
}

// Literal builds a protocol whose query and result are the constants query
// and result.
func Literal[QA, RA any](query, result any, opts ...Option) *Protocol[QA, RA] {
	return &Protocol[QA, RA]{kind: KindLiteral, query: query, result: result, opts: newOptions(opts)}
}

// Leaf builds a protocol answered by the resolver and reported by the reporter
// that the connectors project out of the APIs.
func Leaf[QA, RA any](resolver func(QA) LeafResolver, reporter func(RA) LeafReporter, opts ...Option) *Protocol[QA, RA] {
	return &Protocol[QA, RA]{kind: KindLeaf, resolver: resolver, reporter: reporter, opts: newOptions(opts)}
}

// Keys builds a protocol mapping keys to child.
func Keys[QA, RA any](child *Protocol[QA, RA], opts ...Option) *Protocol[QA, RA] {
	o := newOptions(opts)
	if len(o.keyExamples) == 0 {
		o.keyExamples = []string{"key"}
	}
	return &Protocol[QA, RA]{kind: KindKeys, child: child, opts: o}
}

// Ids builds a protocol mapping ids to child, gated by an existence check.
func Ids[QA, RA any](existence func(QA) ExistenceResolver, reporter func(RA) ExistenceReporter, child *Protocol[QA, RA], opts ...Option) *Protocol[QA, RA] {
	o := newOptions(opts)
	if len(o.keyExamples) == 0 {
		o.keyExamples = []string{"id"}
	}
	return &Protocol[QA, RA]{kind: KindIds, existence: existence, existenceReporter: reporter, child: child, opts: o}
}

// Properties builds a record protocol. The order of props is the order in
// which results are reported and reduced. A repeated name is ignored.
func Properties[QA, RA any](props ...Prop[QA, RA]) *Protocol[QA, RA] {
	seen := make(map[string]bool, len(props))
	kept := make([]Prop[QA, RA], 0, len(props))
	for _, p := range props {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		kept = append(kept, p)
	}
	return &Protocol[QA, RA]{kind: KindProperties, props: kept, opts: newOptions(nil)}
}

// Kind returns the shape of p.
func (p *Protocol[QA, RA]) Kind() Kind { return p.kind }

// Child returns the sub-protocol of a keys or ids protocol, nil otherwise.
func (p *Protocol[QA, RA]) Child() *Protocol[QA, RA] { return p.child }

// Props returns the declared properties in order, nil for other shapes.
func (p *Protocol[QA, RA]) Props() []Prop[QA, RA] {
	return append([]Prop[QA, RA](nil), p.props...)
}

// Constants returns the query and result of a literal protocol.
func (p *Protocol[QA, RA]) Constants() (query, result any) { return p.query, p.result }

func (p *Protocol[QA, RA]) prop(name string) (*Protocol[QA, RA], bool) {
	for _, pr := range p.props {
		if pr.Name == name {
			return pr.Protocol, true
		}
	}
	return nil, false
}

// Option configures a Protocol.
type Option func(*options)

type options struct {
	queryExamples   []any
	resultExamples  []any
	keyExamples     []string
	combiner        reduce.Combiner
	existenceChange func() error
	queryCodec      func(any) (any, error)
	resultCodec     func(any) (any, error)
	errEncoder      func(error) any
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithQueryExamples sets the example queries of a leaf.
func WithQueryExamples(examples ...any) Option {
	return func(o *options) { o.queryExamples = examples }
}

// WithResultExamples sets the example results of a leaf.
func WithResultExamples(examples ...any) Option {
	return func(o *options) { o.resultExamples = examples }
}

// WithKeyExamples sets the example keys of a keys protocol or the example ids
// of an ids protocol.
func WithKeyExamples(keys ...string) Option {
	return func(o *options) { o.keyExamples = keys }
}

// WithCombiner sets how a leaf reducer folds read results into the write
// result. The default is reduce.RequireEqual.
func WithCombiner(c reduce.Combiner) Option {
	return func(o *options) { o.combiner = c }
}

// WithExistenceChange sets the error an ids reducer reports when the batch
// disagrees on whether an id exists. The default is reduce.ErrExistenceChange.
func WithExistenceChange(f func() error) Option {
	return func(o *options) { o.existenceChange = f }
}

// WithQueryCodec validates and converts decoded leaf queries.
func WithQueryCodec(f func(any) (any, error)) Option {
	return func(o *options) { o.queryCodec = f }
}

// WithResultCodec validates and converts decoded leaf results.
func WithResultCodec(f func(any) (any, error)) Option {
	return func(o *options) { o.resultCodec = f }
}

// WithErrEncoder sets how EncodeErr turns an error into a JSON value. The
// default encodes the error message as a string.
func WithErrEncoder(f func(error) any) Option {
	return func(o *options) { o.errEncoder = f }
}
