package scrapql

import (
	"github.com/cyberixae/scrapql/internal/ctxpath"
	"github.com/cyberixae/scrapql/internal/dict"
	"github.com/cyberixae/scrapql/internal/examples"
	"github.com/cyberixae/scrapql/internal/maybe"
)

// QueryExamples enumerates representative queries of p. Keys and ids combine
// their key examples with the child examples into single-entry dicts;
// properties combine the examples of every declared property.
func (p *Protocol[QA, RA]) QueryExamples() (examples.Gen[any], error) {
	return p.examples(false, ctxpath.Zero)
}

// ResultExamples enumerates representative results of p. Ids results hold
// Some of the child examples.
func (p *Protocol[QA, RA]) ResultExamples() (examples.Gen[any], error) {
	return p.examples(true, ctxpath.Zero)
}

func (p *Protocol[QA, RA]) examples(isResult bool, path ctxpath.Path) (examples.Gen[any], error) {
	switch p.kind {
	case KindLiteral:
		if isResult {
			return examples.New(p.result), nil
		}
		return examples.New(p.query), nil
	case KindLeaf:
		xs := p.opts.queryExamples
		if isResult {
			xs = p.opts.resultExamples
		}
		g, err := examples.FromSlice(xs)
		if err != nil {
			return nil, &PathError{Op: "examples", Path: path.Segments(), Err: ErrNoExamples}
		}
		return g, nil
	case KindKeys, KindIds:
		keys, err := examples.FromSlice(p.opts.keyExamples)
		if err != nil {
			return nil, &PathError{Op: "examples", Path: path.Segments(), Err: ErrNoExamples}
		}
		sub, err := p.child.examples(isResult, path.Prepend(p.opts.keyExamples[0]))
		if err != nil {
			return nil, err
		}
		wrapSome := p.kind == KindIds && isResult
		return examples.Map(examples.SequenceT2(keys, sub), func(t examples.Tuple2[string, any]) any {
			if wrapSome {
				return dict.New(dict.Pair(t.First, maybe.Some(t.Second)))
			}
			return dict.New(dict.Pair(t.First, t.Second))
		}), nil
	case KindProperties:
		named := make(dict.Dict[string, examples.Gen[any]], 0, len(p.props))
		for _, pr := range p.props {
			g, err := pr.Protocol.examples(isResult, path)
			if err != nil {
				return nil, err
			}
			named = append(named, dict.Pair(pr.Name, g))
		}
		return examples.Map(examples.SequenceS(named), func(m map[string]any) any { return m }), nil
	}
	return nil, &PathError{Op: "examples", Path: path.Segments(), Err: &TypeError{Shape: p.kind, Want: "a valid shape"}}
}
