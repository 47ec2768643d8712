package sdl

import (
	"github.com/cyberixae/scrapql/internal/handlers"
	"github.com/cyberixae/scrapql/internal/reduce"
	"github.com/cyberixae/scrapql/internal/scrapql"
)

type protocol = scrapql.Protocol[*handlers.Set, *handlers.Set]

func compile(n *Node) *protocol {
	switch n.Kind {
	case scrapql.KindLiteral:
		return scrapql.Literal[*handlers.Set, *handlers.Set](n.Query, n.Result)
	case scrapql.KindLeaf:
		var opts []scrapql.Option
		if len(n.QueryExamples) > 0 {
			opts = append(opts, scrapql.WithQueryExamples(n.QueryExamples...))
		}
		if len(n.ResultExamples) > 0 {
			opts = append(opts, scrapql.WithResultExamples(n.ResultExamples...))
		}
		if n.Combine == CombineKeepWrite {
			opts = append(opts, scrapql.WithCombiner(reduce.KeepWrite))
		}
		return scrapql.Leaf(handlers.Resolver(n.Resolver), handlers.Reporter(n.Reporter), opts...)
	case scrapql.KindKeys:
		return scrapql.Keys(compile(n.Children[0]), keyOpts(n)...)
	case scrapql.KindIds:
		return scrapql.Ids(
			handlers.Existence(n.Existence),
			handlers.ExistenceReporter(n.ExistenceReporter),
			compile(n.Children[0]),
			keyOpts(n)...,
		)
	default:
		props := make([]scrapql.Prop[*handlers.Set, *handlers.Set], 0, len(n.Children))
		for _, c := range n.Children {
			props = append(props, scrapql.Prop[*handlers.Set, *handlers.Set]{Name: c.Name, Protocol: compile(c)})
		}
		return scrapql.Properties(props...)
	}
}

func keyOpts(n *Node) []scrapql.Option {
	if len(n.Keys) == 0 {
		return nil
	}
	return []scrapql.Option{scrapql.WithKeyExamples(n.Keys...)}
}
