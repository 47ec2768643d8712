// Package sdl reads protocol definitions written in GraphQL SDL and compiles
// them into scrapql protocols whose handlers are looked up by name.
//
// Object types are properties nodes, one property per field. A field's shape
// is given by its directives, read in source order: any number of container
// directives (@keys, @ids) followed by at most one terminal directive
// (@leaf, @literal). Without a terminal directive the field's named type must
// be another object type.
//
//	schema { query: Root }
//
//	type Root {
//	  protocol: String @literal(query: "scrapql/1")
//	  customers: Customer @ids(existence: "customerExists", examples: ["c1"])
//	}
//
//	type Customer {
//	  name: String @leaf(resolver: "customerName", resultExamples: ["Ann"])
//	  reports: String @keys(examples: ["2020"]) @leaf(resolver: "report")
//	}
package sdl

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/cyberixae/scrapql/internal/handlers"
	"github.com/cyberixae/scrapql/internal/scrapql"
)

// Combiner names accepted by @leaf(combine: ...).
const (
	CombineRequireEqual = "require-equal"
	CombineKeepWrite    = "keep-write"
)

// Node is one schema node of a definition.
type Node struct {
	Kind scrapql.Kind
	// Name is the field name, or the type name for the root.
	Name string
	// Type is the object type of a properties node.
	Type string

	Query  any // literal
	Result any // literal

	Resolver       string // leaf
	Reporter       string // leaf
	QueryExamples  []any  // leaf
	ResultExamples []any  // leaf
	Combine        string // leaf

	Existence         string // ids
	ExistenceReporter string // ids

	Keys []string // keys, ids

	Children []*Node

	Position *ast.Position `json:"-"`
}

// Definition is a compiled protocol definition.
type Definition struct {
	Root     *Node
	Protocol *scrapql.Protocol[*handlers.Set, *handlers.Set]
	// Refs lists every handler the protocol calls, sorted and unique.
	Refs []handlers.Ref
}

// Render prints the node tree, one node per line, children indented.
func Render(n *Node) string {
	var b strings.Builder
	render(&b, n, 0)
	return b.String()
}

func render(b *strings.Builder, n *Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Name)
	b.WriteString(": ")
	b.WriteString(n.Kind.String())
	switch n.Kind {
	case scrapql.KindLiteral:
		fmt.Fprintf(b, " query=%s result=%s", jsonText(n.Query), jsonText(n.Result))
	case scrapql.KindLeaf:
		fmt.Fprintf(b, " resolver=%s reporter=%s", n.Resolver, n.Reporter)
		if n.Combine != "" {
			fmt.Fprintf(b, " combine=%s", n.Combine)
		}
	case scrapql.KindKeys:
		fmt.Fprintf(b, " examples=[%s]", strings.Join(n.Keys, " "))
	case scrapql.KindIds:
		fmt.Fprintf(b, " existence=%s reporter=%s examples=[%s]", n.Existence, n.ExistenceReporter, strings.Join(n.Keys, " "))
	case scrapql.KindProperties:
		fmt.Fprintf(b, " type=%s", n.Type)
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		render(b, c, depth+1)
	}
}
