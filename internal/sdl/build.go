package sdl

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/cyberixae/scrapql/internal/handlers"
	"github.com/cyberixae/scrapql/internal/jsonv"
	"github.com/cyberixae/scrapql/internal/scrapql"
)

// DefaultRoot is the root type used when neither the caller nor a schema
// definition names one.
const DefaultRoot = "Root"

var directiveArgs = map[string][]string{
	"literal": {"query", "result"},
	"leaf":    {"resolver", "reporter", "queryExamples", "resultExamples", "combine"},
	"keys":    {"examples"},
	"ids":     {"existence", "reporter", "examples"},
}

type builder struct {
	types      map[string]*ast.Definition
	schemaRoot string
	violations []*Violation
}

// Build parses every source of disc and compiles the definition rooted at the
// object type root. An empty root selects the query type of a schema
// definition, or DefaultRoot. All problems found are returned together as a
// ValidationError.
func Build(ctx context.Context, disc Discovery, root string) (*Definition, error) {
	sources, err := disc.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	b := &builder{types: make(map[string]*ast.Definition)}
	for _, src := range sources {
		doc, err := parser.ParseSchema(&ast.Source{Name: src.Name, Input: src.Content})
		if err != nil {
			b.addViolation(violationFromParse(src.Name, err))
			continue
		}
		b.populate(doc)
	}
	if len(b.violations) > 0 {
		return nil, ValidationError(b.violations)
	}

	if root == "" {
		root = b.schemaRoot
	}
	if root == "" {
		root = DefaultRoot
	}
	def, ok := b.types[root]
	if !ok {
		return nil, ValidationError{violationRootNotFound(root)}
	}
	node := b.object(root, root, def.Position, nil)
	if len(b.violations) > 0 {
		return nil, ValidationError(b.violations)
	}
	return &Definition{
		Root:     node,
		Protocol: compile(node),
		Refs:     collectRefs(node),
	}, nil
}

func (b *builder) addViolation(v ...*Violation) {
	b.violations = append(b.violations, v...)
}

func (b *builder) populate(doc *ast.SchemaDocument) {
	for _, sd := range doc.Schema {
		for _, op := range sd.OperationTypes {
			if op.Operation == ast.Query {
				b.schemaRoot = op.Type
			}
		}
	}
	for _, d := range doc.Definitions {
		if _, dup := b.types[d.Name]; dup {
			b.addViolation(violationDuplicateDefinition(d.Name, d.Position))
			continue
		}
		copied := *d
		copied.Fields = append(ast.FieldList(nil), d.Fields...)
		b.types[d.Name] = &copied
	}
	for _, ext := range doc.Extensions {
		if d, ok := b.types[ext.Name]; ok && d.Kind == ext.Kind {
			d.Fields = append(d.Fields, ext.Fields...)
			continue
		}
		b.addViolation(violationTypeNotFound(ext.Name, ext.Position))
	}
}

// object builds the properties node of the object type typeName. visiting
// holds the object types on the way from the root.
func (b *builder) object(name, typeName string, pos *ast.Position, visiting []string) *Node {
	for _, v := range visiting {
		if v == typeName {
			b.addViolation(violationCycle(append(visiting, typeName), pos))
			return nil
		}
	}
	def, ok := b.types[typeName]
	if !ok {
		b.addViolation(violationTypeNotFound(typeName, pos))
		return nil
	}
	if def.Kind != ast.Object {
		b.addViolation(violationNotObject(typeName, pos))
		return nil
	}
	visiting = append(visiting[:len(visiting):len(visiting)], typeName)

	node := &Node{Kind: scrapql.KindProperties, Name: name, Type: typeName, Position: def.Position}
	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if seen[f.Name] {
			b.addViolation(violationDuplicateField(f.Name, typeName, f.Position))
			continue
		}
		seen[f.Name] = true
		if child := b.field(typeName, f, visiting); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

func (b *builder) field(typeName string, f *ast.FieldDefinition, visiting []string) *Node {
	var containers []*ast.Directive
	var terminal *ast.Directive
	for _, dir := range f.Directives {
		args, known := directiveArgs[dir.Name]
		if !known {
			if dir.Name == "deprecated" {
				continue
			}
			b.addViolation(violationUnknownDirective(dir.Name, f.Name, typeName, dir.Position))
			continue
		}
		b.checkArguments(dir, args)
		if terminal != nil {
			b.addViolation(violationAfterTerminal(dir.Name, terminal.Name, f.Name, dir.Position))
			continue
		}
		switch dir.Name {
		case "keys", "ids":
			containers = append(containers, dir)
		default:
			terminal = dir
		}
	}

	var node *Node
	switch {
	case terminal == nil:
		node = b.object(f.Name, f.Type.Name(), f.Type.Position, visiting)
	case terminal.Name == "literal":
		node = b.literal(f, terminal)
	default:
		node = b.leaf(f, terminal)
	}
	if node == nil {
		return nil
	}
	for i := len(containers) - 1; i >= 0; i-- {
		node = b.container(f, containers[i], node)
	}
	node.Name = f.Name
	return node
}

func (b *builder) literal(f *ast.FieldDefinition, dir *ast.Directive) *Node {
	n := &Node{Kind: scrapql.KindLiteral, Position: dir.Position}
	q, ok := b.value(dir, "query")
	if !ok {
		b.addViolation(violationMissingArgument(dir.Name, "query", dir.Position))
		return nil
	}
	n.Query = q
	n.Result = q
	if r, ok := b.value(dir, "result"); ok {
		n.Result = r
	}
	return n
}

func (b *builder) leaf(f *ast.FieldDefinition, dir *ast.Directive) *Node {
	n := &Node{
		Kind:     scrapql.KindLeaf,
		Resolver: b.stringArg(dir, "resolver", f.Name),
		Reporter: b.stringArg(dir, "reporter", f.Name),
		Combine:  b.stringArg(dir, "combine", ""),
		Position: dir.Position,
	}
	switch n.Combine {
	case "", CombineRequireEqual, CombineKeepWrite:
	default:
		b.addViolation(violationArgumentKind(dir.Name, "combine", `"`+CombineRequireEqual+`" or "`+CombineKeepWrite+`"`, dir.Position))
	}
	if v, ok := b.value(dir, "queryExamples"); ok {
		n.QueryExamples = b.list(dir, "queryExamples", v)
	}
	if v, ok := b.value(dir, "resultExamples"); ok {
		n.ResultExamples = b.list(dir, "resultExamples", v)
	}
	return n
}

func (b *builder) container(f *ast.FieldDefinition, dir *ast.Directive, child *Node) *Node {
	n := &Node{Children: []*Node{child}, Position: dir.Position}
	if dir.Name == "keys" {
		n.Kind = scrapql.KindKeys
	} else {
		n.Kind = scrapql.KindIds
		n.Existence = b.stringArg(dir, "existence", f.Name)
		n.ExistenceReporter = b.stringArg(dir, "reporter", f.Name)
	}
	if v, ok := b.value(dir, "examples"); ok {
		for _, x := range b.list(dir, "examples", v) {
			s, ok := x.(string)
			if !ok {
				b.addViolation(violationArgumentKind(dir.Name, "examples", "a list of strings", dir.Position))
				break
			}
			n.Keys = append(n.Keys, s)
		}
	}
	if len(n.Keys) == 0 && n.Kind == scrapql.KindKeys {
		n.Keys = []string{"key"}
	} else if len(n.Keys) == 0 {
		n.Keys = []string{"id"}
	}
	child.Name = "*"
	return n
}

func (b *builder) checkArguments(dir *ast.Directive, allowed []string) {
	for _, arg := range dir.Arguments {
		ok := false
		for _, a := range allowed {
			if a == arg.Name {
				ok = true
				break
			}
		}
		if !ok {
			b.addViolation(violationUnknownArgument(dir.Name, arg.Name, arg.Position))
		}
	}
}

// value returns the JSON form of the argument name.
func (b *builder) value(dir *ast.Directive, name string) (any, bool) {
	arg := dir.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return nil, false
	}
	raw, err := arg.Value.Value(nil)
	if err != nil {
		b.addViolation(violationArgumentKind(dir.Name, name, "a constant value", arg.Position))
		return nil, false
	}
	v, err := jsonv.Canonical(raw)
	if err != nil {
		b.addViolation(violationArgumentKind(dir.Name, name, "a JSON value", arg.Position))
		return nil, false
	}
	return v, true
}

func (b *builder) stringArg(dir *ast.Directive, name, def string) string {
	v, ok := b.value(dir, name)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		b.addViolation(violationArgumentKind(dir.Name, name, "a non-empty string", dir.Position))
		return def
	}
	return s
}

func (b *builder) list(dir *ast.Directive, name string, v any) []any {
	xs, ok := v.([]any)
	if !ok || len(xs) == 0 {
		b.addViolation(violationArgumentKind(dir.Name, name, "a non-empty list", dir.Position))
		return nil
	}
	return xs
}

func collectRefs(root *Node) []handlers.Ref {
	seen := map[handlers.Ref]bool{}
	var walk func(n *Node)
	walk = func(n *Node) {
		switch n.Kind {
		case scrapql.KindLeaf:
			seen[handlers.Ref{Kind: handlers.KindResolve, Name: n.Resolver}] = true
			seen[handlers.Ref{Kind: handlers.KindReport, Name: n.Reporter}] = true
		case scrapql.KindIds:
			seen[handlers.Ref{Kind: handlers.KindExists, Name: n.Existence}] = true
			seen[handlers.Ref{Kind: handlers.KindReportExistence, Name: n.ExistenceReporter}] = true
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	out := make([]handlers.Ref, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func jsonText(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(raw)
}
