package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/cyberixae/scrapql/internal/eventbus"
	"github.com/cyberixae/scrapql/internal/events"
	"github.com/cyberixae/scrapql/internal/examples"
	"github.com/cyberixae/scrapql/internal/handlers"
	"github.com/cyberixae/scrapql/internal/otel"
	"github.com/cyberixae/scrapql/internal/sdl"
)

const rootUsage = `scrapql - declarative query/result protocol tools

USAGE:
  scrapql <command> [flags] [files]

COMMANDS:
  check      Validate a protocol definition and print its shape tree
  examples   Print example queries or results, one JSON document per line
  query      Answer a query file from a JSON fixture and print the result
  report     Walk a result file and print one line per reporter call
  reduce     Merge result files into one result
  help       Show help for any command
`

const commonUsage = `  -schema <path>          SDL file or directory of .graphql files (required)
  -root <type>            Root object type (default: schema query type, else Root)
`

const checkUsage = `check FLAGS:
` + commonUsage

const examplesUsage = `examples FLAGS:
` + commonUsage + `  -kind <query|result>    Which examples to print (default: query)
  -limit <n>              Print at most n examples (default: 20)
`

const queryUsage = `query FLAGS <query.json|->:
` + commonUsage + `  -fixture <file>         JSON document answering resolvers (required)
  -verbose                Log processor events to stderr
  -otel.endpoint <addr>   OTLP collector endpoint
  -otel.service <name>    OpenTelemetry service name (default: scrapql)
`

const reportUsage = `report FLAGS <result.json|->:
` + commonUsage + `  -verbose                Log processor events to stderr
  -otel.endpoint <addr>   OTLP collector endpoint
  -otel.service <name>    OpenTelemetry service name (default: scrapql)
`

const reduceUsage = `reduce FLAGS <write.json> [read.json...]:
` + commonUsage + `  -verbose                Log processor events to stderr
  -otel.endpoint <addr>   OTLP collector endpoint
  -otel.service <name>    OpenTelemetry service name (default: scrapql)
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

// otelSetup is replaced in tests.
var otelSetup = otel.Setup

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *log.Logger
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr, log: log.New(stderr, "scrapql: ", 0)}
	global := flag.NewFlagSet("scrapql", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "check":
		return c.check(cmdArgs)
	case "examples":
		return c.examples(cmdArgs)
	case "query":
		return c.query(cmdArgs)
	case "report":
		return c.report(cmdArgs)
	case "reduce":
		return c.reduce(cmdArgs)
	case "help":
		return c.help(cmdArgs)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) help(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "check":
		fmt.Fprint(c.stdout, checkUsage)
	case "examples":
		fmt.Fprint(c.stdout, examplesUsage)
	case "query":
		fmt.Fprint(c.stdout, queryUsage)
	case "report":
		fmt.Fprint(c.stdout, reportUsage)
	case "reduce":
		fmt.Fprint(c.stdout, reduceUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// common holds the flags every command shares.
type common struct {
	schema       string
	root         string
	verbose      bool
	otelEndpoint string
	otelService  string
}

func (co *common) register(fs *flag.FlagSet, observable bool) {
	fs.StringVar(&co.schema, "schema", "", "SDL file or directory")
	fs.StringVar(&co.root, "root", "", "Root object type")
	if observable {
		co.otelService = "scrapql"
		fs.BoolVar(&co.verbose, "verbose", false, "Log processor events")
		fs.StringVar(&co.otelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
		fs.StringVar(&co.otelService, "otel.service", co.otelService, "OpenTelemetry service name")
	}
}

func (c *cli) parse(name, usage string, args []string, co *common, observable bool, extra func(*flag.FlagSet)) (*flag.FlagSet, *sdl.Definition, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	co.register(fs, observable)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(c.stderr, usage)
		return nil, nil, err
	}
	if co.schema == "" {
		fmt.Fprint(c.stderr, usage)
		return nil, nil, fmt.Errorf("-schema is required")
	}
	def, err := sdl.Load(co.schema, co.root)
	if err != nil {
		return nil, nil, fmt.Errorf("load definition: %w", err)
	}
	return fs, def, nil
}

// observe installs the event bus, the verbose logger and tracing. The
// returned function undoes all of it.
func (c *cli) observe(co *common) (func(), error) {
	eventbus.Use(eventbus.New())
	var unsubs []func()
	if co.verbose {
		unsubs = subscribeLogger(c.log)
	}
	shutdown, err := otelSetup(co.otelEndpoint, co.otelService)
	if err != nil {
		eventbus.Use(nil)
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			c.log.Printf("otel shutdown: %v", err)
		}
		for _, un := range unsubs {
			un()
		}
		eventbus.Use(nil)
	}, nil
}

func subscribeLogger(l *log.Logger) []func() {
	status := func(err error) string {
		if err != nil {
			return "error: " + err.Error()
		}
		return "ok"
	}
	return []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.QueryStart) {
			l.Printf("query start shape=%s", e.Shape)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
			l.Printf("query finish shape=%s %s", e.Shape, status(e.Err))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ResultStart) {
			l.Printf("result start shape=%s", e.Shape)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ResultFinish) {
			l.Printf("result finish shape=%s %s", e.Shape, status(e.Err))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HandlerCall) {
			l.Printf("%s /%s %s", e.Handler, strings.Join(e.Path, "/"), status(e.Err))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ReduceFinish) {
			l.Printf("reduce shape=%s batch=%d %s", e.Shape, e.Batch, status(e.Err))
		}),
	}
}

func (c *cli) check(args []string) error {
	var co common
	_, def, err := c.parse("check", checkUsage, args, &co, false, nil)
	if err != nil {
		return err
	}
	fmt.Fprint(c.stdout, sdl.Render(def.Root))
	fmt.Fprintln(c.stdout, "handlers:")
	for _, r := range def.Refs {
		fmt.Fprintf(c.stdout, "  %s\n", r)
	}
	return nil
}

func (c *cli) examples(args []string) error {
	var co common
	kind := "query"
	limit := 20
	_, def, err := c.parse("examples", examplesUsage, args, &co, false, func(fs *flag.FlagSet) {
		fs.StringVar(&kind, "kind", kind, "query or result")
		fs.IntVar(&limit, "limit", limit, "Maximum number of examples")
	})
	if err != nil {
		return err
	}
	p := def.Protocol
	gen, encode := p.QueryExamples, p.EncodeQuery
	switch kind {
	case "query":
	case "result":
		gen, encode = p.ResultExamples, p.EncodeResult
	default:
		fmt.Fprint(c.stderr, examplesUsage)
		return fmt.Errorf("invalid -kind %q", kind)
	}
	g, err := gen()
	if err != nil {
		return err
	}
	for v := range examples.All(examples.Take(g, limit)) {
		raw, err := encode(v)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s\n", raw)
	}
	return nil
}

func (c *cli) query(args []string) error {
	var co common
	fixturePath := ""
	fs, def, err := c.parse("query", queryUsage, args, &co, true, func(fs *flag.FlagSet) {
		fs.StringVar(&fixturePath, "fixture", "", "JSON fixture document")
	})
	if err != nil {
		return err
	}
	if fixturePath == "" || fs.NArg() != 1 {
		fmt.Fprint(c.stderr, queryUsage)
		return fmt.Errorf("-fixture and one query file are required")
	}
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		return err
	}
	fixture, err := handlers.LoadFixture(raw)
	if err != nil {
		return err
	}
	data, err := c.readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	q, err := def.Protocol.DecodeQuery(data)
	if err != nil {
		return err
	}

	done, err := c.observe(&co)
	if err != nil {
		return err
	}
	defer done()

	set := fixture.Install(handlers.NewSet(), def.Refs)
	result, err := def.Protocol.QueryInstance(set)(context.Background(), q)
	if err != nil {
		if encoded, eerr := def.Protocol.EncodeErr(err); eerr == nil {
			fmt.Fprintf(c.stderr, "%s\n", encoded)
		}
		return err
	}
	out, err := def.Protocol.EncodeResult(result)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s\n", out)
	return nil
}

func (c *cli) report(args []string) error {
	var co common
	fs, def, err := c.parse("report", reportUsage, args, &co, true, nil)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprint(c.stderr, reportUsage)
		return fmt.Errorf("one result file is required")
	}
	data, err := c.readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	r, err := def.Protocol.DecodeResult(data)
	if err != nil {
		return err
	}

	done, err := c.observe(&co)
	if err != nil {
		return err
	}
	defer done()

	set := handlers.NewPrinter(c.stdout).Install(handlers.NewSet(), def.Refs)
	return def.Protocol.ResultInstance(set)(context.Background(), r)
}

func (c *cli) reduce(args []string) error {
	var co common
	fs, def, err := c.parse("reduce", reduceUsage, args, &co, true, nil)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprint(c.stderr, reduceUsage)
		return fmt.Errorf("at least one result file is required")
	}
	batch := make([]any, 0, fs.NArg())
	for _, name := range fs.Args() {
		data, err := c.readInput(name)
		if err != nil {
			return err
		}
		r, err := def.Protocol.DecodeResult(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		batch = append(batch, r)
	}

	done, err := c.observe(&co)
	if err != nil {
		return err
	}
	defer done()

	merged, err := def.Protocol.ReduceResult(context.Background(), batch)
	if err != nil {
		return err
	}
	out, err := def.Protocol.EncodeResult(merged)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s\n", out)
	return nil
}

func (c *cli) readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(name)
}
