package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cyberixae/scrapql/internal/reduce"
)

var schema = filepath.Join("testdata", "schema.graphql")

func captureOutput(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var bufOut, bufErr bytes.Buffer
	err = run(args, strings.NewReader(stdin), &bufOut, &bufErr)
	return bufOut.String(), bufErr.String(), err
}

func TestHelp(t *testing.T) {
	out, _, err := captureOutput(t, "", "help", "query")
	require.NoError(t, err)
	require.Contains(t, out, "query FLAGS")

	out, _, err = captureOutput(t, "", "help")
	require.NoError(t, err)
	require.Contains(t, out, "COMMANDS:")

	_, _, err = captureOutput(t, "", "help", "serve")
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, err := captureOutput(t, "", "serve")
	require.EqualError(t, err, `unknown command "serve"`)
	require.Contains(t, stderr, "USAGE:")

	_, _, err = captureOutput(t, "")
	require.EqualError(t, err, "missing command")
}

func TestCheck(t *testing.T) {
	out, _, err := captureOutput(t, "", "check", "-schema", schema)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Root: properties type=Root\n"), out)
	require.Contains(t, out, "handlers:\n  exists:customerExists\n")

	_, stderr, err := captureOutput(t, "", "check")
	require.EqualError(t, err, "-schema is required")
	require.Contains(t, stderr, "check FLAGS")
}

func TestExamples(t *testing.T) {
	for _, kind := range []string{"query", "result"} {
		t.Run(kind, func(t *testing.T) {
			out, _, err := captureOutput(t, "", "examples", "-schema", schema, "-kind", kind, "-limit", "2")
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
			require.Len(t, lines, 2)
			for _, l := range lines {
				require.True(t, json.Valid([]byte(l)), l)
				require.Contains(t, l, `"protocol":"scrapql/1"`)
			}
		})
	}

	_, _, err := captureOutput(t, "", "examples", "-schema", schema, "-kind", "both")
	require.EqualError(t, err, `invalid -kind "both"`)
}

func TestQuery(t *testing.T) {
	out, _, err := captureOutput(t, "",
		"query", "-schema", schema, "-fixture", filepath.Join("testdata", "fixture.json"),
		filepath.Join("testdata", "query.json"))
	require.NoError(t, err)
	want := `{"customers":[["c1",{"_tag":"Some","value":{"age":42,"name":"Ann"}}],["c9",{"_tag":"None"}]],"protocol":"scrapql/1","reports":[["2020-01","ok"]]}` + "\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryStdinVerbose(t *testing.T) {
	query := `{"reports": [["2020-02", true]]}`
	_, stderr, err := captureOutput(t, query,
		"query", "-verbose", "-schema", schema, "-fixture", filepath.Join("testdata", "fixture.json"), "-")
	require.Error(t, err)
	require.Contains(t, err.Error(), "2020-02")
	require.Contains(t, stderr, "scrapql: query start shape=properties\n")
	require.Contains(t, stderr, "scrapql: resolve /2020-02 error:")
	require.Contains(t, stderr, "scrapql: query finish shape=properties error:")
}

func TestQueryRejectsWrongLiteral(t *testing.T) {
	_, _, err := captureOutput(t, `{"protocol": "scrapql/2"}`,
		"query", "-schema", schema, "-fixture", filepath.Join("testdata", "fixture.json"), "-")
	require.Error(t, err)
}

func TestReport(t *testing.T) {
	out, _, err := captureOutput(t, "", "report", "-schema", schema, filepath.Join("testdata", "write.json"))
	require.NoError(t, err)
	want := strings.Join([]string{
		`report-existence customerSeen /c1 true`,
		`report storeName /c1 "Ann"`,
		`report storeAge /c1 42`,
		`report-existence customerSeen /c9 false`,
		`report storeReport /2020-01 "new"`,
	}, "\n") + "\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce(t *testing.T) {
	out, _, err := captureOutput(t, "", "reduce", "-schema", schema,
		filepath.Join("testdata", "write.json"), filepath.Join("testdata", "read.json"))
	require.NoError(t, err)
	want := `{"customers":[["c1",{"_tag":"Some","value":{"age":42,"name":"Ann"}}],["c9",{"_tag":"None"}]],"protocol":"scrapql/1","reports":[["2020-01","new"]]}` + "\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("reduce mismatch (-want +got):\n%s", diff)
	}

	_, _, err = captureOutput(t, "", "reduce", "-schema", schema,
		filepath.Join("testdata", "write.json"), filepath.Join("testdata", "moved.json"))
	require.ErrorIs(t, err, reduce.ErrExistenceChange)

	_, _, err = captureOutput(t, "", "reduce", "-schema", schema)
	require.EqualError(t, err, "at least one result file is required")
}

func TestOtelShutdownErrorIsLogged(t *testing.T) {
	errFlush := errors.New("flush failed")
	orig := otelSetup
	otelSetup = func(endpoint, service string) (func(context.Context) error, error) {
		require.Equal(t, "collector:4317", endpoint)
		require.Equal(t, "scrapql-test", service)
		return func(context.Context) error { return errFlush }, nil
	}
	t.Cleanup(func() { otelSetup = orig })

	_, stderr, err := captureOutput(t, "", "report", "-schema", schema,
		"-otel.endpoint", "collector:4317", "-otel.service", "scrapql-test",
		filepath.Join("testdata", "write.json"))
	require.NoError(t, err)
	require.Contains(t, stderr, "scrapql: otel shutdown: flush failed\n")
}
