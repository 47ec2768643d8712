package events

import "time"

// QueryStart is emitted before a protocol instance processes a query.
type QueryStart struct {
	Shape string
}

// QueryFinish is emitted after a protocol instance processed a query.
type QueryFinish struct {
	Shape    string
	Err      error
	Duration time.Duration
}

// ResultStart is emitted before a protocol instance processes a result.
type ResultStart struct {
	Shape string
}

// ResultFinish is emitted after a protocol instance processed a result.
type ResultFinish struct {
	Shape    string
	Err      error
	Duration time.Duration
}

// HandlerCall is emitted after every resolver or reporter invocation.
type HandlerCall struct {
	// Handler is one of "resolve", "exists", "report" or "report-existence".
	Handler  string
	Path     []string
	Start    time.Time
	Duration time.Duration
	Err      error
}

// ReduceFinish is emitted after a batch of results was reduced.
type ReduceFinish struct {
	Shape    string
	Batch    int
	Start    time.Time
	Duration time.Duration
	Err      error
}
