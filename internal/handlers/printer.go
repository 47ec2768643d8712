package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cyberixae/scrapql/internal/jsonv"
)

// Printer provides reporters that write one line per call:
//
//	report <name> /<path> <json payload>
//	report-existence <name> /<path> <true|false>
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

func (p *Printer) line(kind, name string, path []string, payload any) error {
	v, err := jsonv.Canonical(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = fmt.Fprintf(p.w, "%s %s /%s %s\n", kind, name, strings.Join(path, "/"), raw)
	return err
}

// Install registers printing reporters for the report and report-existence
// refs in s.
func (p *Printer) Install(s *Set, refs []Ref) *Set {
	for _, r := range refs {
		name := r.Name
		switch r.Kind {
		case KindReport:
			s.RegisterReporter(name, func(ctx context.Context, result any, path []string) error {
				return p.line(KindReport, name, path, result)
			})
		case KindReportExistence:
			s.RegisterExistenceReporter(name, func(ctx context.Context, exists bool, path []string) error {
				return p.line(KindReportExistence, name, path, exists)
			})
		}
	}
	return s
}
