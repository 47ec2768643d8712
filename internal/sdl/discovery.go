package sdl

import (
	"context"
)

// Source is one SDL document.
type Source struct {
	Name    string
	Content string
}

// Discovery lists the SDL documents making up one protocol definition.
type Discovery interface {
	ListSources(ctx context.Context) ([]Source, error)
}
