package sdl

import (
	"context"
)

// InMemoryDiscovery serves SDL documents held in memory.
type InMemoryDiscovery struct {
	sources []Source
}

// NewInMemoryDiscovery creates an InMemoryDiscovery serving sources in order.
func NewInMemoryDiscovery(sources ...Source) *InMemoryDiscovery {
	return &InMemoryDiscovery{sources: append([]Source(nil), sources...)}
}

// ListSources implements Discovery.
func (d *InMemoryDiscovery) ListSources(ctx context.Context) ([]Source, error) {
	return append([]Source(nil), d.sources...), nil
}

// Parse builds the definition of a single in-memory document.
func Parse(name, content, root string) (*Definition, error) {
	return Build(context.Background(), NewInMemoryDiscovery(Source{Name: name, Content: content}), root)
}
