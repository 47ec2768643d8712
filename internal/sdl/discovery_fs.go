package sdl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FileSystemDiscovery implements Discovery for .graphql files on disk.
type FileSystemDiscovery struct {
	root  string
	paths []string
}

// NewFileSystemDiscovery collects root itself when it is a file, or every
// .graphql file below root when it is a directory.
func NewFileSystemDiscovery(root string) (*FileSystemDiscovery, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	d := &FileSystemDiscovery{root: root}
	if !info.IsDir() {
		d.root = filepath.Dir(root)
		d.paths = []string{root}
		return d, nil
	}
	err = filepath.WalkDir(root, func(path string, e os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".graphql" {
			return nil
		}
		d.paths = append(d.paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk root directory %q: %w", root, err)
	}
	sort.Strings(d.paths)
	return d, nil
}

// ListSources reads every discovered file. Source names are relative to the
// root directory.
func (d *FileSystemDiscovery) ListSources(ctx context.Context) ([]Source, error) {
	out := make([]Source, 0, len(d.paths))
	for _, p := range d.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read SDL %q: %w", p, err)
		}
		name, err := filepath.Rel(d.root, p)
		if err != nil {
			name = p
		}
		out = append(out, Source{Name: name, Content: string(content)})
	}
	return out, nil
}

// Load is a convenience function that discovers SDL files at path and builds
// the definition rooted at the object type root.
func Load(path string, root string) (*Definition, error) {
	disc, err := NewFileSystemDiscovery(path)
	if err != nil {
		return nil, err
	}
	return Build(context.Background(), disc, root)
}
