// Package ctxpath implements the path a processor has walked from the root of a
// query or result down to the node it is visiting.
//
// A Path is an immutable cons list. New segments are prepended, so extending a
// path is O(1) and never disturbs the parent's copy, which lets concurrent
// sibling branches share their common prefix. Handlers never see the internal
// order: Segments returns the path root-first.
package ctxpath

// Path is a persistent list of keys and identifiers, newest segment first.
// The zero value is the empty path.
type Path struct {
	node *node
}

type node struct {
	segment string
	tail    *node
	depth   int
}

// Zero is the root path with no segments.
var Zero = Path{}

// Prepend returns a new path with segment as its innermost element.
func (p Path) Prepend(segment string) Path {
	return Path{node: &node{segment: segment, tail: p.node, depth: p.Len() + 1}}
}

// Len reports the number of segments.
func (p Path) Len() int {
	if p.node == nil {
		return 0
	}
	return p.node.depth
}

// Segments returns the segments in traversal order, root first.
func (p Path) Segments() []string {
	out := make([]string, p.Len())
	i := len(out) - 1
	for n := p.node; n != nil; n = n.tail {
		out[i] = n.segment
		i--
	}
	return out
}
