// Package pathtree provides a tree keyed by slash-separated path
// segments. Inserting "a/b/c" creates nodes for the intermediate
// segments "a" and "a/b" even when they carry no value of their own,
// which lets archive-backed filesystems list directories the archive
// never stored explicitly.
//
// A tree is built once and is safe for concurrent lookups afterwards;
// Insert must not race with Lookup or Children.
package pathtree

import (
	"sort"
	"strings"
)

// Node is a single tree node. The zero value is not usable; create
// roots with New.
type Node[V any] struct {
	value    *V
	children map[string]*Node[V]
}

// Child pairs a node with the path segment it is stored under.
type Child[V any] struct {
	Name string
	Node *Node[V]
}

// New returns an empty tree root. The root represents the path "".
func New[V any]() *Node[V] {
	return &Node[V]{children: make(map[string]*Node[V])}
}

// Insert stores value at the given relative slash-separated path
// ("a/b/c"), creating intermediate nodes as needed. Inserting at a
// path that already holds a value replaces it: archives may contain
// the same path more than once and the entry stored last wins.
// Inserting at "" sets the root's value.
func (n *Node[V]) Insert(p string, value *V) {
	cursor := n
	for _, segment := range segments(p) {
		next, ok := cursor.children[segment]
		if !ok {
			next = &Node[V]{children: make(map[string]*Node[V])}
			cursor.children[segment] = next
		}
		cursor = next
	}
	cursor.value = value
}

// Lookup resolves the node at the given relative path. The second
// return value is false when no node exists there. Intermediate nodes
// created implicitly by Insert are found like any other node; their
// Value is nil.
func (n *Node[V]) Lookup(p string) (*Node[V], bool) {
	cursor := n
	for _, segment := range segments(p) {
		next, ok := cursor.children[segment]
		if !ok {
			return nil, false
		}
		cursor = next
	}
	return cursor, true
}

// Value returns the value stored at the node, or nil for nodes that
// exist only as implicit ancestors of inserted paths.
func (n *Node[V]) Value() *V {
	return n.value
}

// HasChildren reports whether the node has any direct children.
func (n *Node[V]) HasChildren() bool {
	return len(n.children) > 0
}

// Children returns the direct children of the node sorted by name,
// so iteration order is reproducible regardless of insertion order.
func (n *Node[V]) Children() []Child[V] {
	result := make([]Child[V], 0, len(n.children))
	for name, child := range n.children {
		result = append(result, Child[V]{Name: name, Node: child})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Walk visits every node below n depth-first in sorted order, calling
// fn with the node's relative path. Walk stops at the first error and
// returns it.
func (n *Node[V]) Walk(fn func(path string, node *Node[V]) error) error {
	return n.walk("", fn)
}

func (n *Node[V]) walk(prefix string, fn func(path string, node *Node[V]) error) error {
	for _, child := range n.Children() {
		p := child.Name
		if prefix != "" {
			p = prefix + "/" + child.Name
		}
		if err := fn(p, child.Node); err != nil {
			return err
		}
		if err := child.Node.walk(p, fn); err != nil {
			return err
		}
	}
	return nil
}

// segments splits a relative path into its non-empty segments. The
// empty path addresses the root itself.
func segments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
