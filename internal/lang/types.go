// Package lang wraps tree-sitter grammars behind the closed Language
// enumeration from the data model, and exposes AST utility functions that
// are language-agnostic (node_text, find_by_type, node_name, docstring).
package lang

import "github.com/codewiki-dev/codewiki/internal/model"

// Point is a 0-indexed row/column position in the source.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a language-agnostic view over a tree-sitter AST node.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	HasError   bool
	Children   []*Node

	// raw holds the underlying tree-sitter node so field lookups (node_name, parent-class extraction) can be performed
	// lazily without re-walking the raw tree.
	raw any
}

// Tree is a parsed AST plus the source bytes it was parsed from.
type Tree struct {
	Root     *Node
	Source   []byte
	Language model.Language
}

// NodeText decodes the byte slice [StartByte, EndByte) from source.
func NodeText(n *Node, source []byte) string {
	if n == nil || n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindByType does a pre-order collection of all nodes whose Type is in types.
func FindByType(root *Node, types map[string]bool) []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if types[n.Type] {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// FindChildByType returns the first direct child with the given type.
func FindChildByType(n *Node, nodeType string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// FindChildrenByType returns all direct children with the given type.
func FindChildrenByType(n *Node, nodeType string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Type == nodeType {
			out = append(out, c)
		}
	}
	return out
}

// Walk traverses the tree depth-first, pre-order; fn returning false stops
// descent into that node's children (but sibling traversal continues).
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Set builds a lookup set from a slice of node-type strings.
func Set(types []string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}
