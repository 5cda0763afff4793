// Package types defines every cross‑package data structure used by fusion.
package types

import (
	"path/filepath"
	"strings"
)

// SelectionState is the derived selection status of a node.
type SelectionState int

const (
	Unselected SelectionState = iota
	Partial
	Selected
)

// String returns the lower-case name of the state.
func (state SelectionState) String() string {
	switch state {
	case Selected:
		return "selected"
	case Partial:
		return "partial"
	default:
		return "unselected"
	}
}

// PathPolicy controls how exported file paths are displayed.
type PathPolicy string

const (
	PathPolicyFull     PathPolicy = "full"
	PathPolicyRelative PathPolicy = "relative"
)

// ParsePathPolicy converts a persisted value into a PathPolicy. Unknown values yield PathPolicyFull.
func ParsePathPolicy(value string) PathPolicy {
	if strings.EqualFold(strings.TrimSpace(value), string(PathPolicyRelative)) {
		return PathPolicyRelative
	}
	return PathPolicyFull
}

// ContentKind classifies a loaded file.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentBinary
	ContentUnavailable
)

// String returns the lower-case name of the kind.
func (kind ContentKind) String() string {
	switch kind {
	case ContentBinary:
		return "binary"
	case ContentUnavailable:
		return "unavailable"
	default:
		return "text"
	}
}

// Query holds the name and content filter state.
// An empty query string never constrains the tree.
type Query struct {
	NameQuery            string
	NameCaseSensitive    bool
	ContentQuery         string
	ContentCaseSensitive bool
}

// IsEmpty reports whether neither query constrains the tree.
func (query Query) IsEmpty() bool {
	return query.NameQuery == "" && query.ContentQuery == ""
}

// Node is one entry of an immutable tree snapshot.
// Children is only populated for non-empty directories.
type Node struct {
	Path        string  `json:"path"`
	IsDirectory bool    `json:"isDirectory"`
	Children    []*Node `json:"children,omitempty"`
}

// Name returns the last path component of the node.
func (node *Node) Name() string {
	if node == nil {
		return ""
	}
	return filepath.Base(node.Path)
}

// Clone returns a deep copy of the node that shares no memory with the receiver.
func (node *Node) Clone() *Node {
	if node == nil {
		return nil
	}
	cloned := &Node{Path: node.Path, IsDirectory: node.IsDirectory}
	if len(node.Children) > 0 {
		cloned.Children = make([]*Node, 0, len(node.Children))
		for _, child := range node.Children {
			cloned.Children = append(cloned.Children, child.Clone())
		}
	}
	return cloned
}

// Equal reports whether two trees have the same shape and paths.
func (node *Node) Equal(other *Node) bool {
	if node == nil || other == nil {
		return node == nil && other == nil
	}
	if node.Path != other.Path || node.IsDirectory != other.IsDirectory || len(node.Children) != len(other.Children) {
		return false
	}
	for index := range node.Children {
		if !node.Children[index].Equal(other.Children[index]) {
			return false
		}
	}
	return true
}
