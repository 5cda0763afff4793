// Package filter reduces tree snapshots by name and content queries.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/temirov/fusion/internal/types"
)

// Apply returns the subset of tree satisfying every non-empty criterion of query.
// matches is the content-search match set and is consulted only when the content
// query is non-empty. A nil result means nothing survived.
func Apply(tree *types.Node, query types.Query, matches map[string]struct{}) *types.Node {
	filtered := ByName(tree, query.NameQuery, query.NameCaseSensitive)
	if query.ContentQuery == "" {
		return filtered
	}
	if matches == nil {
		matches = map[string]struct{}{}
	}
	return ByMatches(filtered, matches)
}

// ByName keeps files whose base name contains query. An empty query keeps the whole tree.
func ByName(tree *types.Node, query string, caseSensitive bool) *types.Node {
	if tree == nil {
		return nil
	}
	nameTest := nameMatcher(query, caseSensitive)
	if nameTest == nil {
		return tree.Clone()
	}
	return reduce(tree, func(node *types.Node) bool {
		return nameTest(node.Name())
	})
}

// ByMatches keeps files whose path is in matches. A nil set keeps the whole tree.
func ByMatches(tree *types.Node, matches map[string]struct{}) *types.Node {
	if tree == nil {
		return nil
	}
	if matches == nil {
		return tree.Clone()
	}
	return reduce(tree, func(node *types.Node) bool {
		_, found := matches[filepath.Clean(node.Path)]
		return found
	})
}

func nameMatcher(query string, caseSensitive bool) func(string) bool {
	if query == "" {
		return nil
	}
	if caseSensitive {
		return func(name string) bool { return strings.Contains(name, query) }
	}
	folded := strings.ToLower(query)
	return func(name string) bool { return strings.Contains(strings.ToLower(name), folded) }
}

// reduce rebuilds the tree keeping files accepted by keep and directories that
// retain at least one descendant.
func reduce(node *types.Node, keep func(*types.Node) bool) *types.Node {
	if !node.IsDirectory {
		if keep(node) {
			return &types.Node{Path: node.Path}
		}
		return nil
	}
	var children []*types.Node
	for _, child := range node.Children {
		if reduced := reduce(child, keep); reduced != nil {
			children = append(children, reduced)
		}
	}
	if len(children) == 0 {
		return nil
	}
	return &types.Node{Path: node.Path, IsDirectory: true, Children: children}
}
