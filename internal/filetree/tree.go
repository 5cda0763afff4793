package filetree

import (
	"sort"
	"strings"

	"github.com/temirov/fusion/internal/types"
)

// SortedChildren returns the children of node ordered for display:
// directories first, then case-insensitive name order. The node is not modified.
func SortedChildren(node *types.Node) []*types.Node {
	if node == nil || len(node.Children) == 0 {
		return nil
	}
	sorted := append([]*types.Node(nil), node.Children...)
	sort.SliceStable(sorted, func(left, right int) bool {
		leftNode, rightNode := sorted[left], sorted[right]
		if leftNode.IsDirectory != rightNode.IsDirectory {
			return leftNode.IsDirectory
		}
		return strings.ToLower(leftNode.Name()) < strings.ToLower(rightNode.Name())
	})
	return sorted
}

// Find returns the node with the given path, or nil when the tree does not contain it.
func Find(tree *types.Node, path string) *types.Node {
	if tree == nil {
		return nil
	}
	if tree.Path == path {
		return tree
	}
	if !tree.IsDirectory || !strings.HasPrefix(path, tree.Path) {
		return nil
	}
	for _, child := range tree.Children {
		if found := Find(child, path); found != nil {
			return found
		}
	}
	return nil
}

// Files returns the paths of every file at or below node in tree order.
func Files(node *types.Node) []string {
	var paths []string
	Walk(node, func(file *types.Node) {
		paths = append(paths, file.Path)
	})
	return paths
}

// Walk calls visit for every file at or below node in tree order.
func Walk(node *types.Node, visit func(file *types.Node)) {
	if node == nil {
		return
	}
	if !node.IsDirectory {
		visit(node)
		return
	}
	for _, child := range node.Children {
		Walk(child, visit)
	}
}

// CountFiles returns the number of files at or below node.
func CountFiles(node *types.Node) int {
	count := 0
	Walk(node, func(*types.Node) { count++ })
	return count
}
