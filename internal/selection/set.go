// Package selection tracks selected files and derives tri-state directory status.
package selection

import (
	"sort"

	"github.com/temirov/fusion/internal/filetree"
	"github.com/temirov/fusion/internal/types"
)

// Set holds selected file paths. Directories are never members; their state is
// derived from descendant files on every read. A Set is not safe for concurrent
// mutation; the session coordinator is its only writer.
type Set struct {
	paths map[string]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{paths: make(map[string]struct{})}
}

// Toggle flips a file's membership. For a directory it deselects every
// descendant file when the directory is fully selected and selects every
// descendant file otherwise, so a partial directory becomes fully selected.
func (set *Set) Toggle(node *types.Node) {
	if node == nil {
		return
	}
	if !node.IsDirectory {
		if set.IsSelected(node.Path) {
			delete(set.paths, node.Path)
		} else {
			set.paths[node.Path] = struct{}{}
		}
		return
	}
	if set.StateOf(node) == types.Selected {
		set.DeselectAll(node)
		return
	}
	set.SelectAll(node)
}

// IsSelected reports whether path is a member.
func (set *Set) IsSelected(path string) bool {
	_, found := set.paths[path]
	return found
}

// StateOf derives the tri-state status of node. A directory without files is Unselected.
func (set *Set) StateOf(node *types.Node) types.SelectionState {
	if node == nil {
		return types.Unselected
	}
	if !node.IsDirectory {
		if set.IsSelected(node.Path) {
			return types.Selected
		}
		return types.Unselected
	}
	total, selected := 0, 0
	filetree.Walk(node, func(file *types.Node) {
		total++
		if set.IsSelected(file.Path) {
			selected++
		}
	})
	switch {
	case selected == 0:
		return types.Unselected
	case selected == total:
		return types.Selected
	default:
		return types.Partial
	}
}

// SelectAll adds every file at or below node.
func (set *Set) SelectAll(node *types.Node) {
	filetree.Walk(node, func(file *types.Node) {
		set.paths[file.Path] = struct{}{}
	})
}

// DeselectAll removes every file at or below node.
func (set *Set) DeselectAll(node *types.Node) {
	filetree.Walk(node, func(file *types.Node) {
		delete(set.paths, file.Path)
	})
}

// Paths returns the selected paths in lexical order.
func (set *Set) Paths() []string {
	paths := make([]string, 0, len(set.paths))
	for path := range set.paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of selected files.
func (set *Set) Len() int {
	return len(set.paths)
}

// Clear removes every selected path.
func (set *Set) Clear() {
	clear(set.paths)
}

// Retain drops every path for which keep returns false and returns the dropped paths in lexical order.
func (set *Set) Retain(keep func(path string) bool) []string {
	var removed []string
	for path := range set.paths {
		if !keep(path) {
			removed = append(removed, path)
		}
	}
	for _, path := range removed {
		delete(set.paths, path)
	}
	sort.Strings(removed)
	return removed
}
