// Package output renders trees and export payloads as text.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/temirov/fusion/internal/filetree"
	"github.com/temirov/fusion/internal/types"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	// FormatRaw renders trees with box-drawing connectors.
	FormatRaw = "raw"
	// FormatJSON renders trees as indented JSON.
	FormatJSON = "json"

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	directorySuffix = "/"

	errorUnsupportedFormatFormat = "unsupported format %q"
)

// Marker returns a prefix printed before a node's name, such as a selection checkbox.
type Marker func(node *types.Node) string

// WriteTree renders node to writer using box-drawing connectors. Children are
// printed directories first, then by case-insensitive name. A nil node prints nothing.
func WriteTree(writer io.Writer, node *types.Node, marker Marker) {
	if node == nil {
		return
	}
	renderTreeNode(writer, node, marker, "", true, true)
}

// RenderTree renders node in the named format.
func RenderTree(node *types.Node, format string, marker Marker) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatRaw:
		var builder strings.Builder
		WriteTree(&builder, node, marker)
		return builder.String(), nil
	case FormatJSON:
		if node == nil {
			return "null", nil
		}
		encoded, jsonEncodeError := json.MarshalIndent(sortedCopy(node), indentPrefix, indentSpacer)
		return string(encoded), jsonEncodeError
	default:
		return "", fmt.Errorf(errorUnsupportedFormatFormat, format)
	}
}

func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return "", ""
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	return prefix + connector, childPrefix
}

func renderTreeNode(writer io.Writer, node *types.Node, marker Marker, prefix string, isRoot bool, isLast bool) {
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	label := node.Name()
	if isRoot {
		label = node.Path
	}
	if node.IsDirectory && !isRoot {
		label += directorySuffix
	}
	if marker != nil {
		label = marker(node) + label
	}
	fmt.Fprintf(writer, "%s%s\n", linePrefix, label)
	children := filetree.SortedChildren(node)
	for index, child := range children {
		renderTreeNode(writer, child, marker, childPrefix, false, index == len(children)-1)
	}
}

func sortedCopy(node *types.Node) *types.Node {
	copied := &types.Node{Path: node.Path, IsDirectory: node.IsDirectory}
	for _, child := range filetree.SortedChildren(node) {
		copied.Children = append(copied.Children, sortedCopy(child))
	}
	return copied
}

// FormatSummaryLine describes an export of fileCount files estimated at tokens.
func FormatSummaryLine(fileCount int, tokens int, model string) string {
	modelSuffix := ""
	if model != "" {
		modelSuffix = fmt.Sprintf(" (model: %s)", model)
	}
	return fmt.Sprintf("Summary: %d %s, ~%d tokens%s", fileCount, fileLabel(fileCount), tokens, modelSuffix)
}

// FormatTreeSummaryLine describes a tree listing of fileCount files.
func FormatTreeSummaryLine(fileCount int) string {
	return fmt.Sprintf("Summary: %d %s", fileCount, fileLabel(fileCount))
}

func fileLabel(fileCount int) string {
	if fileCount == 1 {
		return "file"
	}
	return "files"
}
