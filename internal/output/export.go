package output

import (
	"path/filepath"
	"strings"

	"github.com/temirov/fusion/internal/content"
	"github.com/temirov/fusion/internal/types"
)

const (
	exportStartFormat = "### START OF FILE: "
	exportEndFormat   = "### END OF FILE: "
	exportMarkerClose = " ###\n"
)

// Lookup returns the loaded content for a path.
type Lookup func(path string) (content.Entry, bool)

// RenderExport concatenates one block per path in the given order. Paths without
// loaded content and unavailable entries are skipped; binary entries export their placeholder.
func RenderExport(paths []string, lookup Lookup, root string, policy types.PathPolicy) string {
	var builder strings.Builder
	for _, path := range paths {
		entry, found := lookup(path)
		if !found || entry.Kind == types.ContentUnavailable {
			continue
		}
		displayPath := DisplayPath(path, root, policy)
		builder.WriteString(exportStartFormat)
		builder.WriteString(displayPath)
		builder.WriteString(exportMarkerClose)
		builder.WriteString(entry.Text)
		builder.WriteString("\n")
		builder.WriteString(exportEndFormat)
		builder.WriteString(displayPath)
		builder.WriteString(exportMarkerClose)
		builder.WriteString("\n")
	}
	return builder.String()
}

// DisplayPath returns path unchanged under PathPolicyFull. Under PathPolicyRelative
// the root directory plus its trailing separator is stripped when it prefixes path.
func DisplayPath(path string, root string, policy types.PathPolicy) string {
	if policy != types.PathPolicyRelative || root == "" {
		return path
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.TrimPrefix(path, prefix)
}
