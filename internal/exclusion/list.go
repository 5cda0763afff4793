package exclusion

import (
	"path/filepath"
	"strings"

	"github.com/temirov/fusion/internal/types"
	"github.com/temirov/fusion/internal/utils"
)

// persistedSeparator joins patterns in the persisted settings value.
const persistedSeparator = ","

// List is the ordered, de-duplicated set of active exclusion patterns.
type List struct {
	patterns []string
}

// NewList returns a List holding the trimmed, de-duplicated patterns in order.
func NewList(patterns []string) *List {
	return &List{patterns: utils.DeduplicatePatterns(utils.TrimmedNonEmpty(patterns))}
}

// ParseJoined reads the comma-joined persisted form.
func ParseJoined(joined string) *List {
	if strings.TrimSpace(joined) == "" {
		return NewList(nil)
	}
	return NewList(strings.Split(joined, persistedSeparator))
}

// Join returns the comma-joined persisted form.
func (list *List) Join() string {
	return strings.Join(list.patterns, persistedSeparator)
}

// Add appends pattern unless it is blank or already present. It reports whether the list changed.
func (list *List) Add(pattern string) bool {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" || utils.ContainsString(list.patterns, trimmed) {
		return false
	}
	list.patterns = append(list.patterns, trimmed)
	return true
}

// Remove deletes every occurrence of pattern. It reports whether the list changed.
func (list *List) Remove(pattern string) bool {
	trimmed := strings.TrimSpace(pattern)
	kept := make([]string, 0, len(list.patterns))
	for _, existing := range list.patterns {
		if existing != trimmed {
			kept = append(kept, existing)
		}
	}
	changed := len(kept) != len(list.patterns)
	list.patterns = kept
	return changed
}

// Patterns returns a copy of the patterns in insertion order.
func (list *List) Patterns() []string {
	return append([]string(nil), list.patterns...)
}

// Matcher compiles the current patterns.
func (list *List) Matcher() Matcher {
	return Compile(list.patterns)
}

// SuggestPatterns lists the exclusion patterns offered for a node:
// a directory offers its name, a file offers "*.<ext>" when it has an extension, then its name.
func SuggestPatterns(node *types.Node) []string {
	if node == nil {
		return nil
	}
	name := node.Name()
	if node.IsDirectory {
		return []string{name}
	}
	extension := strings.TrimPrefix(filepath.Ext(name), ".")
	if extension == "" || extension == strings.TrimPrefix(name, ".") {
		return []string{name}
	}
	return []string{extensionPattern + extension, name}
}
