// Package search finds files under a root directory whose content contains a substring.
package search

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/fusion/internal/utils"
)

// Supported search tool names.
const (
	ToolAuto    = "auto"
	ToolGrep    = "grep"
	ToolBuiltin = "builtin"

	defaultGrepExecutable = "grep"
)

// ErrMultilineQuery is returned for queries spanning more than one line. grep
// treats every line of a -F pattern as a separate alternative.
var ErrMultilineQuery = errors.New("content query must be a single line")

// ValidateQuery reports whether query can be searched the same way by every Searcher.
func ValidateQuery(query string) error {
	if strings.ContainsAny(query, "\r\n") {
		return ErrMultilineQuery
	}
	return nil
}

// ExcludeSpec is one exclusion passed to the search primitive.
type ExcludeSpec struct {
	Pattern   string
	Directory bool
}

// Request describes one recursive content search.
type Request struct {
	Root          string
	Query         string
	CaseSensitive bool
	Excludes      []ExcludeSpec
}

// Searcher returns the absolute paths of files under Root containing Query.
// Implementations report failures through the error but callers treat any
// failure as an empty match set.
type Searcher interface {
	Search(ctx context.Context, request Request) ([]string, error)
}

// ExcludesFromPatterns converts exclusion patterns into search excludes.
// Patterns ending in a path separator become directory excludes without the separator.
func ExcludesFromPatterns(patterns []string) []ExcludeSpec {
	specs := make([]ExcludeSpec, 0, len(patterns))
	for _, pattern := range utils.TrimmedNonEmpty(patterns) {
		if strings.HasSuffix(pattern, "/") || strings.HasSuffix(pattern, `\`) {
			trimmed := strings.TrimRight(pattern, `/\`)
			if trimmed == "" {
				continue
			}
			specs = append(specs, ExcludeSpec{Pattern: trimmed, Directory: true})
			continue
		}
		specs = append(specs, ExcludeSpec{Pattern: pattern})
	}
	return specs
}

// MatchSet converts a match list into a set keyed by cleaned path.
func MatchSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		set[filepath.Clean(path)] = struct{}{}
	}
	return set
}

// New returns the Searcher for tool. grepPath overrides the grep executable.
// ToolAuto picks grep when it can be found and the builtin walker otherwise.
func New(tool string, grepPath string, logger *zap.Logger) Searcher {
	logger = utils.LoggerOrNop(logger)
	executable := strings.TrimSpace(grepPath)
	if executable == "" {
		executable = defaultGrepExecutable
	}
	switch strings.ToLower(strings.TrimSpace(tool)) {
	case ToolGrep:
		return &GrepSearcher{Executable: executable, Logger: logger}
	case ToolBuiltin:
		return &WalkSearcher{Logger: logger}
	default:
		if resolved, lookupError := exec.LookPath(executable); lookupError == nil {
			return &GrepSearcher{Executable: resolved, Logger: logger}
		}
		logger.Debug("grep not found, using builtin content search", zap.String("executable", executable))
		return &WalkSearcher{Logger: logger}
	}
}
