// Package exclusion compiles user exclusion patterns and keeps the ordered pattern list.
package exclusion

import (
	"regexp"
	"strings"
)

const (
	wildcard         = "*"
	escapedWildcard  = `\*`
	anyCharacters    = ".*"
	directorySuffix  = "/"
	anchorStart      = "^"
	anchorEnd        = "$"
	extensionPattern = "*."
)

type compiledPattern struct {
	expression    *regexp.Regexp
	directoryOnly bool
}

// Matcher reports whether a base name is excluded by any of its compiled patterns.
// The zero value excludes nothing.
type Matcher struct {
	patterns []compiledPattern
}

// Compile builds a Matcher from patterns. Blank and uncompilable patterns are skipped.
func Compile(patterns []string) Matcher {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		trimmed := strings.TrimSpace(pattern)
		directoryOnly := isDirectoryPattern(trimmed)
		if directoryOnly {
			trimmed = strings.TrimRight(trimmed, `/\`)
		}
		if trimmed == "" {
			continue
		}
		expression, compileError := regexp.Compile(patternExpression(trimmed))
		if compileError != nil {
			continue
		}
		compiled = append(compiled, compiledPattern{expression: expression, directoryOnly: directoryOnly})
	}
	return Matcher{patterns: compiled}
}

// patternExpression quotes every metacharacter of pattern and turns each * into "match anything".
// The expression always spans the whole name.
func patternExpression(pattern string) string {
	expression := strings.ReplaceAll(regexp.QuoteMeta(pattern), escapedWildcard, anyCharacters)
	return anchorStart + expression + anchorEnd
}

func isDirectoryPattern(pattern string) bool {
	return strings.HasSuffix(pattern, directorySuffix) || strings.HasSuffix(pattern, `\`)
}

// IsExcluded reports whether a file name matches any pattern that applies to files.
func (matcher Matcher) IsExcluded(name string) bool {
	return matcher.matches(name, false)
}

// IsExcludedDirectory reports whether a directory name matches any pattern.
func (matcher Matcher) IsExcludedDirectory(name string) bool {
	return matcher.matches(name, true)
}

// Excludes dispatches to IsExcludedDirectory or IsExcluded.
func (matcher Matcher) Excludes(name string, isDirectory bool) bool {
	return matcher.matches(name, isDirectory)
}

// Len returns the number of active compiled patterns.
func (matcher Matcher) Len() int {
	return len(matcher.patterns)
}

func (matcher Matcher) matches(name string, isDirectory bool) bool {
	for _, pattern := range matcher.patterns {
		if pattern.directoryOnly && !isDirectory {
			continue
		}
		if pattern.expression.MatchString(name) {
			return true
		}
	}
	return false
}
