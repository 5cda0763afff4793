// Package utils contains general helper functions used across fusion.
package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// Configuration file constants used across the project.
const (
	// GlobalConfigDirectoryName is the directory under the user's home that holds fusion files.
	GlobalConfigDirectoryName = ".fusion"
	// ConfigFileName is the name of the application configuration file.
	ConfigFileName = "config.yaml"
	// LocalConfigFileName is the project-local configuration file looked up in the working directory.
	LocalConfigFileName = ".fusion.yaml"
	// SettingsFileName stores the persisted exclusion list and path display policy.
	SettingsFileName = "settings.yaml"
)

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}

// ContainsString checks if a slice of strings contains a specific target string.
func ContainsString(stringSlice []string, targetString string) bool {
	for _, currentString := range stringSlice {
		if currentString == targetString {
			return true
		}
	}
	return false
}

// TrimmedNonEmpty trims every value and drops the ones that end up empty.
func TrimmedNonEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

// IsWithin reports whether path equals root or lies underneath it.
func IsWithin(path, root string) bool {
	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(root)
	if cleanPath == cleanRoot {
		return true
	}
	if !strings.HasSuffix(cleanRoot, string(filepath.Separator)) {
		cleanRoot += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanRoot)
}

// ResolveDirectory converts path to a clean absolute path and verifies that it names a directory.
func ResolveDirectory(path string) (string, error) {
	absolutePath, absoluteError := filepath.Abs(path)
	if absoluteError != nil {
		return "", absoluteError
	}
	cleanPath := filepath.Clean(absolutePath)
	info, statError := os.Stat(cleanPath)
	if statError != nil {
		return "", statError
	}
	if !info.IsDir() {
		return "", &os.PathError{Op: "open", Path: cleanPath, Err: errNotDirectory}
	}
	return cleanPath, nil
}
