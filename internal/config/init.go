package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/fusion/internal/search"
	"github.com/temirov/fusion/internal/tokenizer"
	"github.com/temirov/fusion/internal/types"
	"github.com/temirov/fusion/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes .fusion.yaml into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes config.yaml into ~/.fusion.
	InitTargetGlobal InitTarget = "global"

	configurationTemplate = `exclusions:
%s
path_display: %s
workers: %d
filter:
  debounce_ms: %d
  name_case_sensitive: false
  content_case_sensitive: false
search:
  tool: %s
  grep_path: ""
content:
  staleness_ms: %d
tokens:
  model: %s
`
	exclusionLineFormat = "  - %q"

	errorInitWorkingDirectoryFormat = "determine working directory for configuration: %w"
	errorInitHomeFormat             = "resolve home directory for configuration: %w"
	errorInitDirectoryFormat        = "create configuration directory %s: %w"
	errorInitTargetFormat           = "unsupported init target %q"
	errorInitExistsFormat           = "configuration file already exists at %s (use --force to overwrite)"
	errorInitInspectFormat          = "inspect configuration path %s: %w"
	errorInitWriteFormat            = "write configuration to %s: %w"
)

// StarterExclusions are written into a fresh configuration file.
var StarterExclusions = []string{".git/", "node_modules/", ".DS_Store"}

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// DefaultConfiguration renders the configuration file written by InitializeConfiguration.
func DefaultConfiguration() string {
	lines := make([]string, 0, len(StarterExclusions))
	for _, pattern := range StarterExclusions {
		lines = append(lines, fmt.Sprintf(exclusionLineFormat, pattern))
	}
	return fmt.Sprintf(configurationTemplate,
		strings.Join(lines, "\n"),
		types.PathPolicyFull,
		defaultWorkers,
		defaultDebounceMilliseconds,
		search.ToolAuto,
		defaultStalenessMilliseconds,
		tokenizer.ApproximateModel,
	)
}

// ConfigurationPath returns the file InitializeConfiguration writes for options.
func ConfigurationPath(options InitOptions) (string, error) {
	switch options.Target {
	case "", InitTargetLocal:
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			current, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf(errorInitWorkingDirectoryFormat, err)
			}
			workingDirectory = current
		}
		return filepath.Join(workingDirectory, utils.LocalConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf(errorInitHomeFormat, err)
		}
		return filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName), nil
	default:
		return "", fmt.Errorf(errorInitTargetFormat, options.Target)
	}
}

// InitializeConfiguration writes DefaultConfiguration to the requested target and returns its path.
// An existing file is only replaced when options.Force is set.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, pathError := ConfigurationPath(options)
	if pathError != nil {
		return "", pathError
	}
	if _, statError := os.Stat(destinationPath); statError == nil && !options.Force {
		return "", fmt.Errorf(errorInitExistsFormat, destinationPath)
	} else if statError != nil && !os.IsNotExist(statError) {
		return "", fmt.Errorf(errorInitInspectFormat, destinationPath, statError)
	}
	directory := filepath.Dir(destinationPath)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf(errorInitDirectoryFormat, directory, err)
	}
	if err := os.WriteFile(destinationPath, []byte(DefaultConfiguration()), 0o600); err != nil {
		return "", fmt.Errorf(errorInitWriteFormat, destinationPath, err)
	}
	return destinationPath, nil
}
