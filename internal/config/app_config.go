// Package config loads fusion's application configuration and persisted user settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/fusion/internal/search"
	"github.com/temirov/fusion/internal/tokenizer"
	"github.com/temirov/fusion/internal/types"
	"github.com/temirov/fusion/internal/utils"
)

const (
	defaultWorkers               = 4
	defaultDebounceMilliseconds  = 300
	defaultStalenessMilliseconds = 2000

	errorWorkingDirectoryFormat = "determine working directory: %w"
	errorResolvePathFormat      = "resolve configuration path %s: %w"
	errorStatFormat             = "stat configuration %s: %w"
	errorDirectoryFormat        = "configuration path %s is a directory"
	errorReadFormat             = "read configuration from %s: %w"
	errorDecodeFormat           = "decode configuration from %s: %w"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds engine and command defaults.
type ApplicationConfiguration struct {
	Exclusions  []string             `mapstructure:"exclusions"`
	PathDisplay string               `mapstructure:"path_display"`
	Workers     *int                 `mapstructure:"workers"`
	Filter      FilterConfiguration  `mapstructure:"filter"`
	Search      SearchConfiguration  `mapstructure:"search"`
	Content     ContentConfiguration `mapstructure:"content"`
	Tokens      TokenConfiguration   `mapstructure:"tokens"`
}

// FilterConfiguration controls query debouncing and default case sensitivity.
type FilterConfiguration struct {
	DebounceMilliseconds *int  `mapstructure:"debounce_ms"`
	NameCaseSensitive    *bool `mapstructure:"name_case_sensitive"`
	ContentCaseSensitive *bool `mapstructure:"content_case_sensitive"`
}

// SearchConfiguration selects the content search primitive.
type SearchConfiguration struct {
	Tool     string `mapstructure:"tool"`
	GrepPath string `mapstructure:"grep_path"`
}

// ContentConfiguration controls staleness polling of selected files.
type ContentConfiguration struct {
	StalenessMilliseconds *int `mapstructure:"staleness_ms"`
}

// TokenConfiguration selects the token counter.
type TokenConfiguration struct {
	Model string `mapstructure:"model"`
}

// LoadApplicationConfiguration loads configuration from the global file and then
// overlays the local (or explicitly named) file.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf(errorWorkingDirectoryFormat, err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	merged.Exclusions = utils.DeduplicatePatterns(utils.TrimmedNonEmpty(merged.Exclusions))
	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf(errorResolvePathFormat, explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.LocalConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf(errorStatFormat, path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf(errorDirectoryFormat, path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf(errorReadFormat, path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf(errorDecodeFormat, path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
// A non-empty exclusion list in override replaces the receiver's list.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Exclusions = append([]string(nil), config.Exclusions...)
	result.Workers = cloneInt(config.Workers)
	result.Content.StalenessMilliseconds = cloneInt(config.Content.StalenessMilliseconds)
	if len(override.Exclusions) > 0 {
		result.Exclusions = append([]string{}, utils.DeduplicatePatterns(override.Exclusions)...)
	}
	if override.PathDisplay != "" {
		result.PathDisplay = override.PathDisplay
	}
	if override.Workers != nil {
		result.Workers = cloneInt(override.Workers)
	}
	result.Filter = result.Filter.merge(override.Filter)
	if override.Search.Tool != "" {
		result.Search.Tool = override.Search.Tool
	}
	if override.Search.GrepPath != "" {
		result.Search.GrepPath = override.Search.GrepPath
	}
	if override.Content.StalenessMilliseconds != nil {
		result.Content.StalenessMilliseconds = cloneInt(override.Content.StalenessMilliseconds)
	}
	if override.Tokens.Model != "" {
		result.Tokens.Model = override.Tokens.Model
	}
	return result
}

func (config FilterConfiguration) merge(override FilterConfiguration) FilterConfiguration {
	result := FilterConfiguration{
		DebounceMilliseconds: cloneInt(config.DebounceMilliseconds),
		NameCaseSensitive:    cloneBool(config.NameCaseSensitive),
		ContentCaseSensitive: cloneBool(config.ContentCaseSensitive),
	}
	if override.DebounceMilliseconds != nil {
		result.DebounceMilliseconds = cloneInt(override.DebounceMilliseconds)
	}
	if override.NameCaseSensitive != nil {
		result.NameCaseSensitive = cloneBool(override.NameCaseSensitive)
	}
	if override.ContentCaseSensitive != nil {
		result.ContentCaseSensitive = cloneBool(override.ContentCaseSensitive)
	}
	return result
}

// WorkerCount returns the configured worker pool size or the default.
func (config ApplicationConfiguration) WorkerCount() int {
	return positiveOrDefault(config.Workers, defaultWorkers)
}

// DebounceWindow returns the query debounce window.
func (config ApplicationConfiguration) DebounceWindow() time.Duration {
	return time.Duration(positiveOrDefault(config.Filter.DebounceMilliseconds, defaultDebounceMilliseconds)) * time.Millisecond
}

// StalenessInterval returns the period of the selected-file modification check.
func (config ApplicationConfiguration) StalenessInterval() time.Duration {
	return time.Duration(positiveOrDefault(config.Content.StalenessMilliseconds, defaultStalenessMilliseconds)) * time.Millisecond
}

// SearchTool returns the configured search tool name, defaulting to auto.
func (config ApplicationConfiguration) SearchTool() string {
	if config.Search.Tool == "" {
		return search.ToolAuto
	}
	return config.Search.Tool
}

// TokenModel returns the configured token model, defaulting to the heuristic counter.
func (config ApplicationConfiguration) TokenModel() string {
	if config.Tokens.Model == "" {
		return tokenizer.ApproximateModel
	}
	return config.Tokens.Model
}

// PathPolicy returns the configured default path display policy.
func (config ApplicationConfiguration) PathPolicy() types.PathPolicy {
	return types.ParsePathPolicy(config.PathDisplay)
}

// NameCaseSensitive reports the default case sensitivity of name queries.
func (config ApplicationConfiguration) NameCaseSensitive() bool {
	return config.Filter.NameCaseSensitive != nil && *config.Filter.NameCaseSensitive
}

// ContentCaseSensitive reports the default case sensitivity of content queries.
func (config ApplicationConfiguration) ContentCaseSensitive() bool {
	return config.Filter.ContentCaseSensitive != nil && *config.Filter.ContentCaseSensitive
}

func positiveOrDefault(value *int, fallback int) int {
	if value == nil || *value <= 0 {
		return fallback
	}
	return *value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
