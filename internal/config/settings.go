package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/temirov/fusion/internal/exclusion"
	"github.com/temirov/fusion/internal/types"
	"github.com/temirov/fusion/internal/utils"
)

const (
	settingsKeyExcludedItems = "excluded_items"
	settingsKeyPathOption    = "path_option"

	errorSettingsHomeFormat  = "resolve home directory for settings: %w"
	errorSettingsReadFormat  = "read settings from %s: %w"
	errorSettingsWriteFormat = "write settings to %s: %w"
	errorSettingsDirFormat   = "create settings directory %s: %w"
)

// Settings are the values the user edits while working: the exclusion list and
// the path display policy.
type Settings struct {
	Exclusions []string
	PathPolicy types.PathPolicy
}

// SettingsStore persists Settings in a YAML file. The exclusion list is kept
// as one comma-joined string.
type SettingsStore struct {
	path  string
	mutex sync.Mutex
}

// DefaultSettingsPath returns ~/.fusion/settings.yaml.
func DefaultSettingsPath() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf(errorSettingsHomeFormat, err)
	}
	return filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.SettingsFileName), nil
}

// NewSettingsStore returns a store backed by the file at path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Path returns the backing file path.
func (store *SettingsStore) Path() string {
	return store.path
}

// Load reads the persisted settings. Keys that were never written fall back to
// defaults, which come from the application configuration.
func (store *SettingsStore) Load(defaults Settings) (Settings, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	reader, err := store.read()
	if err != nil {
		return Settings{}, err
	}
	result := Settings{Exclusions: append([]string(nil), defaults.Exclusions...), PathPolicy: defaults.PathPolicy}
	if reader.IsSet(settingsKeyExcludedItems) {
		result.Exclusions = exclusion.ParseJoined(reader.GetString(settingsKeyExcludedItems)).Patterns()
	}
	if reader.IsSet(settingsKeyPathOption) {
		result.PathPolicy = types.ParsePathPolicy(reader.GetString(settingsKeyPathOption))
	}
	if result.PathPolicy == "" {
		result.PathPolicy = types.PathPolicyFull
	}
	return result, nil
}

// SaveExclusions writes the comma-joined exclusion list.
func (store *SettingsStore) SaveExclusions(patterns []string) error {
	return store.write(settingsKeyExcludedItems, exclusion.NewList(patterns).Join())
}

// SavePathPolicy writes the path display policy.
func (store *SettingsStore) SavePathPolicy(policy types.PathPolicy) error {
	return store.write(settingsKeyPathOption, string(types.ParsePathPolicy(string(policy))))
}

func (store *SettingsStore) write(key string, value string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	reader, err := store.read()
	if err != nil {
		return err
	}
	reader.Set(key, value)
	directory := filepath.Dir(store.path)
	if mkdirErr := os.MkdirAll(directory, 0o755); mkdirErr != nil {
		return fmt.Errorf(errorSettingsDirFormat, directory, mkdirErr)
	}
	if writeErr := reader.WriteConfigAs(store.path); writeErr != nil {
		return fmt.Errorf(errorSettingsWriteFormat, store.path, writeErr)
	}
	return nil
}

func (store *SettingsStore) read() (*viper.Viper, error) {
	reader := viper.New()
	reader.SetConfigFile(store.path)
	reader.SetConfigType("yaml")
	if _, statErr := os.Stat(store.path); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return reader, nil
		}
		return nil, fmt.Errorf(errorSettingsReadFormat, store.path, statErr)
	}
	if readErr := reader.ReadInConfig(); readErr != nil {
		return nil, fmt.Errorf(errorSettingsReadFormat, store.path, readErr)
	}
	return reader, nil
}
