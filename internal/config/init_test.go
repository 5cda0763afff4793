package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/temirov/fusion/internal/types"
)

func TestDefaultConfigurationLoadsAsDefaults(t *testing.T) {
	workingDirectory := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	path, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory})
	if err != nil {
		t.Fatalf("initialize configuration: %v", err)
	}
	if path != filepath.Join(workingDirectory, ".fusion.yaml") {
		t.Fatalf("unexpected destination %s", path)
	}

	loaded, loadErr := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDirectory})
	if loadErr != nil {
		t.Fatalf("load generated configuration: %v", loadErr)
	}
	if !reflect.DeepEqual(loaded.Exclusions, StarterExclusions) {
		t.Fatalf("expected exclusions %v, got %v", StarterExclusions, loaded.Exclusions)
	}
	var empty ApplicationConfiguration
	checks := []struct {
		name     string
		actual   any
		expected any
	}{
		{name: "workers", actual: loaded.WorkerCount(), expected: empty.WorkerCount()},
		{name: "debounce", actual: loaded.DebounceWindow(), expected: empty.DebounceWindow()},
		{name: "staleness", actual: loaded.StalenessInterval(), expected: empty.StalenessInterval()},
		{name: "search tool", actual: loaded.SearchTool(), expected: empty.SearchTool()},
		{name: "token model", actual: loaded.TokenModel(), expected: empty.TokenModel()},
		{name: "path policy", actual: loaded.PathPolicy(), expected: types.PathPolicyFull},
	}
	for _, check := range checks {
		if check.actual != check.expected {
			t.Fatalf("%s: generated %v differs from built-in default %v", check.name, check.actual, check.expected)
		}
	}
}

func TestInitializeConfigurationGlobalTarget(t *testing.T) {
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)
	path, err := InitializeConfiguration(InitOptions{Target: InitTargetGlobal})
	if err != nil {
		t.Fatalf("initialize configuration: %v", err)
	}
	expected := filepath.Join(homeDirectory, ".fusion", "config.yaml")
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected file at %s: %v", path, statErr)
	}
}

func TestInitializeConfigurationOverwriteRules(t *testing.T) {
	workingDirectory := t.TempDir()
	path := filepath.Join(workingDirectory, ".fusion.yaml")
	if err := os.WriteFile(path, []byte("workers: 9\n"), 0o600); err != nil {
		t.Fatalf("seed configuration: %v", err)
	}

	if _, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory}); err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
	if _, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory, Force: true}); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
	written, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read configuration: %v", readErr)
	}
	if string(written) != DefaultConfiguration() {
		t.Fatalf("forced overwrite left %q", written)
	}
	if _, err := InitializeConfiguration(InitOptions{Target: "remote"}); err == nil {
		t.Fatalf("expected error for unsupported target")
	}
}
