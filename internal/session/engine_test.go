package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/temirov/fusion/internal/filetree"
	"github.com/temirov/fusion/internal/search"
	"github.com/temirov/fusion/internal/services/clipboard"
	"github.com/temirov/fusion/internal/session"
	"github.com/temirov/fusion/internal/tokenizer"
	"github.com/temirov/fusion/internal/types"
)

const (
	testDebounceWindow = 20 * time.Millisecond
	testWaitTimeout    = 5 * time.Second
)

type recordingSettings struct {
	mutex      sync.Mutex
	exclusions [][]string
	policies   []types.PathPolicy
}

func (settings *recordingSettings) SaveExclusions(patterns []string) error {
	settings.mutex.Lock()
	defer settings.mutex.Unlock()
	settings.exclusions = append(settings.exclusions, append([]string(nil), patterns...))
	return nil
}

func (settings *recordingSettings) SavePathPolicy(policy types.PathPolicy) error {
	settings.mutex.Lock()
	defer settings.mutex.Unlock()
	settings.policies = append(settings.policies, policy)
	return nil
}

func (settings *recordingSettings) lastExclusions() []string {
	settings.mutex.Lock()
	defer settings.mutex.Unlock()
	if len(settings.exclusions) == 0 {
		return nil
	}
	return settings.exclusions[len(settings.exclusions)-1]
}

// scriptedSearcher answers each query from a table. Queries listed in hold
// block until released.
type scriptedSearcher struct {
	results map[string][]string
	failing map[string]error
	hold    map[string]chan struct{}
	started chan string
}

func (searcher *scriptedSearcher) Search(ctx context.Context, request search.Request) ([]string, error) {
	if searcher.started != nil {
		searcher.started <- request.Query
	}
	if gate, found := searcher.hold[request.Query]; found {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := searcher.failing[request.Query]; err != nil {
		return nil, err
	}
	return searcher.results[request.Query], nil
}

func writeFixture(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for relativePath, data := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(relativePath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(data), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("resolve root: %v", err)
	}
	return resolved
}

func startEngine(t *testing.T, options session.Options) *session.Engine {
	t.Helper()
	if options.DebounceWindow == 0 {
		options.DebounceWindow = testDebounceWindow
	}
	if options.Searcher == nil {
		options.Searcher = &search.WalkSearcher{}
	}
	engine := session.New(options)
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() {
		finished <- engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-finished:
		case <-time.After(testWaitTimeout):
			t.Errorf("engine did not stop")
		}
	})
	return engine
}

func waitIdle(t *testing.T, engine *session.Engine) session.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testWaitTimeout)
	defer cancel()
	if err := engine.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	snapshot, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snapshot
}

func relativeFiles(t *testing.T, root string, node *types.Node) []string {
	t.Helper()
	var result []string
	for _, path := range filetree.Files(node) {
		relative, err := filepath.Rel(root, path)
		if err != nil {
			t.Fatalf("rel: %v", err)
		}
		result = append(result, filepath.ToSlash(relative))
	}
	return result
}

func assertFiles(t *testing.T, expected, actual []string) {
	t.Helper()
	if strings.Join(expected, ",") != strings.Join(actual, ",") {
		t.Fatalf("expected %q, got %q", expected, actual)
	}
}

func TestOpenBuildsTreeAndAppliesNameQuery(t *testing.T) {
	root := writeFixture(t, map[string]string{
		"main.go":         "package main",
		"README.md":       "# readme",
		"internal/app.go": "package internal",
		"build/out.bin":   "compiled",
	})
	engine := startEngine(t, session.Options{Exclusions: []string{"build"}})
	if err := engine.Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	snapshot := waitIdle(t, engine)
	if snapshot.Root != root {
		t.Fatalf("expected root %s, got %s", root, snapshot.Root)
	}
	assertFiles(t, []string{"README.md", "internal/app.go", "main.go"}, relativeFiles(t, root, snapshot.Tree))
	if !snapshot.Filtered.Equal(snapshot.Tree) {
		t.Fatalf("expected unfiltered view to equal the tree")
	}

	if err := engine.SetNameQuery(".GO", false); err != nil {
		t.Fatalf("SetNameQuery: %v", err)
	}
	snapshot = waitIdle(t, engine)
	assertFiles(t, []string{"internal/app.go", "main.go"}, relativeFiles(t, root, snapshot.Filtered))

	if err := engine.SetNameQuery(".GO", true); err != nil {
		t.Fatalf("SetNameQuery: %v", err)
	}
	snapshot = waitIdle(t, engine)
	if snapshot.Filtered != nil {
		t.Fatalf("expected empty filtered tree, got %q", relativeFiles(t, root, snapshot.Filtered))
	}
}

func TestOpenRejectsFiles(t *testing.T) {
	root := writeFixture(t, map[string]string{"a.txt": "a"})
	engine := startEngine(t, session.Options{})
	if err := engine.Open(filepath.Join(root, "a.txt")); err == nil {
		t.Fatalf("expected error when opening a file")
	}
}

func TestDebouncedQueryRunsOnePass(t *testing.T) {
	root := writeFixture(t, map[string]string{"alpha.txt": "a", "beta.txt": "b", "gamma.txt": "c"})
	engine := startEngine(t, session.Options{DebounceWindow: 60 * time.Millisecond})
	if err := engine.Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	before := waitIdle(t, engine)

	for _, text := range []string{"a", "al", "alp", "b", "be"} {
		if err := engine.SetNameQuery(text, false); err != nil {
			t.Fatalf("SetNameQuery: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	after := waitIdle(t, engine)
	if passes := after.FilterPasses - before.FilterPasses; passes != 1 {
		t.Fatalf("expected exactly one filter pass, got %d", passes)
	}
	assertFiles(t, []string{"beta.txt"}, relativeFiles(t, root, after.Filtered))
}

func TestSupersededContentSearchIsDiscarded(t *testing.T) {
	root := writeFixture(t, map[string]string{"slow.txt": "slow", "fast.txt": "fast"})
	release := make(chan struct{})
	searcher := &scriptedSearcher{
		results: map[string][]string{
			"slow": {filepath.Join(root, "slow.txt")},
			"fast": {filepath.Join(root, "fast.txt")},
		},
		hold:    map[string]chan struct{}{"slow": release},
		started: make(chan string, 4),
	}
	engine := startEngine(t, session.Options{Searcher: searcher, Workers: 2})
	if err := engine.Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitIdle(t, engine)

	if err := engine.SetContentQuery("slow", false); err != nil {
		t.Fatalf("SetContentQuery: %v", err)
	}
	select {
	case query := <-searcher.started:
		if query != "slow" {
			t.Fatalf("expected slow search first, got %s", query)
		}
	case <-time.After(testWaitTimeout):
		t.Fatalf("slow search never started")
	}

	if err := engine.SetContentQuery("fast", false); err != nil {
		t.Fatalf("SetContentQuery: %v", err)
	}
	snapshot := waitIdle(t, engine)
	assertFiles(t, []string{"fast.txt"}, relativeFiles(t, root, snapshot.Filtered))

	close(release)
	time.Sleep(50 * time.Millisecond)
	snapshot = waitIdle(t, engine)
	assertFiles(t, []string{"fast.txt"}, relativeFiles(t, root, snapshot.Filtered))
	if snapshot.Query.ContentQuery != "fast" {
		t.Fatalf("expected current query fast, got %s", snapshot.Query.ContentQuery)
	}
}

func TestSearchFailureYieldsEmptyTree(t *testing.T) {
	root := writeFixture(t, map[string]string{"a.txt": "needle"})
	searcher := &scriptedSearcher{failing: map[string]error{"needle": errors.New("exit status 2")}}
	engine := startEngine(t, session.Options{Searcher: searcher})
	events, cancel := engine.Subscribe(32)
	defer cancel()
	if err := engine.Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitIdle(t, engine)
	if err := engine.SetContentQuery("needle", false); err != nil {
		t.Fatalf("SetContentQuery: %v", err)
	}
	snapshot := waitIdle(t, engine)
	if snapshot.Filtered != nil {
		t.Fatalf("expected empty filtered tree after search failure")
	}
	if snapshot.Tree == nil {
		t.Fatalf("expected the full tree to survive")
	}
	sawWarning := false
	for !sawWarning {
		select {
		case event := <-events:
			sawWarning = event.Kind == session.EventKindWarning
		case <-time.After(time.Second):
			t.Fatalf("expected a warning event")
		}
	}
}

func TestMultilineContentQueryIsRejected(t *testing.T) {
	root := writeFixture(t, map[string]string{"a.txt": "first\nsecond", "b.txt": "second"})
	engine := startEngine(t, session.Options{})
	if err := engine.Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := engine.SetContentQuery("second", false); err != nil {
		t.Fatalf("SetContentQuery: %v", err)
	}
	before := waitIdle(t, engine)
	if err := engine.SetContentQuery("first\nsecond", false); !errors.Is(err, search.ErrMultilineQuery) {
		t.Fatalf("expected ErrMultilineQuery, got %v", err)
	}
	after := waitIdle(t, engine)
	if after.Query.ContentQuery != "second" || after.FilterPasses != before.FilterPasses {
		t.Fatalf("rejected query must leave the filter unchanged, got %+v", after.Query)
	}
	assertFiles(t, []string{"a.txt", "b.txt"}, relativeFiles(t, root, after.Filtered))
}

func TestToggleLoadsContentAndCountsTokens(t *testing.T) {
	root := writeFixture(t, map[string]string{
		"docs/a.txt": "alpha",
		"docs/b.txt": "beta",
		"c.bin":      "\x00\x01",
	})
	engine := startEngine(t, session.Options{PathPolicy: types.PathPolicyRelative})
	if err := engine.Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitIdle(t, engine)

	state, err := engine.Toggle(filepath.Join(root, "docs", "a.txt"))
	if err != nil || state != types.Selected {
		t.Fatalf("expected selected file, got %s (%v)", state, err)
	}
	if directoryState, _ := engine.StateOf(filepath.Join(root, "docs")); directoryState != types.Partial {
		t.Fatalf("expected partial directory, got %s", directoryState)
	}
	state, err = engine.Toggle("docs")
	if err != nil || state != types.Selected {
		t.Fatalf("expected partial directory to become selected, got %s (%v)", state, err)
	}
	if _, err := engine.Toggle("c.bin"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	snapshot := waitIdle(t, engine)
	if len(snapshot.Selected) != 3 {
		t.Fatalf("expected three selected files, got %q", snapshot.Selected)
	}

	exported, err := engine.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	expected := "### START OF FILE: c.bin ###\nBinary file skipped: c.bin\n### END OF FILE: c.bin ###\n\n" +
		"### START OF FILE: docs/a.txt ###\nalpha\n### END OF FILE: docs/a.txt ###\n\n" +
		"### START OF FILE: docs/b.txt ###\nbeta\n### END OF FILE: docs/b.txt ###\n\n"
	if exported != expected {
		t.Fatalf("expected %q, got %q", expected, exported)
	}
	if snapshot.TokenCount != tokenizer.Estimate(exported) {
		t.Fatalf("expected %d tokens, got %d", tokenizer.Estimate(exported), snapshot.TokenCount)
	}

	state, err = engine.Toggle(root)
	if err != nil || state != types.Unselected {
		t.Fatalf("expected fully selected root to deselect, got %s (%v)", state, err)
	}
	if _, err := engine.Toggle(filepath.Join(root, "missing.txt")); !errors.Is(err, session.ErrUnknownPath) {
		t.Fatalf("expected ErrUnknownPath, got %v", err)
	}
}

func TestAddExclusionPrunesSelectionAndPersists(t *testing.T) {
	root := writeFixture(t, map[string]string{
		"app.go":         "package app",
		"app.log":        "log line",
		"vendor/lib.go":  "package lib",
		"vendor/lib.txt": "text",
	})
	settings := &recordingSettings{}
	engine := startEngine(t, session.Options{Settings: settings})
	if err := engine.Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitIdle(t, engine)
	if _, err := engine.Toggle(root); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	waitIdle(t, engine)

	added, err := engine.AddExclusion("*.log")
	if err != nil || !added {
		t.Fatalf("expected pattern to be added, got %t (%v)", added, err)
	}
	if added, _ := engine.AddExclusion("*.log"); added {
		t.Fatalf("duplicate pattern must not be added")
	}
	if _, err := engine.AddExclusion("vendor/"); err != nil {
		t.Fatalf("AddExclusion: %v", err)
	}
	snapshot := waitIdle(t, engine)
	assertFiles(t, []string{"app.go"}, relativeFiles(t, root, snapshot.Tree))
	if len(snapshot.Selected) != 1 || snapshot.Selected[0] != filepath.Join(root, "app.go") {
		t.Fatalf("expected only app.go to stay selected, got %q", snapshot.Selected)
	}
	if saved := settings.lastExclusions(); strings.Join(saved, ",") != "*.log,vendor/" {
		t.Fatalf("expected persisted exclusions, got %q", saved)
	}

	removed, err := engine.RemoveExclusion("vendor/")
	if err != nil || !removed {
		t.Fatalf("expected pattern to be removed, got %t (%v)", removed, err)
	}
	snapshot = waitIdle(t, engine)
	assertFiles(t, []string{"app.go", "vendor/lib.go", "vendor/lib.txt"}, relativeFiles(t, root, snapshot.Tree))
	if patterns, _ := engine.Exclusions(); strings.Join(patterns, ",") != "*.log" {
		t.Fatalf("unexpected exclusions %q", patterns)
	}
}

func TestStaleSelectedFileIsReloaded(t *testing.T) {
	root := writeFixture(t, map[string]string{"notes.txt": "first"})
	path := filepath.Join(root, "notes.txt")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	engine := startEngine(t, session.Options{StalenessInterval: 20 * time.Millisecond})
	if err := engine.Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitIdle(t, engine)
	if _, err := engine.Toggle(path); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	waitIdle(t, engine)
	time.Sleep(60 * time.Millisecond)
	if exported, _ := engine.Export(); !strings.Contains(exported, "first") {
		t.Fatalf("expected unchanged content, got %q", exported)
	}

	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	deadline := time.Now().Add(testWaitTimeout)
	for {
		exported, err := engine.Export()
		if err != nil {
			t.Fatalf("Export: %v", err)
		}
		if strings.Contains(exported, "second") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("modified file was not reloaded, export %q", exported)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSetPathPolicyPersistsAndChangesExport(t *testing.T) {
	root := writeFixture(t, map[string]string{"a.txt": "X"})
	settings := &recordingSettings{}
	var copied string
	engine := startEngine(t, session.Options{
		Settings:  settings,
		Clipboard: clipboard.Func(func(text string) error { copied = text; return nil }),
	})
	if err := engine.Open(root); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitIdle(t, engine)
	if _, err := engine.Toggle("a.txt"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	waitIdle(t, engine)
	if err := engine.SetPathPolicy(types.PathPolicyRelative); err != nil {
		t.Fatalf("SetPathPolicy: %v", err)
	}
	waitIdle(t, engine)
	if err := engine.CopyToClipboard(); err != nil {
		t.Fatalf("CopyToClipboard: %v", err)
	}
	if copied != "### START OF FILE: a.txt ###\nX\n### END OF FILE: a.txt ###\n\n" {
		t.Fatalf("unexpected clipboard text %q", copied)
	}
	if len(settings.policies) != 1 || settings.policies[0] != types.PathPolicyRelative {
		t.Fatalf("expected persisted relative policy, got %v", settings.policies)
	}
}

func TestMethodsFailAfterStop(t *testing.T) {
	engine := session.New(session.Options{Searcher: &search.WalkSearcher{}})
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- engine.Run(ctx) }()
	if _, err := engine.Snapshot(); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	cancel()
	if err := <-finished; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := engine.Reload(); !errors.Is(err, session.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if err := engine.Run(context.Background()); !errors.Is(err, session.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	events, _ := engine.Subscribe(1)
	if _, open := <-events; open {
		t.Fatalf("expected closed event channel after stop")
	}
}

func TestReloadWithoutRoot(t *testing.T) {
	engine := startEngine(t, session.Options{})
	if err := engine.Reload(); !errors.Is(err, session.ErrNoRoot) {
		t.Fatalf("expected ErrNoRoot, got %v", err)
	}
}
