// Package session coordinates tree building, filtering, selection, content
// loading and token estimation for one root directory.
//
// All published state is owned by the goroutine running Engine.Run. Public
// methods post actions to it and wait for them to complete, so they block until
// Run is started. Blocking work runs on a worker pool and posts its result back
// to the coordinator, where stale results are discarded by version.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/fusion/internal/content"
	"github.com/temirov/fusion/internal/exclusion"
	"github.com/temirov/fusion/internal/filetree"
	"github.com/temirov/fusion/internal/filter"
	"github.com/temirov/fusion/internal/output"
	"github.com/temirov/fusion/internal/search"
	"github.com/temirov/fusion/internal/selection"
	"github.com/temirov/fusion/internal/services/clipboard"
	"github.com/temirov/fusion/internal/tokenizer"
	"github.com/temirov/fusion/internal/types"
	"github.com/temirov/fusion/internal/utils"
)

const (
	defaultWorkers           = 4
	defaultStalenessInterval = 2 * time.Second
	defaultEventBuffer       = 64
	actionQueueCapacity      = 64
	idlePollInterval         = 50 * time.Millisecond

	errorOpenRootFormat       = "open %s: %w"
	errorUnknownPathFormat    = "%w: %s"
	errorCopyClipboardFormat  = "copy export: %w"
	warningPersistExclusions  = "unable to persist exclusions: %v"
	warningPersistPathPolicy  = "unable to persist path display policy: %v"
	warningTreeBuildFormat    = "unable to build tree for %s: %v"
	warningSearchFailedFormat = "content search failed: %v"
)

var (
	// ErrStopped is returned by every method once Run has returned.
	ErrStopped = errors.New("session stopped")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrNoRoot is returned by operations that need an open root directory.
	ErrNoRoot = errors.New("no root directory is open")
	// ErrUnknownPath is returned when a path is not part of the current tree.
	ErrUnknownPath = errors.New("path is not in the current tree")
	// ErrNoClipboard is returned by CopyToClipboard when no sink is configured.
	ErrNoClipboard = errors.New("no clipboard configured")
)

// SettingsStore persists the user-editable exclusion list and path display policy.
type SettingsStore interface {
	SaveExclusions(patterns []string) error
	SavePathPolicy(policy types.PathPolicy) error
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Logger            *zap.Logger
	Searcher          search.Searcher
	Store             *content.Store
	Counter           tokenizer.Counter
	Settings          SettingsStore
	Clipboard         clipboard.Copier
	Exclusions        []string
	PathPolicy        types.PathPolicy
	Workers           int
	TreeConcurrency   int
	DebounceWindow    time.Duration
	StalenessInterval time.Duration
}

// Snapshot is a consistent copy of the published state.
type Snapshot struct {
	Root           string
	Tree           *types.Node
	Filtered       *types.Node
	Query          types.Query
	Loading        bool
	FilterPending  bool
	Filtering      bool
	FilterPasses   int
	Selected       []string
	ContentLoading int
	Counting       bool
	TokenCount     int
	TokenModel     string
	PathPolicy     types.PathPolicy
	Exclusions     []string
}

// Idle reports whether no build, filter pass, content load or token count is outstanding.
func (snapshot Snapshot) Idle() bool {
	return !snapshot.Loading && !snapshot.FilterPending && !snapshot.Filtering && snapshot.ContentLoading == 0 && !snapshot.Counting
}

// Engine is the coordinator. Tree snapshots it publishes are never mutated and
// may be shared freely.
type Engine struct {
	logger            *zap.Logger
	searcher          search.Searcher
	store             *content.Store
	counter           tokenizer.Counter
	settings          SettingsStore
	clipboard         clipboard.Copier
	workers           int
	treeConcurrency   int
	stalenessInterval time.Duration

	actions   chan func()
	done      chan struct{}
	running   atomic.Bool
	events    *broadcaster
	debouncer *filter.Debouncer
	pool      *workerPool

	root          string
	tree          *types.Node
	filtered      *types.Node
	query         types.Query
	loading       bool
	filterPending bool
	filtering     bool
	filterPasses  int
	selection     *selection.Set
	inflight      map[string]struct{}
	counting      bool
	tokenCount    int
	pathPolicy    types.PathPolicy
	exclusions    *exclusion.List
	stalePolling  bool

	treeVersion  uint64
	queryVersion uint64
	tokenVersion uint64
}

// New constructs an Engine. Run must be called before any other method returns.
func New(options Options) *Engine {
	logger := utils.LoggerOrNop(options.Logger)
	engine := &Engine{
		logger:            logger,
		searcher:          options.Searcher,
		store:             options.Store,
		counter:           options.Counter,
		settings:          options.Settings,
		clipboard:         options.Clipboard,
		workers:           options.Workers,
		treeConcurrency:   options.TreeConcurrency,
		stalenessInterval: options.StalenessInterval,
		actions:           make(chan func(), actionQueueCapacity),
		done:              make(chan struct{}),
		events:            newBroadcaster(logger),
		selection:         selection.NewSet(),
		inflight:          make(map[string]struct{}),
		pathPolicy:        types.ParsePathPolicy(string(options.PathPolicy)),
		exclusions:        exclusion.NewList(options.Exclusions),
	}
	if engine.searcher == nil {
		engine.searcher = search.New(search.ToolAuto, "", logger)
	}
	if engine.store == nil {
		engine.store = content.NewStore(logger)
	}
	if engine.counter == nil {
		engine.counter = tokenizer.ApproximateCounter{}
	}
	if engine.workers <= 0 {
		engine.workers = defaultWorkers
	}
	if engine.stalenessInterval <= 0 {
		engine.stalenessInterval = defaultStalenessInterval
	}
	engine.debouncer = filter.NewDebouncer(options.DebounceWindow, func() {
		engine.post(engine.runDebouncedPass)
	})
	return engine
}

// Run executes the coordinator loop until ctx is done. Background work still in
// flight is cancelled and awaited before Run returns.
func (engine *Engine) Run(ctx context.Context) error {
	if !engine.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	runContext, cancel := context.WithCancel(ctx)
	engine.pool = newWorkerPool(runContext, engine.workers, func(apply func()) {
		select {
		case engine.actions <- apply:
		case <-runContext.Done():
		}
	})
	ticker := time.NewTicker(engine.stalenessInterval)
	defer func() {
		ticker.Stop()
		engine.debouncer.Stop()
		cancel()
		engine.pool.wait()
		close(engine.done)
		engine.events.close()
		engine.logger.Debug("session stopped", zap.String("root", engine.root))
	}()

	for {
		select {
		case <-runContext.Done():
			return nil
		case action := <-engine.actions:
			action()
		case <-ticker.C:
			engine.pollStaleness()
		}
	}
}

// Subscribe returns a channel of state change events and a function that
// cancels the subscription. Events are dropped when the buffer is full.
// The channel is closed when Run returns.
func (engine *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return engine.events.subscribe(buffer)
}

// Open replaces the root directory, clears the selection and both queries and
// starts building the new tree.
func (engine *Engine) Open(root string) error {
	resolved, resolveError := utils.ResolveDirectory(root)
	if resolveError != nil {
		return fmt.Errorf(errorOpenRootFormat, root, resolveError)
	}
	return engine.call(func() {
		engine.logger.Info("opening root", zap.String("root", resolved))
		engine.root = resolved
		engine.tree = nil
		engine.filtered = nil
		engine.query = types.Query{
			NameCaseSensitive:    engine.query.NameCaseSensitive,
			ContentCaseSensitive: engine.query.ContentCaseSensitive,
		}
		engine.filterPending = false
		engine.filtering = false
		engine.queryVersion++
		engine.selection.Clear()
		engine.publish(EventKindSelection, "")
		engine.startBuild()
		engine.recountTokens()
	})
}

// Reload rebuilds the tree of the current root.
func (engine *Engine) Reload() error {
	var result error
	callError := engine.call(func() {
		if engine.root == "" {
			result = ErrNoRoot
			return
		}
		engine.startBuild()
	})
	return errors.Join(callError, result)
}

// SetNameQuery updates the file name filter. The filter pass runs after the debounce window.
func (engine *Engine) SetNameQuery(text string, caseSensitive bool) error {
	return engine.call(func() {
		engine.query.NameQuery = text
		engine.query.NameCaseSensitive = caseSensitive
		engine.scheduleFilterPass()
	})
}

// SetContentQuery updates the content filter. The filter pass runs after the debounce window.
// A query spanning several lines is rejected and leaves the current filter unchanged.
func (engine *Engine) SetContentQuery(text string, caseSensitive bool) error {
	if queryError := search.ValidateQuery(text); queryError != nil {
		return queryError
	}
	return engine.call(func() {
		engine.query.ContentQuery = text
		engine.query.ContentCaseSensitive = caseSensitive
		engine.scheduleFilterPass()
	})
}

// Toggle flips the selection of the file or directory at path and returns its new state.
// Directories are resolved in the filtered tree first, so only visible files are affected.
func (engine *Engine) Toggle(path string) (types.SelectionState, error) {
	var state types.SelectionState
	var result error
	callError := engine.call(func() {
		node := engine.lookup(path)
		if node == nil {
			result = fmt.Errorf(errorUnknownPathFormat, ErrUnknownPath, path)
			return
		}
		engine.selection.Toggle(node)
		state = engine.selection.StateOf(node)
		engine.publish(EventKindSelection, node.Path)
		engine.loadSelected()
		engine.recountTokens()
	})
	return state, errors.Join(callError, result)
}

// StateOf returns the derived selection state of path.
func (engine *Engine) StateOf(path string) (types.SelectionState, error) {
	var state types.SelectionState
	var result error
	callError := engine.call(func() {
		node := engine.lookup(path)
		if node == nil {
			result = fmt.Errorf(errorUnknownPathFormat, ErrUnknownPath, path)
			return
		}
		state = engine.selection.StateOf(node)
	})
	return state, errors.Join(callError, result)
}

// AddExclusion appends pattern to the exclusion list, persists the list, drops
// selected files that the pattern now excludes and rebuilds the tree.
// It reports false when the pattern was blank or already present.
func (engine *Engine) AddExclusion(pattern string) (bool, error) {
	var added bool
	callError := engine.call(func() {
		added = engine.exclusions.Add(pattern)
		if !added {
			return
		}
		engine.exclusionsChanged()
		matcher := engine.exclusions.Matcher()
		removed := engine.selection.Retain(func(path string) bool {
			return !engine.excludedPath(matcher, path)
		})
		if len(removed) > 0 {
			engine.logger.Debug("dropped excluded files from selection", zap.Strings("paths", removed))
			engine.publish(EventKindSelection, "")
		}
		if engine.root != "" {
			engine.startBuild()
		}
		engine.recountTokens()
	})
	return added, callError
}

// RemoveExclusion removes pattern from the exclusion list, persists the list and
// rebuilds the tree. It reports false when the pattern was not present.
func (engine *Engine) RemoveExclusion(pattern string) (bool, error) {
	var removed bool
	callError := engine.call(func() {
		removed = engine.exclusions.Remove(pattern)
		if !removed {
			return
		}
		engine.exclusionsChanged()
		if engine.root != "" {
			engine.startBuild()
		}
	})
	return removed, callError
}

// Exclusions returns the current exclusion patterns in order.
func (engine *Engine) Exclusions() ([]string, error) {
	var patterns []string
	callError := engine.call(func() {
		patterns = engine.exclusions.Patterns()
	})
	return patterns, callError
}

// SetPathPolicy changes how exported paths are displayed and persists the choice.
func (engine *Engine) SetPathPolicy(policy types.PathPolicy) error {
	return engine.call(func() {
		if policy == engine.pathPolicy {
			return
		}
		engine.pathPolicy = policy
		if engine.settings != nil {
			if saveError := engine.settings.SavePathPolicy(policy); saveError != nil {
				engine.warn(fmt.Sprintf(warningPersistPathPolicy, saveError))
			}
		}
		engine.recountTokens()
	})
}

// Snapshot returns a copy of the published state.
func (engine *Engine) Snapshot() (Snapshot, error) {
	var snapshot Snapshot
	callError := engine.call(func() {
		snapshot = Snapshot{
			Root:           engine.root,
			Tree:           engine.tree,
			Filtered:       engine.filtered,
			Query:          engine.query,
			Loading:        engine.loading,
			FilterPending:  engine.filterPending,
			Filtering:      engine.filtering,
			FilterPasses:   engine.filterPasses,
			Selected:       engine.selection.Paths(),
			ContentLoading: len(engine.inflight),
			Counting:       engine.counting,
			TokenCount:     engine.tokenCount,
			TokenModel:     engine.counter.Name(),
			PathPolicy:     engine.pathPolicy,
			Exclusions:     engine.exclusions.Patterns(),
		}
	})
	return snapshot, callError
}

// Export renders the selected files that have loaded content.
func (engine *Engine) Export() (string, error) {
	var text string
	callError := engine.call(func() {
		text = output.RenderExport(engine.selection.Paths(), engine.store.Get, engine.root, engine.pathPolicy)
	})
	return text, callError
}

// CopyToClipboard sends the current export to the clipboard sink.
func (engine *Engine) CopyToClipboard() error {
	if engine.clipboard == nil {
		return ErrNoClipboard
	}
	text, exportError := engine.Export()
	if exportError != nil {
		return exportError
	}
	if copyError := engine.clipboard.Copy(text); copyError != nil {
		return fmt.Errorf(errorCopyClipboardFormat, copyError)
	}
	return nil
}

// WaitIdle blocks until Snapshot reports Idle, ctx is done or the engine stops.
func (engine *Engine) WaitIdle(ctx context.Context) error {
	events, cancel := engine.Subscribe(defaultEventBuffer)
	defer cancel()
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		snapshot, snapshotError := engine.Snapshot()
		if snapshotError != nil {
			return snapshotError
		}
		if snapshot.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-events:
		case <-ticker.C:
		}
	}
}

// call runs action on the coordinator and waits for it.
func (engine *Engine) call(action func()) error {
	completed := make(chan struct{})
	select {
	case engine.actions <- func() {
		action()
		close(completed)
	}:
	case <-engine.done:
		return ErrStopped
	}
	select {
	case <-completed:
		return nil
	case <-engine.done:
		select {
		case <-completed:
			return nil
		default:
			return ErrStopped
		}
	}
}

// post queues action without waiting for it.
func (engine *Engine) post(action func()) {
	select {
	case engine.actions <- action:
	case <-engine.done:
	}
}

func (engine *Engine) dispatch(next task) {
	engine.pool.submit(next)
}

func (engine *Engine) publish(kind EventKind, path string) {
	engine.events.publish(Event{Kind: kind, Path: path})
}

func (engine *Engine) warn(message string) {
	engine.logger.Warn(message)
	engine.events.publish(Event{Kind: EventKindWarning, Message: message})
}

// lookup finds path in the filtered tree, falling back to the full tree.
func (engine *Engine) lookup(path string) *types.Node {
	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) && engine.root != "" {
		cleaned = filepath.Join(engine.root, cleaned)
	}
	if node := filetree.Find(engine.filtered, cleaned); node != nil {
		return node
	}
	return filetree.Find(engine.tree, cleaned)
}

func (engine *Engine) startBuild() {
	engine.treeVersion++
	version := engine.treeVersion
	engine.loading = true
	root := engine.root
	builder := filetree.Builder{
		Matcher:     engine.exclusions.Matcher(),
		Concurrency: engine.treeConcurrency,
		Logger:      engine.logger,
	}
	engine.dispatch(func(ctx context.Context) func() {
		tree, buildError := builder.Build(ctx, root)
		return func() {
			if version != engine.treeVersion {
				return
			}
			engine.loading = false
			if buildError != nil {
				engine.warn(fmt.Sprintf(warningTreeBuildFormat, root, buildError))
				return
			}
			engine.tree = tree
			engine.publish(EventKindTree, root)
			engine.runFilterPass()
		}
	})
}

func (engine *Engine) scheduleFilterPass() {
	engine.filterPending = true
	engine.debouncer.Notify()
}

func (engine *Engine) runDebouncedPass() {
	engine.filterPending = false
	engine.runFilterPass()
}

// runFilterPass filters the current tree with the current query. Content
// queries are resolved on the pool; the previous filtered tree stays
// published until a newer pass completes.
func (engine *Engine) runFilterPass() {
	engine.queryVersion++
	version := engine.queryVersion
	engine.filterPasses++
	tree := engine.tree
	query := engine.query
	if query.ContentQuery == "" || tree == nil {
		engine.filtering = false
		engine.filtered = filter.Apply(tree, query, nil)
		engine.publish(EventKindFiltered, "")
		return
	}

	engine.filtering = true
	engine.publish(EventKindFiltering, "")
	request := search.Request{
		Root:          engine.root,
		Query:         query.ContentQuery,
		CaseSensitive: query.ContentCaseSensitive,
		Excludes:      search.ExcludesFromPatterns(engine.exclusions.Patterns()),
	}
	searcher := engine.searcher
	engine.dispatch(func(ctx context.Context) func() {
		matches, searchError := searcher.Search(ctx, request)
		filtered := filter.Apply(tree, query, search.MatchSet(matches))
		return func() {
			if version != engine.queryVersion {
				engine.logger.Debug("discarding superseded content search", zap.String("query", query.ContentQuery))
				return
			}
			if searchError != nil {
				engine.warn(fmt.Sprintf(warningSearchFailedFormat, searchError))
			}
			engine.filtering = false
			engine.filtered = filtered
			engine.publish(EventKindFiltered, "")
		}
	})
}

// loadSelected starts loads for selected files that have no cached content.
func (engine *Engine) loadSelected() {
	for _, path := range engine.selection.Paths() {
		if _, cached := engine.store.Get(path); cached {
			continue
		}
		engine.load(path)
	}
}

// load reads path on the pool unless a load for it is already in flight.
func (engine *Engine) load(path string) {
	if _, busy := engine.inflight[path]; busy {
		return
	}
	engine.inflight[path] = struct{}{}
	store := engine.store
	engine.dispatch(func(ctx context.Context) func() {
		entry, loadError := store.Load(ctx, path)
		return func() {
			delete(engine.inflight, path)
			if loadError != nil {
				return
			}
			engine.store.Put(entry)
			engine.publish(EventKindContent, path)
			if engine.selection.IsSelected(path) {
				engine.recountTokens()
			}
		}
	})
}

// recountTokens estimates the export of the current selection on the pool.
func (engine *Engine) recountTokens() {
	engine.tokenVersion++
	version := engine.tokenVersion
	engine.counting = true
	paths := engine.selection.Paths()
	root, policy, counter, store := engine.root, engine.pathPolicy, engine.counter, engine.store
	engine.dispatch(func(ctx context.Context) func() {
		text := output.RenderExport(paths, store.Get, root, policy)
		count, countError := tokenizer.EstimateWith(counter, text)
		return func() {
			if version != engine.tokenVersion {
				return
			}
			engine.counting = false
			if countError != nil {
				engine.warn(countError.Error())
				return
			}
			engine.tokenCount = count
			engine.publish(EventKindTokens, "")
		}
	})
}

// pollStaleness stats the selected files on the pool, then reloads the ones
// whose modification time advanced. Only one poll runs at a time.
func (engine *Engine) pollStaleness() {
	if engine.stalePolling || engine.selection.Len() == 0 {
		return
	}
	engine.stalePolling = true
	paths := engine.selection.Paths()
	engine.dispatch(func(ctx context.Context) func() {
		observed := make(map[string]time.Time, len(paths))
		for _, path := range paths {
			if ctx.Err() != nil {
				break
			}
			info, statError := os.Stat(path)
			if statError != nil {
				continue
			}
			observed[path] = info.ModTime()
		}
		return func() {
			engine.stalePolling = false
			for _, path := range paths {
				modTime, found := observed[path]
				if !found || !engine.selection.IsSelected(path) {
					continue
				}
				// A running load is re-checked on the next tick once its entry is stored.
				if _, busy := engine.inflight[path]; busy {
					continue
				}
				if engine.store.Observe(path, modTime) {
					engine.logger.Debug("reloading modified file", zap.String("path", path))
					engine.load(path)
				}
			}
		}
	})
}

func (engine *Engine) exclusionsChanged() {
	engine.publish(EventKindExclusions, "")
	if engine.settings == nil {
		return
	}
	if saveError := engine.settings.SaveExclusions(engine.exclusions.Patterns()); saveError != nil {
		engine.warn(fmt.Sprintf(warningPersistExclusions, saveError))
	}
}

// excludedPath reports whether matcher excludes path's base name or any of its
// directories below the root.
func (engine *Engine) excludedPath(matcher exclusion.Matcher, path string) bool {
	if matcher.IsExcluded(filepath.Base(path)) {
		return true
	}
	if engine.root == "" || !utils.IsWithin(path, engine.root) {
		return false
	}
	relative, relativeError := filepath.Rel(engine.root, filepath.Dir(path))
	if relativeError != nil || relative == "." {
		return false
	}
	for _, component := range strings.Split(relative, string(filepath.Separator)) {
		if matcher.IsExcludedDirectory(component) {
			return true
		}
	}
	return false
}
