// Package content loads and caches file text for the current selection.
package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/temirov/fusion/internal/types"
	"github.com/temirov/fusion/internal/utils"
)

const (
	binaryPlaceholderFormat      = "Binary file skipped: %s"
	unavailablePlaceholderFormat = "Unable to load content for %s"
)

// Entry is the cached content of one file.
type Entry struct {
	Path    string
	Kind    types.ContentKind
	Text    string
	ModTime time.Time
}

// BinaryEntry returns the placeholder entry recorded for binary files.
func BinaryEntry(path string, modTime time.Time) Entry {
	return Entry{Path: path, Kind: types.ContentBinary, Text: fmt.Sprintf(binaryPlaceholderFormat, filepath.Base(path)), ModTime: modTime}
}

// UnavailableEntry returns the placeholder entry recorded for unreadable files.
func UnavailableEntry(path string, modTime time.Time) Entry {
	return Entry{Path: path, Kind: types.ContentUnavailable, Text: fmt.Sprintf(unavailablePlaceholderFormat, filepath.Base(path)), ModTime: modTime}
}

// Store caches file content. Load may run on any goroutine and never writes the
// cache; Put and Observe are called by a single owner.
type Store struct {
	logger   *zap.Logger
	readFile func(string) ([]byte, error)
	group    singleflight.Group
	mutex    sync.RWMutex
	entries  map[string]Entry
	observed map[string]time.Time
}

// NewStore returns an empty Store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:   utils.LoggerOrNop(logger),
		readFile: os.ReadFile,
		entries:  make(map[string]Entry),
		observed: make(map[string]time.Time),
	}
}

// Load returns the content of path. A cached entry whose file has not been
// modified since is returned without reading, and binary entries are never
// re-read. Concurrent loads of one path share a single read. The error is
// non-nil only when ctx ends first.
func (store *Store) Load(ctx context.Context, path string) (Entry, error) {
	info, statError := os.Stat(path)
	if statError != nil {
		store.logger.Debug("content unavailable", zap.String("path", path), zap.Error(statError))
		return UnavailableEntry(path, time.Time{}), nil
	}
	if cached, found := store.Get(path); found {
		if cached.Kind == types.ContentBinary || !info.ModTime().After(cached.ModTime) {
			return cached, nil
		}
	}

	resultChannel := store.group.DoChan(path, func() (interface{}, error) {
		return store.read(path, info.ModTime()), nil
	})
	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case result := <-resultChannel:
		return result.Val.(Entry), nil
	}
}

func (store *Store) read(path string, modTime time.Time) Entry {
	data, readError := store.readFile(path)
	if readError != nil {
		store.logger.Debug("content read failed", zap.String("path", path), zap.Error(readError))
		return UnavailableEntry(path, modTime)
	}
	if utils.IsBinary(data) {
		return BinaryEntry(path, modTime)
	}
	if !utf8.Valid(data) {
		store.logger.Debug("content is not valid UTF-8", zap.String("path", path))
		return UnavailableEntry(path, modTime)
	}
	return Entry{Path: path, Kind: types.ContentText, Text: string(data), ModTime: modTime}
}

// Get returns the cached entry for path.
func (store *Store) Get(path string) (Entry, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	entry, found := store.entries[path]
	return entry, found
}

// Put records entry and resets the observed modification time of its path to
// the time the entry was read at. A change observed while the read was running
// is therefore reported again by the next Observe.
func (store *Store) Put(entry Entry) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.entries[entry.Path] = entry
	store.observed[entry.Path] = entry.ModTime
}

// Observe records modTime for path and reports whether it is newer than the
// previously recorded time. The first observation of a path only sets the baseline.
func (store *Store) Observe(path string, modTime time.Time) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	previous, found := store.observed[path]
	if !found || modTime.After(previous) {
		store.observed[path] = modTime
	}
	return found && modTime.After(previous)
}

// Paths returns the cached paths in lexical order.
func (store *Store) Paths() []string {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	paths := make([]string, 0, len(store.entries))
	for path := range store.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
