package search

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/fusion/internal/utils"
)

// WalkSearcher is the in-process content search. Exclude specs use glob
// semantics against base names, the way grep applies --exclude and --exclude-dir.
type WalkSearcher struct {
	Concurrency int
	Logger      *zap.Logger
}

// Search walks request.Root and returns the files containing request.Query in walk order.
func (searcher *WalkSearcher) Search(ctx context.Context, request Request) ([]string, error) {
	logger := utils.LoggerOrNop(searcher.Logger)
	if request.Query == "" {
		return nil, nil
	}
	if queryError := ValidateQuery(request.Query); queryError != nil {
		return nil, queryError
	}
	needle := []byte(request.Query)
	if !request.CaseSensitive {
		needle = bytes.ToLower(needle)
	}

	var candidates []string
	walkError := filepath.WalkDir(request.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if path != request.Root && excluded(request.Excludes, entry.Name(), true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || excluded(request.Excludes, entry.Name(), false) {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}

	concurrency := searcher.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	matched := make([]bool, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	var readFailures sync.Map
	for index, candidate := range candidates {
		index, candidate := index, candidate
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			data, readError := os.ReadFile(candidate)
			if readError != nil {
				readFailures.Store(candidate, readError)
				return nil
			}
			if !request.CaseSensitive {
				data = bytes.ToLower(data)
			}
			matched[index] = bytes.Contains(data, needle)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	readFailures.Range(func(key, value any) bool {
		logger.Debug("skipping unreadable file", zap.String("path", key.(string)), zap.Error(value.(error)))
		return true
	})

	var matches []string
	for index, candidate := range candidates {
		if matched[index] {
			matches = append(matches, filepath.Clean(candidate))
		}
	}
	return matches, nil
}

func excluded(specs []ExcludeSpec, name string, isDirectory bool) bool {
	for _, exclude := range specs {
		if exclude.Directory != isDirectory {
			continue
		}
		if matched, matchError := filepath.Match(exclude.Pattern, name); matchError == nil && matched {
			return true
		}
	}
	return false
}

var _ Searcher = (*WalkSearcher)(nil)
