// Package filetree builds immutable snapshot trees of eligible files under a root directory.
package filetree

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/temirov/fusion/internal/exclusion"
	"github.com/temirov/fusion/internal/types"
	"github.com/temirov/fusion/internal/utils"
)

const (
	defaultConcurrency = 8

	// errorAbsolutePathFormat is used when the absolute path cannot be determined.
	errorAbsolutePathFormat = "getting absolute path for %s: %w"
	// errorBuildTreeFormat is used when building the tree is interrupted.
	errorBuildTreeFormat = "building tree for %s: %w"

	debugSkipStatMessage      = "skipping unreadable entry"
	debugSkipDirectoryMessage = "skipping unreadable directory"
	debugSkipSymlinkMessage   = "skipping symbolic link to directory"
)

// Builder walks a directory and produces a snapshot tree, dropping excluded
// entries and directories without surviving files.
type Builder struct {
	Matcher     exclusion.Matcher
	Concurrency int
	Logger      *zap.Logger
}

type buildContext struct {
	ctx     context.Context
	limiter *semaphore.Weighted
	matcher exclusion.Matcher
	logger  *zap.Logger
}

// Build returns the snapshot tree rooted at root. A nil node means root is
// excluded, unreadable, or a directory without eligible files. The error is
// non-nil only when the root cannot be resolved or ctx is cancelled.
func (builder Builder) Build(ctx context.Context, root string) (*types.Node, error) {
	absoluteRoot, absoluteError := filepath.Abs(root)
	if absoluteError != nil {
		return nil, fmt.Errorf(errorAbsolutePathFormat, root, absoluteError)
	}
	concurrency := builder.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	walker := &buildContext{
		ctx:     ctx,
		limiter: semaphore.NewWeighted(int64(concurrency)),
		matcher: builder.Matcher,
		logger:  utils.LoggerOrNop(builder.Logger),
	}
	info, statError := os.Stat(absoluteRoot)
	if statError != nil {
		walker.logger.Debug(debugSkipStatMessage, zap.String("path", absoluteRoot), zap.Error(statError))
		return nil, nil
	}
	node, buildError := walker.build(absoluteRoot, info.IsDir())
	if buildError != nil {
		return nil, fmt.Errorf(errorBuildTreeFormat, root, buildError)
	}
	return node, nil
}

func (walker *buildContext) build(path string, isDirectory bool) (*types.Node, error) {
	if err := walker.ctx.Err(); err != nil {
		return nil, err
	}
	if walker.matcher.Excludes(filepath.Base(path), isDirectory) {
		return nil, nil
	}
	if !isDirectory {
		return &types.Node{Path: path}, nil
	}

	entries, readError := os.ReadDir(path)
	if readError != nil {
		walker.logger.Debug(debugSkipDirectoryMessage, zap.String("path", path), zap.Error(readError))
		return nil, nil
	}

	children := make([]*types.Node, len(entries))
	var group errgroup.Group
	for index, entry := range entries {
		childPath := filepath.Join(path, entry.Name())
		childIsDirectory, eligible := walker.classify(childPath, entry)
		if !eligible {
			continue
		}
		index := index
		buildChild := func() error {
			child, childError := walker.build(childPath, childIsDirectory)
			if childError != nil {
				return childError
			}
			children[index] = child
			return nil
		}
		if childIsDirectory && walker.limiter.TryAcquire(1) {
			group.Go(func() error {
				defer walker.limiter.Release(1)
				return buildChild()
			})
			continue
		}
		if err := buildChild(); err != nil {
			_ = group.Wait()
			return nil, err
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	surviving := children[:0]
	for _, child := range children {
		if child != nil {
			surviving = append(surviving, child)
		}
	}
	if len(surviving) == 0 {
		return nil, nil
	}
	return &types.Node{Path: path, IsDirectory: true, Children: surviving}, nil
}

// classify resolves whether a directory entry is a directory and whether it can take part in the tree.
// Symbolic links are followed for files only.
func (walker *buildContext) classify(path string, entry fs.DirEntry) (bool, bool) {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.IsDir(), true
	}
	info, statError := os.Stat(path)
	if statError != nil {
		walker.logger.Debug(debugSkipStatMessage, zap.String("path", path), zap.Error(statError))
		return false, false
	}
	if info.IsDir() {
		walker.logger.Debug(debugSkipSymlinkMessage, zap.String("path", path))
		return false, false
	}
	return false, true
}
