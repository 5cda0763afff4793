package search

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/fusion/internal/utils"
)

const (
	grepNoMatchExitCode = 1

	errorGrepRunFormat = "run %s: %w"
)

// GrepSearcher delegates content search to an external grep executable
// using fixed-string, recursive, list-files-only mode.
type GrepSearcher struct {
	Executable string
	Logger     *zap.Logger
}

// Arguments returns the grep argument list for request.
func (searcher *GrepSearcher) Arguments(request Request) []string {
	arguments := []string{"-r", "-l", "-F"}
	if !request.CaseSensitive {
		arguments = append(arguments, "-i")
	}
	for _, exclude := range request.Excludes {
		if exclude.Directory {
			arguments = append(arguments, "--exclude-dir="+exclude.Pattern)
		} else {
			arguments = append(arguments, "--exclude="+exclude.Pattern)
		}
	}
	return append(arguments, "-e", request.Query, request.Root)
}

// Search runs grep. Exit status 1 means no match; every other failure is returned as an error
// together with an empty result.
func (searcher *GrepSearcher) Search(ctx context.Context, request Request) ([]string, error) {
	if queryError := ValidateQuery(request.Query); queryError != nil {
		return nil, queryError
	}
	logger := utils.LoggerOrNop(searcher.Logger)
	executable := searcher.Executable
	if executable == "" {
		executable = defaultGrepExecutable
	}
	// #nosec G204
	command := exec.CommandContext(ctx, executable, searcher.Arguments(request)...)
	var stdout bytes.Buffer
	command.Stdout = &stdout
	runError := command.Run()
	if runError != nil {
		var exitError *exec.ExitError
		if errors.As(runError, &exitError) && exitError.ExitCode() == grepNoMatchExitCode {
			return nil, nil
		}
		logger.Debug("content search failed", zap.String("executable", executable), zap.Error(runError))
		return nil, fmt.Errorf(errorGrepRunFormat, executable, runError)
	}

	var matches []string
	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		matches = append(matches, filepath.Clean(line))
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, fmt.Errorf(errorGrepRunFormat, executable, scanError)
	}
	return matches, nil
}

var _ Searcher = (*GrepSearcher)(nil)
