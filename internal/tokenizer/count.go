package tokenizer

import (
	"errors"
	"os"
	"unicode/utf8"

	"github.com/temirov/fusion/internal/utils"
)

var errNilCounter = errors.New("nil tokenizer counter")

// SkipReason explains why data was not counted. The empty reason means it was.
type SkipReason string

const (
	SkipBinary  SkipReason = "binary"
	SkipNotUTF8 SkipReason = "not UTF-8"
)

// CountResult is the unrounded count of a file or byte slice.
type CountResult struct {
	Tokens  int
	Skipped SkipReason
}

// Counted reports whether the data was counted.
func (result CountResult) Counted() bool {
	return result.Skipped == ""
}

// CountBytes counts data with counter. Data the export would not send as text
// is skipped: NUL bytes mark it binary, otherwise it must be valid UTF-8.
func CountBytes(counter Counter, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errNilCounter
	}
	switch {
	case utils.IsBinary(data):
		return CountResult{Skipped: SkipBinary}, nil
	case !utf8.Valid(data):
		return CountResult{Skipped: SkipNotUTF8}, nil
	}
	tokens, err := counter.CountString(string(data))
	if err != nil {
		return CountResult{}, err
	}
	return CountResult{Tokens: tokens}, nil
}

// CountFile reads the file at path and counts its tokens.
func CountFile(counter Counter, path string) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errNilCounter
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CountResult{}, err
	}
	return CountBytes(counter, data)
}
