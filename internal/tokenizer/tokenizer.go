// Package tokenizer estimates token counts for exported text.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters.
type Config struct {
	Model string
}

const (
	// ApproximateModel names the built-in heuristic counter.
	ApproximateModel = "approximate"

	fallbackEncodingName = "cl100k_base"

	errorFallbackEncodingFormat = "load %s encoding: %w"
)

// tiktokenModelPrefixes are model families tiktoken knows an encoding for.
var tiktokenModelPrefixes = []string{"gpt-", "o1", "o3", "o4", "text-embedding", "davinci", "curie", "babbage", "ada", "code-"}

// NewCounter returns a Counter for the requested model along with the name it resolved to.
// An empty model or "approximate" selects the heuristic counter. Known OpenAI
// model families use their tiktoken encoding; anything else is counted with cl100k_base.
func NewCounter(cfg Config) (Counter, string, error) {
	model := strings.ToLower(strings.TrimSpace(cfg.Model))
	if model == "" || model == ApproximateModel {
		return ApproximateCounter{}, ApproximateModel, nil
	}
	if hasTiktokenPrefix(model) {
		if counter, err := newEncodingCounter(model, tiktoken.EncodingForModel); err == nil {
			return counter, model, nil
		}
	}
	counter, err := newEncodingCounter(fallbackEncodingName, tiktoken.GetEncoding)
	if err != nil {
		return nil, "", fmt.Errorf(errorFallbackEncodingFormat, fallbackEncodingName, err)
	}
	return counter, fallbackEncodingName, nil
}

func hasTiktokenPrefix(model string) bool {
	for _, prefix := range tiktokenModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
