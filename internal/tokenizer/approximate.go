package tokenizer

import (
	"regexp"
	"strings"

	"github.com/rivo/uniseg"
)

// approximateTokenPattern matches word runs, then runs of non-ASCII characters,
// then any single remaining non-space character.
var approximateTokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{Nd}\p{Pc}]+|[^\x00-\x7F]+|\S`)

// ApproximateCounter is a deterministic BPE-like heuristic that needs no model files.
type ApproximateCounter struct{}

// Name returns ApproximateModel.
func (ApproximateCounter) Name() string {
	return ApproximateModel
}

// CountString returns the unrounded heuristic cost of input.
func (ApproximateCounter) CountString(input string) (int, error) {
	return Raw(input), nil
}

// Raw sums per-token costs over the trimmed text. A token of up to four grapheme
// clusters costs one; longer tokens cost length/4 + 1.
func Raw(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	total := 0
	for _, token := range approximateTokenPattern.FindAllString(trimmed, -1) {
		length := uniseg.GraphemeClusterCount(token)
		if length <= 4 {
			total++
			continue
		}
		total += length/4 + 1
	}
	return total
}

// Round maps sum to the nearest multiple of 100 using ((sum + 50) / 100) * 100.
func Round(sum int) int {
	return ((sum + 50) / 100) * 100
}

// Estimate returns the rounded heuristic token count of text.
func Estimate(text string) int {
	return Round(Raw(text))
}

// EstimateWith counts text with counter and rounds the result.
func EstimateWith(counter Counter, text string) (int, error) {
	if counter == nil {
		return Estimate(text), nil
	}
	count, err := counter.CountString(text)
	if err != nil {
		return 0, err
	}
	return Round(count), nil
}
