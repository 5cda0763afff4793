package tokenizer

import (
	"errors"

	"github.com/pkoukk/tiktoken-go"
)

var errMissingEncoding = errors.New("tiktoken returned no encoding")

// encodingCounter counts tokens with a tiktoken BPE encoding.
type encodingCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// newEncodingCounter loads the encoding called name with load, which is
// tiktoken.EncodingForModel or tiktoken.GetEncoding.
func newEncodingCounter(name string, load func(string) (*tiktoken.Tiktoken, error)) (encodingCounter, error) {
	encoding, err := load(name)
	if err != nil {
		return encodingCounter{}, err
	}
	if encoding == nil {
		return encodingCounter{}, errMissingEncoding
	}
	return encodingCounter{encoding: encoding, name: name}, nil
}

func (counter encodingCounter) Name() string {
	return counter.name
}

// CountString encodes input with special tokens treated as plain text, since
// exported files may legitimately contain them.
func (counter encodingCounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, errMissingEncoding
	}
	return len(counter.encoding.Encode(input, nil, nil)), nil
}
