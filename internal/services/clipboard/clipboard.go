// Package clipboard delivers export payloads to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnsupported reports that no clipboard utility is available on this system.
var ErrUnsupported = errors.New("clipboard is not supported on this system")

const errorClipboardWriteFormat = "write clipboard: %w"

// Copier receives export text verbatim.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct{}

// NewService returns the system clipboard sink.
func NewService() *Service {
	return &Service{}
}

// Copy replaces the clipboard content with text.
func (service *Service) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if writeError := clipboard.WriteAll(text); writeError != nil {
		return fmt.Errorf(errorClipboardWriteFormat, writeError)
	}
	return nil
}

// Func adapts a function to Copier.
type Func func(text string) error

// Copy calls the function.
func (copier Func) Copy(text string) error {
	return copier(text)
}

var (
	_ Copier = (*Service)(nil)
	_ Copier = Func(nil)
)
