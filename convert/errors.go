package convert

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the converter.
var (
	// ErrDocumentLoadFailed is returned when the source cannot be opened as
	// a PDF document. The engine error is wrapped alongside it.
	ErrDocumentLoadFailed = errors.New("convert: document load failed")

	// ErrEmptySource is returned for a Source with neither Data nor URL.
	ErrEmptySource = errors.New("convert: source has no data")
)

// RenderError reports the page that stopped a conversion.
type RenderError struct {
	// PageIndex is the 1-based page number
	PageIndex int
	Cause     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("convert: render page %d: %v", e.PageIndex, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

func loadFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrDocumentLoadFailed, err)
}
