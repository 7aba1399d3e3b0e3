package pdfrenderer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned by Probe when the data does not start with a PDF header
var ErrNotPDF = errors.New("pdfrenderer: missing %PDF header")

// ProbeResult describes what a structural read of an upload found
type ProbeResult struct {
	Pages   int
	Version string
}

// Probe reads the cross-reference structure of data without rendering it.
// It is stricter than the rendering engines on damaged files, so callers
// should treat a failure as a warning unless the header itself is missing.
func Probe(data []byte) (result ProbeResult, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return result, ErrNotPDF
	}
	result.Version = headerVersion(data)

	// ledongthuc/pdf panics on some malformed trailers
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfrenderer: probe failed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return result, fmt.Errorf("pdfrenderer: probe failed: %w", err)
	}
	result.Pages = reader.NumPage()
	return result, nil
}

func headerVersion(data []byte) string {
	start := bytes.Index(data, []byte("%PDF-"))
	if start < 0 {
		return ""
	}
	rest := data[start+len("%PDF-"):]
	end := bytes.IndexAny(rest, "\r\n \t%")
	if end < 0 || end > 8 {
		end = min(len(rest), 3)
	}
	return string(rest[:end])
}
