package pdfrenderer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HardCoreQual/pdf2png/canvas"
)

// ErrPageOutOfRange is returned when a page index outside 1..PageCount is requested
var ErrPageOutOfRange = errors.New("pdfrenderer: page index out of range")

// pointsPerInch is the PDF user-space unit density
const pointsPerInch = 72.0

// Viewport is the pixel rectangle a page is rasterized at for a given scale
type Viewport struct {
	Width  float64
	Height float64
	Scale  float64
}

// PixelSize returns the surface dimensions needed for the viewport
func (v Viewport) PixelSize() (int, int) {
	return int(math.Ceil(v.Width)), int(math.Ceil(v.Height))
}

// DPI returns the rendering resolution matching the viewport scale
func (v Viewport) DPI() float64 {
	return pointsPerInch * v.Scale
}

// Engine opens PDF documents. Implementations must allow concurrent Open
// calls; the returned documents are used by one goroutine at a time.
type Engine interface {
	// Name identifies the engine in logs and job records
	Name() string

	// Open parses data as a PDF document
	Open(ctx context.Context, data []byte) (Document, error)

	// Close cleans up any resources used by the engine
	Close() error
}

// Document is an opened PDF
type Document interface {
	PageCount() int

	// Page returns the page at the 1-based index
	Page(ctx context.Context, index int) (Page, error)

	Close() error
}

// Page is a single page of an opened Document
type Page interface {
	// Index is the 1-based page number
	Index() int

	// Viewport returns the page size at the given scale
	Viewport(scale float64) Viewport

	// Render draws the page into dc, which is sized to viewport
	Render(ctx context.Context, dc *canvas.Context, viewport Viewport) error
}

// Options configures NewEngine
type Options struct {
	// Workers bounds the number of PDFium instances (pdfium only)
	Workers int
	// InstanceTimeout bounds the wait for a free PDFium instance (pdfium only)
	InstanceTimeout time.Duration
}

// NewEngine creates the engine registered under name ("pdfium" or "fitz")
func NewEngine(name string, opts Options) (Engine, error) {
	switch name {
	case "", "pdfium":
		return NewPDFiumEngine(opts)
	case "fitz", "mupdf":
		return NewFitzEngine()
	default:
		return nil, fmt.Errorf("pdfrenderer: unknown engine %q (supported: pdfium, fitz)", name)
	}
}

func checkPageIndex(index, count int) error {
	if index < 1 || index > count {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, index, count)
	}
	return nil
}
