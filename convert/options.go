package convert

import (
	"context"
	"log/slog"

	"github.com/HardCoreQual/pdf2png/canvas"
)

// SourceFetcher resolves a Source URL to bytes. *fetch.Fetcher satisfies it.
type SourceFetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// ProgressFunc is called after each page with the number of pages done and
// the number of pages selected for conversion.
type ProgressFunc func(done, total int)

type converterConfig struct {
	scale         float64
	format        Format
	sharedSurface bool
	firstPage     int
	lastPage      int
	logger        *slog.Logger
	progress      ProgressFunc
	fetcher       SourceFetcher
	factory       *canvas.Factory
}

func defaultConfig() converterConfig {
	return converterConfig{
		scale:  1.0,
		format: PNG,
	}
}

// Option configures a [Converter].
type Option func(*converterConfig)

// WithScale sets the viewport scale. Values <= 0 are ignored.
func WithScale(scale float64) Option {
	return func(c *converterConfig) {
		if scale > 0 {
			c.scale = scale
		}
	}
}

// WithFormat sets the output encoding. Defaults to PNG.
func WithFormat(format Format) Option {
	return func(c *converterConfig) {
		c.format = format
	}
}

// WithSharedSurface renders every page of a document into one surface that
// is reset to each page's size, instead of a fresh surface per page.
func WithSharedSurface() Option {
	return func(c *converterConfig) {
		c.sharedSurface = true
	}
}

// WithPageRange limits conversion to pages first..last (1-based, inclusive).
// Zero for either bound means the start or end of the document.
func WithPageRange(first, last int) Option {
	return func(c *converterConfig) {
		c.firstPage = first
		c.lastPage = last
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *converterConfig) {
		c.logger = logger
	}
}

// WithProgress registers a callback invoked after each rendered page.
func WithProgress(fn ProgressFunc) Option {
	return func(c *converterConfig) {
		c.progress = fn
	}
}

// WithFetcher sets how Source.URL is resolved.
func WithFetcher(f SourceFetcher) Option {
	return func(c *converterConfig) {
		c.fetcher = f
	}
}

// WithFactory sets the surface factory, mainly so tests can inspect it.
func WithFactory(f *canvas.Factory) Option {
	return func(c *converterConfig) {
		c.factory = f
	}
}
