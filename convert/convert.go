// Package convert renders the pages of a PDF document into encoded images.
//
// A Converter is bound to an explicit pdfrenderer.Engine. Pages are rendered
// strictly in order, one at a time; results are either collected with
// Convert or consumed page by page with Stream.
package convert

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/HardCoreQual/pdf2png/engine/pdfrenderer"
)

// Converter renders documents with one engine and one set of options.
// It is safe for concurrent use; each call owns its document and surfaces.
type Converter struct {
	engine pdfrenderer.Engine
	cfg    converterConfig
}

// New creates a Converter for engine.
func New(engine pdfrenderer.Engine, opts ...Option) *Converter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Converter{engine: engine, cfg: cfg}
}

// Engine returns the engine the converter renders with.
func (c *Converter) Engine() pdfrenderer.Engine {
	return c.engine
}

// Format returns the configured output format.
func (c *Converter) Format() Format {
	return c.cfg.format
}

// Scale returns the configured viewport scale.
func (c *Converter) Scale() float64 {
	return c.cfg.scale
}

// WithOptions returns a copy of c with opts applied on top of its options.
func (c *Converter) WithOptions(opts ...Option) *Converter {
	cfg := c.cfg
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Converter{engine: c.engine, cfg: cfg}
}

// Convert renders every selected page and returns the images in page order.
// On failure the images rendered before the failing page are returned
// together with the error.
func (c *Converter) Convert(ctx context.Context, src Source) ([]Image, error) {
	images := []Image{}
	for img, err := range c.Stream(ctx, src) {
		if err != nil {
			return images, err
		}
		images = append(images, img)
	}
	return images, nil
}

// Stream yields each image as soon as its page is rendered. After an error
// it yields (Image{}, err) once and stops. Breaking out of the loop closes
// the document and releases the surfaces.
func (c *Converter) Stream(ctx context.Context, src Source) iter.Seq2[Image, error] {
	return func(yield func(Image, error) bool) {
		doc, err := c.open(ctx, src)
		if err != nil {
			yield(Image{}, err)
			return
		}
		defer func() {
			if cerr := doc.Close(); cerr != nil {
				c.cfg.logger.Warn("Failed to close document", "name", src.Name, "error", cerr)
			}
		}()

		renderer := NewPageRenderer(c.cfg.factory, c.cfg.scale, c.cfg.format, c.cfg.sharedSurface)
		defer func() {
			if rerr := renderer.Release(); rerr != nil {
				c.cfg.logger.Warn("Failed to release surface", "name", src.Name, "error", rerr)
			}
		}()

		first, last, err := c.pageRange(doc.PageCount())
		if err != nil {
			yield(Image{}, err)
			return
		}
		total := last - first + 1
		if total < 0 {
			total = 0
		}
		c.cfg.logger.Debug("Converting document", "name", src.Name, "engine", c.engine.Name(),
			"pages", doc.PageCount(), "first", first, "last", last, "scale", c.cfg.scale)

		for index := first; index <= last; index++ {
			if err := ctx.Err(); err != nil {
				yield(Image{}, err)
				return
			}
			page, err := doc.Page(ctx, index)
			if err != nil {
				yield(Image{}, &RenderError{PageIndex: index, Cause: err})
				return
			}
			img, err := renderer.Render(ctx, page)
			if err != nil {
				c.cfg.logger.Error("Page render failed", "name", src.Name, "page", index, "error", err)
				yield(Image{}, err)
				return
			}
			if c.cfg.progress != nil {
				c.cfg.progress(index-first+1, total)
			}
			if !yield(img, nil) {
				c.cfg.logger.Debug("Conversion stopped by consumer", "name", src.Name, "page", index)
				return
			}
		}
	}
}

func (c *Converter) open(ctx context.Context, src Source) (pdfrenderer.Document, error) {
	data := src.Data
	if len(data) == 0 {
		if src.URL == "" {
			return nil, ErrEmptySource
		}
		if c.cfg.fetcher == nil {
			return nil, fmt.Errorf("convert: no fetcher configured for %s", src.URL)
		}
		fetched, err := c.cfg.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return nil, fmt.Errorf("convert: fetch %s: %w", src.URL, err)
		}
		data = fetched
	}

	doc, err := c.engine.Open(ctx, data)
	if err != nil {
		return nil, loadFailed(err)
	}
	return doc, nil
}

// pageRange clamps the configured range to a document of count pages.
// A document without pages yields an empty range.
func (c *Converter) pageRange(count int) (int, int, error) {
	first, last := c.cfg.firstPage, c.cfg.lastPage
	if first < 1 {
		first = 1
	}
	if last < 1 || last > count {
		last = count
	}
	if count > 0 && first > last {
		return 0, 0, fmt.Errorf("%w: range %d-%d of %d pages", pdfrenderer.ErrPageOutOfRange, first, last, count)
	}
	if count == 0 {
		return 1, 0, nil
	}
	return first, last, nil
}
