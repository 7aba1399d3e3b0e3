package convert

import (
	"context"

	"github.com/HardCoreQual/pdf2png/canvas"
	"github.com/HardCoreQual/pdf2png/engine/pdfrenderer"
)

// PageRenderer turns one page into one encoded image. It is owned by a
// single conversion loop and must not be shared between goroutines.
type PageRenderer struct {
	factory *canvas.Factory
	scale   float64
	format  Format
	shared  bool
	surface *canvas.Surface
}

// NewPageRenderer creates a renderer drawing into surfaces from factory.
// With shared set, one surface is reset to each page's size and kept until
// Release; otherwise every page gets its own surface, destroyed after
// encoding.
func NewPageRenderer(factory *canvas.Factory, scale float64, format Format, shared bool) *PageRenderer {
	if factory == nil {
		factory = canvas.NewFactory()
	}
	if scale <= 0 {
		scale = 1.0
	}
	if format == "" {
		format = PNG
	}
	return &PageRenderer{
		factory: factory,
		scale:   scale,
		format:  format,
		shared:  shared,
	}
}

// Render rasterizes page. Failures are returned as *RenderError.
func (r *PageRenderer) Render(ctx context.Context, page pdfrenderer.Page) (Image, error) {
	viewport := page.Viewport(r.scale)
	width, height := viewport.PixelSize()

	var img Image
	draw := func(s *canvas.Surface) error {
		if err := page.Render(ctx, s.Context(), viewport); err != nil {
			return err
		}
		data, err := s.Encode(r.format.imaging())
		if err != nil {
			return err
		}
		img = Image{
			Page:   page.Index(),
			Width:  s.Width(),
			Height: s.Height(),
			Format: r.format,
			Data:   data,
		}
		return nil
	}

	var err error
	if r.shared {
		err = r.withShared(width, height, draw)
	} else {
		err = r.factory.With(width, height, draw)
	}
	if err != nil {
		return Image{}, &RenderError{PageIndex: page.Index(), Cause: err}
	}
	return img, nil
}

func (r *PageRenderer) withShared(width, height int, fn func(*canvas.Surface) error) error {
	if r.surface == nil {
		s, err := r.factory.Create(width, height)
		if err != nil {
			return err
		}
		r.surface = s
	} else if err := r.factory.Reset(r.surface, width, height); err != nil {
		return err
	}
	return fn(r.surface)
}

// Release destroys the shared surface, if any. It is safe to call more
// than once.
func (r *PageRenderer) Release() error {
	if r.surface == nil {
		return nil
	}
	err := r.factory.Destroy(r.surface)
	r.surface = nil
	return err
}
