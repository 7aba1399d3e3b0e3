// Package canvas provides the drawing surfaces pages are rasterized into.
package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync/atomic"

	"github.com/disintegration/imaging"
)

var (
	// ErrInvalidDimension is returned when a surface is requested with a
	// width or height that is not strictly positive.
	ErrInvalidDimension = errors.New("canvas: invalid canvas size")

	// ErrSurfaceNotInitialized is returned when operating on a nil or
	// already destroyed surface.
	ErrSurfaceNotInitialized = errors.New("canvas: canvas is not specified")
)

// Surface is a pixel buffer together with the drawing context bound to it.
// A Surface must not be used from more than one goroutine at a time.
type Surface struct {
	width   int
	height  int
	pixels  *image.NRGBA
	context *Context
}

// Context is the 2D drawing context of a Surface. It stays bound to its
// surface across resets and stops working once the surface is destroyed.
type Context struct {
	surface *Surface
}

// Width returns the surface width in pixels, zero once destroyed.
func (s *Surface) Width() int { return s.width }

// Height returns the surface height in pixels, zero once destroyed.
func (s *Surface) Height() int { return s.height }

// Context returns the drawing context, nil once destroyed.
func (s *Surface) Context() *Context { return s.context }

// Image returns the current pixel buffer, nil once destroyed.
func (s *Surface) Image() *image.NRGBA { return s.pixels }

func (s *Surface) initialized() bool {
	return s != nil && s.pixels != nil && s.context != nil
}

// Encode serializes the current surface contents in the given format.
func (s *Surface) Encode(format imaging.Format) ([]byte, error) {
	if !s.initialized() {
		return nil, ErrSurfaceNotInitialized
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, s.pixels, format); err != nil {
		return nil, fmt.Errorf("canvas: encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Bounds returns the rectangle covered by the surface.
func (c *Context) Bounds() image.Rectangle {
	if c == nil || !c.surface.initialized() {
		return image.Rectangle{}
	}
	return c.surface.pixels.Bounds()
}

// Fill paints the whole surface with a single colour.
func (c *Context) Fill(col color.Color) error {
	if c == nil || !c.surface.initialized() {
		return ErrSurfaceNotInitialized
	}
	dst := c.surface.pixels
	draw.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
	return nil
}

// DrawImage paints img over the whole surface, resampling it when its size
// differs from the surface size.
func (c *Context) DrawImage(img image.Image) error {
	if c == nil || !c.surface.initialized() {
		return ErrSurfaceNotInitialized
	}
	if img == nil {
		return errors.New("canvas: nil image")
	}
	dst := c.surface.pixels
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	src := img
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		src = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	return nil
}

// Factory creates, resizes and releases surfaces and keeps count of the
// surfaces that are still alive.
type Factory struct {
	live atomic.Int64
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{}
}

func validDimensions(width, height int) bool {
	return width > 0 && height > 0
}

// Create allocates a transparent surface of the given size.
func (f *Factory) Create(width, height int) (*Surface, error) {
	if !validDimensions(width, height) {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimension, width, height)
	}
	s := &Surface{
		width:  width,
		height: height,
		pixels: image.NewNRGBA(image.Rect(0, 0, width, height)),
	}
	s.context = &Context{surface: s}
	f.live.Add(1)
	return s, nil
}

// Reset resizes s in place. Like resizing a browser canvas, the previous
// contents are discarded. Nothing is changed when the arguments are invalid.
func (f *Factory) Reset(s *Surface, width, height int) error {
	if !s.initialized() {
		return ErrSurfaceNotInitialized
	}
	if !validDimensions(width, height) {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimension, width, height)
	}
	s.width = width
	s.height = height
	s.pixels = image.NewNRGBA(image.Rect(0, 0, width, height))
	return nil
}

// Destroy zeroes the surface dimensions and drops the pixel buffer and
// context so the memory can be reclaimed straight away. Destroying the same
// surface twice is an error.
func (f *Factory) Destroy(s *Surface) error {
	if !s.initialized() {
		return ErrSurfaceNotInitialized
	}
	s.width = 0
	s.height = 0
	s.pixels = nil
	s.context.surface = nil
	s.context = nil
	f.live.Add(-1)
	return nil
}

// With creates a surface, hands it to fn and destroys it afterwards, also
// when fn returns an error or panics.
func (f *Factory) With(width, height int, fn func(*Surface) error) (err error) {
	s, err := f.Create(width, height)
	if err != nil {
		return err
	}
	defer func() {
		if derr := f.Destroy(s); derr != nil && err == nil {
			err = derr
		}
	}()
	return fn(s)
}

// Live reports how many surfaces created by f have not been destroyed.
func (f *Factory) Live() int {
	return int(f.live.Load())
}
