// Package pdftest provides an in-memory pdfrenderer.Engine for tests.
package pdftest

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/HardCoreQual/pdf2png/canvas"
	"github.com/HardCoreQual/pdf2png/engine/pdfrenderer"
)

// ErrNotPDF is returned by Open for data that does not start with %PDF
var ErrNotPDF = errors.New("pdftest: not a PDF")

// PageSpec describes one synthetic page
type PageSpec struct {
	Width  float64
	Height float64
	Color  color.Color
	// Err is returned by Render when set
	Err error
	// Panic makes Render panic with this value when set
	Panic any
}

// Engine opens every valid-looking document as Pages.
type Engine struct {
	Pages []PageSpec

	mu      sync.Mutex
	opened  atomic.Int64
	closed  atomic.Int64
	renders []int
}

// New returns an engine producing documents with the given pages
func New(pages ...PageSpec) *Engine {
	return &Engine{Pages: pages}
}

// Solid returns n pages of the given size, all filled with c
func Solid(n int, width, height float64, c color.Color) []PageSpec {
	pages := make([]PageSpec, n)
	for i := range pages {
		pages[i] = PageSpec{Width: width, Height: height, Color: c}
	}
	return pages
}

// Data is a minimal payload accepted by Engine.Open
var Data = []byte("%PDF-1.4\n%stub\n")

func (e *Engine) Name() string { return "stub" }

func (e *Engine) Open(ctx context.Context, data []byte) (pdfrenderer.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, ErrNotPDF
	}
	e.opened.Add(1)
	return &document{engine: e}, nil
}

func (e *Engine) Close() error { return nil }

// Opened reports how many documents were opened
func (e *Engine) Opened() int { return int(e.opened.Load()) }

// Closed reports how many documents were closed
func (e *Engine) Closed() int { return int(e.closed.Load()) }

// Rendered returns the page indexes rendered so far, in call order
func (e *Engine) Rendered() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.renders...)
}

type document struct {
	engine *Engine
	closed bool
}

func (d *document) PageCount() int { return len(d.engine.Pages) }

func (d *document) Page(ctx context.Context, index int) (pdfrenderer.Page, error) {
	if index < 1 || index > len(d.engine.Pages) {
		return nil, pdfrenderer.ErrPageOutOfRange
	}
	return &page{engine: d.engine, index: index, spec: d.engine.Pages[index-1]}, nil
}

func (d *document) Close() error {
	if d.closed {
		return errors.New("pdftest: document closed twice")
	}
	d.closed = true
	d.engine.closed.Add(1)
	return nil
}

type page struct {
	engine *Engine
	index  int
	spec   PageSpec
}

func (p *page) Index() int { return p.index }

func (p *page) Viewport(scale float64) pdfrenderer.Viewport {
	return pdfrenderer.Viewport{Width: p.spec.Width * scale, Height: p.spec.Height * scale, Scale: scale}
}

func (p *page) Render(ctx context.Context, dc *canvas.Context, viewport pdfrenderer.Viewport) error {
	p.engine.mu.Lock()
	p.engine.renders = append(p.engine.renders, p.index)
	p.engine.mu.Unlock()

	if p.spec.Panic != nil {
		panic(p.spec.Panic)
	}
	if p.spec.Err != nil {
		return p.spec.Err
	}
	if p.spec.Color == nil {
		return nil
	}
	return dc.Fill(p.spec.Color)
}
