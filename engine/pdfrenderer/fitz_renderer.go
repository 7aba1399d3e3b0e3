package pdfrenderer

import (
	"context"
	"fmt"

	"github.com/HardCoreQual/pdf2png/canvas"
	"github.com/gen2brain/go-fitz"
)

// FitzEngine implements PDF rendering using go-fitz (requires CGo and MuPDF)
type FitzEngine struct {
}

// NewFitzEngine creates a new Fitz-based PDF engine
func NewFitzEngine() (*FitzEngine, error) {
	return &FitzEngine{}, nil
}

// Name implements Engine
func (e *FitzEngine) Name() string { return "fitz" }

// Open loads the document from memory
func (e *FitzEngine) Open(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	return &fitzDocument{doc: doc, pages: doc.NumPage()}, nil
}

// Close cleans up resources (no-op for Fitz as documents are closed individually)
func (e *FitzEngine) Close() error {
	return nil
}

type fitzDocument struct {
	doc   *fitz.Document
	pages int
}

func (d *fitzDocument) PageCount() int { return d.pages }

func (d *fitzDocument) Page(ctx context.Context, index int) (Page, error) {
	if err := checkPageIndex(index, d.pages); err != nil {
		return nil, err
	}
	bound, err := d.doc.Bound(index - 1)
	if err != nil {
		return nil, fmt.Errorf("unable to read bounds of page %d: %w", index, err)
	}
	return &fitzPage{
		doc:    d.doc,
		index:  index,
		width:  float64(bound.Dx()),
		height: float64(bound.Dy()),
	}, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}

type fitzPage struct {
	doc    *fitz.Document
	index  int
	width  float64
	height float64
}

func (p *fitzPage) Index() int { return p.index }

func (p *fitzPage) Viewport(scale float64) Viewport {
	return Viewport{Width: p.width * scale, Height: p.height * scale, Scale: scale}
}

func (p *fitzPage) Render(ctx context.Context, dc *canvas.Context, viewport Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := p.doc.ImageDPI(p.index-1, viewport.DPI())
	if err != nil {
		return fmt.Errorf("unable to render page %d: %w", p.index, err)
	}
	return dc.DrawImage(img)
}
