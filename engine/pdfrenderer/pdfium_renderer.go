package pdfrenderer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/HardCoreQual/pdf2png/canvas"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFiumEngine implements PDF rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumEngine struct {
	pool            pdfium.Pool
	instanceTimeout time.Duration
}

// NewPDFiumEngine initializes the WebAssembly worker pool. Every open
// document holds one instance until it is closed, so Workers bounds the
// number of documents converted at the same time.
func NewPDFiumEngine(opts Options) (*PDFiumEngine, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	timeout := opts.InstanceTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  workers,
		MaxTotal: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	return &PDFiumEngine{
		pool:            pool,
		instanceTimeout: timeout,
	}, nil
}

// Name implements Engine
func (e *PDFiumEngine) Name() string { return "pdfium" }

// Open checks out a PDFium instance and loads the document into it
func (e *PDFiumEngine) Open(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	instance, err := e.pool.GetInstance(e.instanceTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	doc, err := instance.OpenDocument(&requests.OpenDocument{
		File: &data,
	})
	if err != nil {
		instance.Close()
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}

	pageCountResp, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		instance.Close()
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}

	return &pdfiumDocument{
		instance: instance,
		doc:      doc.Document,
		pages:    pageCountResp.PageCount,
	}, nil
}

// Close cleans up resources used by the PDFium engine
func (e *PDFiumEngine) Close() error {
	if e.pool != nil {
		err := e.pool.Close()
		e.pool = nil
		return err
	}
	return nil
}

type pdfiumDocument struct {
	instance pdfium.Pdfium
	doc      references.FPDF_DOCUMENT
	pages    int
}

func (d *pdfiumDocument) PageCount() int { return d.pages }

func (d *pdfiumDocument) Page(ctx context.Context, index int) (Page, error) {
	if err := checkPageIndex(index, d.pages); err != nil {
		return nil, err
	}
	size, err := d.instance.FPDF_GetPageSizeByIndex(&requests.FPDF_GetPageSizeByIndex{
		Document: d.doc,
		Index:    index - 1,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read size of page %d: %w", index, err)
	}
	return &pdfiumPage{
		doc:    d,
		index:  index,
		width:  size.Width,
		height: size.Height,
	}, nil
}

// Close releases the document and hands the instance back to the pool
func (d *pdfiumDocument) Close() error {
	_, err := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.doc,
	})
	if cerr := d.instance.Close(); err == nil {
		err = cerr
	}
	return err
}

type pdfiumPage struct {
	doc    *pdfiumDocument
	index  int
	width  float64
	height float64
}

func (p *pdfiumPage) Index() int { return p.index }

func (p *pdfiumPage) Viewport(scale float64) Viewport {
	return Viewport{Width: p.width * scale, Height: p.height * scale, Scale: scale}
}

func (p *pdfiumPage) Render(ctx context.Context, dc *canvas.Context, viewport Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dpi := int(math.Round(viewport.DPI()))
	if dpi < 1 {
		dpi = 1
	}
	pageRender, err := p.doc.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: dpi,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: p.doc.doc,
				Index:    p.index - 1,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("unable to render page %d: %w", p.index, err)
	}
	// Clean up WebAssembly resources for this page
	defer pageRender.Cleanup()

	return dc.DrawImage(pageRender.Result.Image)
}
