package convert

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/HardCoreQual/pdf2png/canvas"
	"github.com/HardCoreQual/pdf2png/engine/pdfrenderer"
	"github.com/HardCoreQual/pdf2png/internal/pdftest"
	"github.com/google/go-cmp/cmp"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
)

func pageNumbers(images []Image) []int {
	pages := make([]int, len(images))
	for i, img := range images {
		pages[i] = img.Page
	}
	return pages
}

func decodePixel(t *testing.T, img Image) color.NRGBA {
	t.Helper()
	decoded, err := png.Decode(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatalf("page %d is not a PNG: %v", img.Page, err)
	}
	b := decoded.Bounds()
	if b.Dx() != img.Width || b.Dy() != img.Height {
		t.Errorf("page %d: encoded %dx%d, reported %dx%d", img.Page, b.Dx(), b.Dy(), img.Width, img.Height)
	}
	return color.NRGBAModel.Convert(decoded.At(b.Dx()/2, b.Dy()/2)).(color.NRGBA)
}

func TestConvertProducesOneImagePerPageInOrder(t *testing.T) {
	engine := pdftest.New(pdftest.Solid(5, 20, 10, red)...)
	factory := canvas.NewFactory()
	c := New(engine, WithFactory(factory))

	images, err := c.Convert(context.Background(), Source{Name: "five.pdf", Data: pdftest.Data})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, pageNumbers(images)); diff != "" {
		t.Errorf("Page order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, engine.Rendered()); diff != "" {
		t.Errorf("Render order mismatch (-want +got):\n%s", diff)
	}
	for _, img := range images {
		if img.Width != 20 || img.Height != 10 {
			t.Errorf("page %d: expected 20x10, got %dx%d", img.Page, img.Width, img.Height)
		}
	}
	if factory.Live() != 0 {
		t.Errorf("Expected all surfaces destroyed, %d alive", factory.Live())
	}
	if engine.Opened() != 1 || engine.Closed() != 1 {
		t.Errorf("Expected 1 open and 1 close, got %d and %d", engine.Opened(), engine.Closed())
	}
}

func TestConvertZeroPages(t *testing.T) {
	engine := pdftest.New()
	images, err := New(engine).Convert(context.Background(), Source{Data: pdftest.Data})
	if err != nil {
		t.Fatalf("Zero-page document should not fail: %v", err)
	}
	if images == nil || len(images) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", images)
	}
	if engine.Closed() != 1 {
		t.Error("Document was not closed")
	}
}

func TestConvertSolidColourRoundTrip(t *testing.T) {
	for _, shared := range []bool{false, true} {
		name := "fresh surfaces"
		opts := []Option{}
		if shared {
			name = "shared surface"
			opts = append(opts, WithSharedSurface())
		}
		t.Run(name, func(t *testing.T) {
			engine := pdftest.New(
				pdftest.PageSpec{Width: 100, Height: 100, Color: blue},
				pdftest.PageSpec{Width: 100, Height: 100, Color: green},
			)
			factory := canvas.NewFactory()
			images, err := New(engine, append(opts, WithFactory(factory))...).
				Convert(context.Background(), Source{Data: pdftest.Data})
			if err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			if len(images) != 2 {
				t.Fatalf("Expected 2 images, got %d", len(images))
			}
			if got := decodePixel(t, images[0]); got != blue {
				t.Errorf("page 1: expected %v, got %v", blue, got)
			}
			if got := decodePixel(t, images[1]); got != green {
				t.Errorf("page 2: expected %v, got %v", green, got)
			}
			if factory.Live() != 0 {
				t.Errorf("Expected no live surfaces, got %d", factory.Live())
			}
		})
	}
}

func TestConvertDoesNotLeakPreviousPage(t *testing.T) {
	for _, shared := range []bool{false, true} {
		opts := []Option{}
		if shared {
			opts = append(opts, WithSharedSurface())
		}
		// Page 2 draws nothing, so it must come out transparent
		engine := pdftest.New(
			pdftest.PageSpec{Width: 10, Height: 10, Color: red},
			pdftest.PageSpec{Width: 10, Height: 10},
		)
		images, err := New(engine, opts...).Convert(context.Background(), Source{Data: pdftest.Data})
		if err != nil {
			t.Fatalf("shared=%v: Convert failed: %v", shared, err)
		}
		if got := decodePixel(t, images[1]); got.A != 0 {
			t.Errorf("shared=%v: page 2 kept stale content %v", shared, got)
		}
	}
}

func TestConvertRenderFailureStopsDocument(t *testing.T) {
	boom := errors.New("boom")
	engine := pdftest.New(
		pdftest.PageSpec{Width: 10, Height: 10, Color: red},
		pdftest.PageSpec{Width: 10, Height: 10, Err: boom},
		pdftest.PageSpec{Width: 10, Height: 10, Color: red},
	)
	factory := canvas.NewFactory()

	images, err := New(engine, WithFactory(factory)).Convert(context.Background(), Source{Data: pdftest.Data})

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Expected *RenderError, got %v", err)
	}
	if renderErr.PageIndex != 2 {
		t.Errorf("Expected failing page 2, got %d", renderErr.PageIndex)
	}
	if !errors.Is(err, boom) {
		t.Error("RenderError should unwrap to the render cause")
	}
	if diff := cmp.Diff([]int{1}, pageNumbers(images)); diff != "" {
		t.Errorf("Images mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, engine.Rendered()); diff != "" {
		t.Errorf("Page 3 must not be rendered (-want +got):\n%s", diff)
	}
	if factory.Live() != 0 || engine.Closed() != 1 {
		t.Errorf("Resources leaked: %d surfaces, %d closes", factory.Live(), engine.Closed())
	}
}

func TestConvertInvalidViewport(t *testing.T) {
	engine := pdftest.New(pdftest.PageSpec{Width: 0, Height: 10})
	_, err := New(engine).Convert(context.Background(), Source{Data: pdftest.Data})

	var renderErr *RenderError
	if !errors.As(err, &renderErr) || renderErr.PageIndex != 1 {
		t.Fatalf("Expected RenderError for page 1, got %v", err)
	}
	if !errors.Is(err, canvas.ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension cause, got %v", err)
	}
}

func TestConvertDocumentLoadFailed(t *testing.T) {
	engine := pdftest.New(pdftest.Solid(1, 10, 10, red)...)
	images, err := New(engine).Convert(context.Background(), Source{Data: []byte("not a pdf")})
	if !errors.Is(err, ErrDocumentLoadFailed) {
		t.Fatalf("Expected ErrDocumentLoadFailed, got %v", err)
	}
	if !errors.Is(err, pdftest.ErrNotPDF) {
		t.Error("Engine error should be wrapped")
	}
	if len(images) != 0 {
		t.Errorf("Expected no images, got %d", len(images))
	}

	if _, err := New(engine).Convert(context.Background(), Source{}); !errors.Is(err, ErrEmptySource) {
		t.Errorf("Expected ErrEmptySource, got %v", err)
	}
}

func TestStreamEarlyBreakReleasesResources(t *testing.T) {
	for _, shared := range []bool{false, true} {
		engine := pdftest.New(pdftest.Solid(4, 10, 10, red)...)
		factory := canvas.NewFactory()
		opts := []Option{WithFactory(factory)}
		if shared {
			opts = append(opts, WithSharedSurface())
		}

		seen := 0
		for img, err := range New(engine, opts...).Stream(context.Background(), Source{Data: pdftest.Data}) {
			if err != nil {
				t.Fatalf("shared=%v: unexpected error %v", shared, err)
			}
			seen++
			if img.Page == 2 {
				break
			}
		}

		if seen != 2 {
			t.Errorf("shared=%v: expected 2 images before break, got %d", shared, seen)
		}
		if factory.Live() != 0 {
			t.Errorf("shared=%v: %d surfaces still alive after break", shared, factory.Live())
		}
		if engine.Closed() != 1 {
			t.Errorf("shared=%v: document not closed after break", shared)
		}
		if diff := cmp.Diff([]int{1, 2}, engine.Rendered()); diff != "" {
			t.Errorf("shared=%v: rendered past the break (-want +got):\n%s", shared, diff)
		}
	}
}

func TestStreamYieldsErrorOnce(t *testing.T) {
	engine := pdftest.New(
		pdftest.PageSpec{Width: 10, Height: 10, Color: red},
		pdftest.PageSpec{Width: 10, Height: 10, Err: errors.New("bad page")},
	)
	var errs, images int
	for _, err := range New(engine).Stream(context.Background(), Source{Data: pdftest.Data}) {
		if err != nil {
			errs++
			continue
		}
		images++
	}
	if images != 1 || errs != 1 {
		t.Errorf("Expected 1 image and 1 error, got %d and %d", images, errs)
	}
}

func TestConvertCancelledContext(t *testing.T) {
	engine := pdftest.New(pdftest.Solid(3, 10, 10, red)...)
	ctx, cancel := context.WithCancel(context.Background())

	c := New(engine, WithProgress(func(done, total int) {
		if done == 1 {
			cancel()
		}
	}))
	images, err := c.Convert(ctx, Source{Data: pdftest.Data})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(images) != 1 {
		t.Errorf("Expected 1 image before cancellation, got %d", len(images))
	}
}

func TestConvertPageRangeAndProgress(t *testing.T) {
	engine := pdftest.New(pdftest.Solid(6, 10, 10, red)...)

	type tick struct{ Done, Total int }
	var ticks []tick
	c := New(engine, WithPageRange(2, 4), WithProgress(func(done, total int) {
		ticks = append(ticks, tick{done, total})
	}))

	images, err := c.Convert(context.Background(), Source{Data: pdftest.Data})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if diff := cmp.Diff([]int{2, 3, 4}, pageNumbers(images)); diff != "" {
		t.Errorf("Pages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]tick{{1, 3}, {2, 3}, {3, 3}}, ticks); diff != "" {
		t.Errorf("Progress mismatch (-want +got):\n%s", diff)
	}

	_, err = New(engine, WithPageRange(9, 0)).Convert(context.Background(), Source{Data: pdftest.Data})
	if !errors.Is(err, pdfrenderer.ErrPageOutOfRange) {
		t.Errorf("Expected ErrPageOutOfRange, got %v", err)
	}
}

func TestConvertScaleAndJPEG(t *testing.T) {
	engine := pdftest.New(pdftest.Solid(1, 10, 20, red)...)
	images, err := New(engine, WithScale(3), WithFormat(JPEG)).Convert(context.Background(), Source{Data: pdftest.Data})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	img := images[0]
	if img.Width != 30 || img.Height != 60 {
		t.Errorf("Expected 30x60, got %dx%d", img.Width, img.Height)
	}
	if _, format, err := image.Decode(bytes.NewReader(img.Data)); err != nil || format != "jpeg" {
		t.Errorf("Expected jpeg, got %q (%v)", format, err)
	}
	if img.FileName() != "0.jpg" {
		t.Errorf("Unexpected file name %s", img.FileName())
	}
	if !strings.HasPrefix(img.DataURL(), "data:image/jpeg;base64,") {
		t.Errorf("Unexpected data URL prefix %.30s", img.DataURL())
	}
}

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	data, ok := m[source]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func TestConvertFromURL(t *testing.T) {
	engine := pdftest.New(pdftest.Solid(2, 10, 10, red)...)
	c := New(engine, WithFetcher(mapFetcher{"/uploads/doc.pdf": pdftest.Data}))

	images, err := c.Convert(context.Background(), Source{URL: "/uploads/doc.pdf"})
	if err != nil || len(images) != 2 {
		t.Fatalf("Expected 2 images, got %d (%v)", len(images), err)
	}
	if _, err := c.Convert(context.Background(), Source{URL: "/uploads/missing.pdf"}); err == nil {
		t.Error("Expected fetch error")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": PNG, "PNG": PNG, "jpg": JPEG, "jpeg": JPEG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("webp"); err == nil {
		t.Error("Expected webp to be rejected")
	}
}
