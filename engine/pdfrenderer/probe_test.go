package pdfrenderer

import (
	"errors"
	"testing"
)

func TestProbeRejectsNonPDF(t *testing.T) {
	_, err := Probe([]byte("PK\x03\x04 definitely a zip"))
	if !errors.Is(err, ErrNotPDF) {
		t.Errorf("Expected ErrNotPDF, got %v", err)
	}
}

func TestProbeDamagedPDF(t *testing.T) {
	result, err := Probe([]byte("%PDF-1.7\n%garbage without xref\n"))
	if err == nil {
		t.Fatal("Expected probe of a truncated document to fail")
	}
	if errors.Is(err, ErrNotPDF) {
		t.Error("Header is present, error should not be ErrNotPDF")
	}
	if result.Version != "1.7" {
		t.Errorf("Expected version 1.7, got %q", result.Version)
	}
}

func TestViewportPixelSize(t *testing.T) {
	tests := []struct {
		name   string
		vp     Viewport
		wantW  int
		wantH  int
		wantDP float64
	}{
		{"letter at 1x", Viewport{Width: 612, Height: 792, Scale: 1}, 612, 792, 72},
		{"fractional rounds up", Viewport{Width: 100.2, Height: 50.9, Scale: 1}, 101, 51, 72},
		{"scale 3", Viewport{Width: 300, Height: 150, Scale: 3}, 300, 150, 216},
		{"empty", Viewport{}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.vp.PixelSize()
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, w, h)
			}
			if tt.vp.DPI() != tt.wantDP {
				t.Errorf("Expected DPI %v, got %v", tt.wantDP, tt.vp.DPI())
			}
		})
	}
}

func TestNewEngineUnknown(t *testing.T) {
	if _, err := NewEngine("ghostscript", Options{}); err == nil {
		t.Error("Expected error for unknown engine")
	}
}

func TestCheckPageIndex(t *testing.T) {
	if err := checkPageIndex(1, 1); err != nil {
		t.Errorf("Page 1 of 1 should be valid: %v", err)
	}
	for _, idx := range []int{0, 2, -1} {
		if err := checkPageIndex(idx, 1); !errors.Is(err, ErrPageOutOfRange) {
			t.Errorf("Index %d: expected ErrPageOutOfRange, got %v", idx, err)
		}
	}
}
